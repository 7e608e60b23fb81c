package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/inspectconnect/internal/auth/token"
	obscontext "github.com/smallbiznis/inspectconnect/internal/observability/context"
	"github.com/smallbiznis/inspectconnect/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"
	headerAuthorization = "Authorization"
	bearerPrefix        = "bearer "
)

const (
	rateLimitReasonWebhook = "webhook-source"
	rateLimitReasonAPI     = "api-user"
)

// AuthRequired verifies the bearer token and stores the principal on the request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(headerAuthorization))
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.tokens.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		ctx := obscontext.WithActor(c.Request.Context(), principal.Role, principal.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequirePermission checks the principal's role against the casbin policy.
func (s *Server) RequirePermission(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal.UserID, principal.Role, object, action); err != nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// APIRateLimit applies the per-user token bucket to authenticated routes.
func (s *Server) APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		principal, ok := principalFrom(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.AllowAPI(ctx, principal.UserID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("api rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			s.denyRateLimit(c, rateLimitReasonAPI, res.RetryAfter.Seconds())
			return
		}
		c.Next()
	}
}

// WebhookRateLimit throttles webhook deliveries per source address.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.AllowWebhook(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("webhook rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			s.denyRateLimit(c, rateLimitReasonWebhook, res.RetryAfter.Seconds())
			return
		}
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, reason string, retryAfter float64) {
	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)

	seconds := int(retryAfter + 0.999)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	AbortWithError(c, ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}

func principalFrom(c *gin.Context) (*token.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*token.Principal)
	return principal, ok && principal != nil
}

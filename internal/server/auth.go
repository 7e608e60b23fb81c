package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
)

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=user"`
	UserType *int   `json:"userType" binding:"required,oneof=0 1"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type signInResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      *userdomain.User `json:"user"`
}

// SignUp registers a user account. Admins are provisioned from the CLI only.
func (s *Server) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	user, err := s.userSvc.Register(c.Request.Context(), userdomain.RegisterRequest{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     userdomain.RoleUser,
		UserType: *req.UserType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "User registered", user)
}

func (s *Server) SignIn(c *gin.Context) {
	var req signInRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	user, err := s.userSvc.Authenticate(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Signed in", signInResponse{
		Token:     raw,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

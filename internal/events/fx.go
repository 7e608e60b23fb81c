package events

import (
	"context"
	"strings"

	"github.com/smallbiznis/inspectconnect/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
	fx.Provide(NewNotifier),
)

// NewPublisher connects to RabbitMQ when AMQP_URL is set and falls back to a noop publisher.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	log = log.Named("events")

	url := strings.TrimSpace(cfg.Events.AMQPURL)
	if url == "" {
		log.Info("amqp url not configured, billing events disabled")
		return NewNoopPublisher(log), nil
	}

	publisher, err := NewRabbitMQPublisher(url, cfg.Events.Exchange, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

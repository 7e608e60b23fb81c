package subscription

import (
	"github.com/smallbiznis/inspectconnect/internal/subscription/repository"
	"github.com/smallbiznis/inspectconnect/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

package payment

import (
	"github.com/smallbiznis/inspectconnect/internal/payment/repository"
	"github.com/smallbiznis/inspectconnect/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewReconciler),
)

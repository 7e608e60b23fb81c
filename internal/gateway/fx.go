package gateway

import (
	"github.com/smallbiznis/inspectconnect/internal/gateway/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(stripe.New),
)

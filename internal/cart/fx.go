package cart

import "go.uber.org/fx"

var Module = fx.Module("cart.resolver",
	fx.Provide(NewResolver),
)

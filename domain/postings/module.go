package postings

import "go.uber.org/fx"

var Module = fx.Module("postings",
	fx.Provide(
		NewRepository,
		fx.Annotate(
			func(r *Repository) Store { return r },
			fx.As(new(Store)),
		),
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

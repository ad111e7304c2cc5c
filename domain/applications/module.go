package applications

import (
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/domain/notifications"
	"github.com/emergent-company/jobmanager/domain/postings"
	"github.com/emergent-company/jobmanager/internal/storage"
)

var Module = fx.Module("applications",
	fx.Provide(
		NewRepository,
		fx.Annotate(
			func(r *Repository) Store { return r },
			fx.As(new(Store)),
		),
		fx.Annotate(
			func(s *postings.Service) JobLookup { return s },
			fx.As(new(JobLookup)),
		),
		fx.Annotate(
			func(p *notifications.Publisher) Publisher { return p },
			fx.As(new(Publisher)),
		),
		fx.Annotate(
			func(s *storage.Service) BlobStore { return s },
			fx.As(new(BlobStore)),
		),
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

package components

import (
	"order-service/internal/infra/uow"

	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		// NewPostgresUoW already returns the shared.UnitOfWork interface; the
		// pool-backed read side hangs off it via Reads().
		uow.NewPostgresUoW,
	),
)

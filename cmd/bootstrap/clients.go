package bootstrap

import (
	"context"

	"order-service/internal/infra/remote"
	"order-service/internal/pkg/clock"
	"order-service/internal/pkg/config"
	"order-service/internal/usecase/commands"

	"go.uber.org/fx"
)

// ClientsModule wires the outbound service clients behind the saga's gateway
// interfaces.
var ClientsModule = fx.Module("clients",
	fx.Provide(
		fx.Annotate(
			NewInventoryClient,
			fx.As(new(commands.InventoryGateway)),
		),
		fx.Annotate(
			NewPaymentClient,
			fx.As(new(commands.PaymentGateway)),
		),
		fx.Annotate(
			NewNotificationPublisher,
			fx.As(new(commands.NotificationPublisher)),
		),
	),
)

func NewInventoryClient(cfg config.Config, clk clock.Clock) *remote.InventoryClient {
	return remote.NewInventoryClient(cfg.Inventory, clk)
}

func NewPaymentClient(cfg config.Config, clk clock.Clock) *remote.PaymentClient {
	return remote.NewPaymentClient(cfg.Payment, clk)
}

func NewNotificationPublisher(lc fx.Lifecycle, cfg config.Config, clk clock.Clock) *remote.NotificationPublisher {
	publisher := remote.NewNotificationPublisher(cfg.RabbitMQ, clk)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			publisher.Close()
			return nil
		},
	})

	return publisher
}

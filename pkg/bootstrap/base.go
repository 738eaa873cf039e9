package bootstrap

import (
	"context"
	"fmt"

	"chatgate/internal/config"
	"chatgate/internal/logger"
	"chatgate/internal/transport"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Transport transport.Transport
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitTransport() error {
	t, err := transport.New(*b.Config, logger.Named(b.Logger, "transport"))
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	b.Transport = t
	b.Logger.Infow("Transport initialized", "type", b.Config.Transport.Type)
	return nil
}

func (b *Base) ShutdownTransport() []error {
	if b.Transport == nil {
		return nil
	}
	if err := b.Transport.Close(); err != nil {
		return []error{fmt.Errorf("transport close error: %w", err)}
	}
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.ShutdownTransport()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}

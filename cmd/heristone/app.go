package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"heristone/internal/amqp"
	"heristone/internal/backend"
	"heristone/internal/cli"
	"heristone/internal/config"
	applog "heristone/internal/log"
	"heristone/internal/services"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *slog.Logger
	res    *backend.BackendResult
	svc    *services.DocumentService
}

// open loads configuration and builds the document service. Logs go to
// errOut so command output stays clean.
func (a *app) open(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{
		Level: applog.ParseLevel(cfg.LogLevel),
	}))

	res, err := cli.OpenBackend(ctx, a.logger, cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	a.res = res

	opts := []services.Option{
		services.WithLogger(a.logger),
		services.WithTolerance(cfg.CompletionTolerance),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The worker's periodic pass still picks the change up.
			a.logger.Warn("AMQP unavailable, change notifications disabled", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(client))
		}
	}

	a.svc = services.NewDocumentService(res.Store, opts...)
	return nil
}

func (a *app) close() {
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			a.logger.Warn("Failed to close publisher", "error", err)
		}
		a.svc = nil
	}
	if a.res != nil {
		if err := a.res.Close(); err != nil {
			a.logger.Warn("Failed to close backend", "error", err)
		}
		a.res = nil
	}
}

// run opens the service, runs fn and releases everything afterwards.
func (a *app) run(ctx context.Context, fn func(context.Context, *services.DocumentService) error) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a.svc)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diwise/halgraph/internal/pkg/application/facilities"
	"github.com/diwise/halgraph/internal/pkg/infrastructure/router"
	"github.com/diwise/halgraph/internal/pkg/infrastructure/storage"
	halapi "github.com/diwise/halgraph/internal/pkg/presentation/api/hal-api"
	api "github.com/diwise/halgraph/pkg/api/facilities"
	"github.com/diwise/halgraph/pkg/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "facilities-api"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	flags := parseExternalConfig(context.Background(), DefaultFlags())

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	facilitiesConfig, err := os.Open(flags[configPath])
	if err != nil {
		fatal(ctx, "failed to open facilities configuration", err)
	}

	opaConfig, err := os.Open(flags[opaPath])
	if err != nil {
		fatal(ctx, "failed to open authorization policies", err)
	}

	store, err := newStore(ctx)
	if err != nil {
		fatal(ctx, "failed to create facilities store", err)
	}
	defer store.Close()

	server, err := initialize(ctx, flags, serviceVersion, store, &AppConfig{
		facilitiesConfig: facilitiesConfig,
		opaConfig:        opaConfig,
	})
	if err != nil {
		fatal(ctx, "initialization failed", err)
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		server.Shutdown(shutdownCtx)
	}()

	log.Info("starting to listen for connections", "addr", server.Addr)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(ctx, "failed to listen for connections", err)
	}
}

func newStore(ctx context.Context) (storage.Store, error) {
	cfg := storage.LoadConfiguration(ctx)

	if !cfg.Enabled() {
		logging.GetFromContext(ctx).Info("no database configured, facilities are kept in memory")
		return storage.NewMemoryStore(), nil
	}

	return storage.NewPostgresStore(ctx, cfg)
}

func initialize(ctx context.Context, flags FlagMap, version string, store storage.Store, cfg *AppConfig) (*http.Server, error) {
	defer cfg.facilitiesConfig.Close()
	defer cfg.opaConfig.Close()

	facilitiesConfig, err := facilities.LoadConfiguration(cfg.facilitiesConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	registry, err := api.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to declare resources: %w", err)
	}

	app, err := facilities.New(ctx, *facilitiesConfig, store, registry,
		facilities.WithVersion(version),
		facilities.WithClientOptions(client.Debug(flags[clientDebug])),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	r := router.New(serviceName)

	err = halapi.RegisterHandlers(ctx, r, cfg.opaConfig, app, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	return &http.Server{
		Addr:              net.JoinHostPort(flags[listenAddress], flags[servicePort]),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func fatal(ctx context.Context, msg string, err error) {
	logging.GetFromContext(ctx).Error(msg, "err", err.Error())
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"chatgate/internal/admin"
	"chatgate/internal/commands"
	"chatgate/internal/completion"
	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/dedup"
	"chatgate/internal/filtering"
	"chatgate/internal/logger"
	"chatgate/internal/pipeline"
	"chatgate/internal/reply"
	"chatgate/internal/router"
	"chatgate/internal/transport"
	"chatgate/pkg/bootstrap"
	"chatgate/pkg/health"
	"chatgate/pkg/logging"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

const serviceName = "chatgate"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	memoryCache    *dedup.MemoryCache
	storeCache     *dedup.StoreCache
	cache          dedup.Cache
	router         *router.Router
	pipeline       *pipeline.Pipeline
	healthRegistry *health.CheckerRegistry
	breakers       map[string]health.Breaker
	tracerProvider *tracing.TracerProvider
	server         *http.Server
	console        io.Writer
}

func NewApp(cfg *config.Config, log logger.Logger, console io.Writer) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		dbConnector:    bootstrap.NewDatabaseConnector(cfg, log),
		healthRegistry: health.NewCheckerRegistry(),
		breakers:       make(map[string]health.Breaker),
		console:        console,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, tracing.Resource{
		Version:       version,
		TransportType: a.Config.Transport.Type,
		InstanceID:    uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	a.registerMetrics()

	if err := a.initDedup(ctx); err != nil {
		return fmt.Errorf("failed to initialize dedup cache: %w", err)
	}

	if err := a.InitTransport(); err != nil {
		return err
	}
	a.Transport.OnConnection(a.onConnection)
	a.healthRegistry.Register(health.NewTransportChecker(a.Config.Transport.Type, a.Transport))

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize commands: %w", err)
	}

	filter, err := filtering.NewService(a.Config.Filtering, logger.Named(a.Logger, "filtering"))
	if err != nil {
		return fmt.Errorf("failed to initialize filtering: %w", err)
	}

	a.pipeline = pipeline.New(a.cache, filter, a.router, a.Transport.SelfID, a.Config.Gateway, a.Logger)

	a.initHTTPServer(ctx)

	return nil
}

func (a *App) registerMetrics() {
	metrics.RegisterGatewayMetrics()
	metrics.RegisterDedupMetrics()
	metrics.RegisterFilteringMetrics()
	metrics.RegisterTransportMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAdminMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
}

func (a *App) initDedup(ctx context.Context) error {
	switch a.Config.Dedup.Backend {
	case constants.DedupBackendRedis:
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redis = rdb
		a.healthRegistry.Register(health.NewRedisChecker(rdb))

		var repo dedup.Repository = dedup.NewRepository(rdb)
		if a.Config.CircuitBreaker.Enabled {
			cbRepo := dedup.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)
			a.breakers["redis-dedup"] = cbRepo
			a.healthRegistry.Register(health.NewBreakerChecker("redis-dedup", cbRepo))
			repo = cbRepo
			a.Logger.InfowCtx(ctx, "Circuit breaker enabled for dedup repository")
		}

		a.storeCache = dedup.NewStoreCache(repo, a.Config.Dedup, a.Logger)
		a.cache = a.storeCache
	default:
		mc, err := dedup.NewMemoryCache(a.Config.Dedup.Window, a.Config.Dedup.MaxEntries, dedup.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		a.memoryCache = mc
		a.cache = mc
	}

	a.Logger.InfowCtx(ctx, "Dedup cache ready", "backend", a.dedupBackend(), "window", a.Config.Dedup.Window)
	return nil
}

func (a *App) dedupBackend() string {
	if a.Config.Dedup.Backend == "" {
		return constants.DedupBackendMemory
	}
	return a.Config.Dedup.Backend
}

func (a *App) initRouter() error {
	a.router = router.New(a.Config.Gateway.CommandPrefix, logger.Named(a.Logger, "router"))

	replier := reply.NewReplier(reply.NewBuilder(a.Config.Reply.MaxVideoBytes), a.Transport, a.Logger)

	var completer completion.Completer
	if a.Config.Completion.Enabled {
		client := completion.NewClient(a.Config.Completion, a.Config.CircuitBreaker, logger.Named(a.Logger, "completion"))
		if a.Config.CircuitBreaker.Enabled {
			a.breakers["completion"] = client.Breaker()
		}
		completer = client
	}

	set := commands.NewSet(a.router, replier, completer, a.Logger,
		commands.WithMedia(a.Transport, a.Config.Transport.Media.SaveDir),
		commands.WithOwner(a.Config.Gateway.Owner),
	)
	return set.Register()
}

func (a *App) initHTTPServer(ctx context.Context) {
	handler := admin.NewHandler(admin.Deps{
		Session:       a.Transport,
		TransportType: a.Config.Transport.Type,
		Gate:          a.pipeline,
		Commands:      a.router,
		Health:        a.healthRegistry,
		DedupBackend:  a.dedupBackend(),
		Breakers:      a.breakers,
	}, logger.Named(a.Logger, "admin"))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      admin.NewEngine(ctx, *a.Config, handler, a.Logger),
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// onConnection prints linking prompts to the console and logs session changes.
func (a *App) onConnection(update models.ConnectionUpdate) {
	ctx := logging.WithServiceName(context.Background(), serviceName)

	if update.QR != "" && a.Config.Transport.AuthMode != constants.AuthModePairingCode {
		fmt.Fprintln(a.console, "Scan QR, expires in 60 seconds.")
		fmt.Fprintln(a.console, update.QR)
	}
	if update.Pairing != "" {
		fmt.Fprintf(a.console, "\nCode: %s\n\n", transport.FormatPairingCode(update.Pairing))
	}

	switch update.State {
	case models.ConnectionOpen:
		a.Logger.InfowCtx(ctx, "Connected", "self_id", update.SelfID)
	case models.ConnectionClosed:
		a.Logger.WarnwCtx(ctx, "Disconnecting", "reason", update.Reason, "logged_out", update.LoggedOut)
	default:
		a.Logger.DebugwCtx(ctx, "Connection update", "state", update.State)
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.memoryCache != nil {
		g.Go(func() error {
			a.memoryCache.Run(gCtx, a.Config.Dedup.SweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		if err := a.Transport.Start(gCtx, a.pipeline); err != nil {
			return fmt.Errorf("transport stopped: %w", err)
		}
		if gCtx.Err() == nil {
			return fmt.Errorf("transport stopped unexpectedly")
		}
		return gCtx.Err()
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down gateway")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.pipeline != nil {
			start := time.Now()
			if err := a.pipeline.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("pipeline drain error: %w", err))
			}
			a.Logger.InfowCtx(shutdownCtx, "Pipeline drained", "duration", time.Since(start), "stats", a.pipeline.Stats())
		}

		if a.storeCache != nil {
			a.storeCache.Stop()
		}

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownRedis(a.redis)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

// Package server wires the session engine to its store, transport and
// telemetry, and runs it until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/antecipa/internal/logging"
	"github.com/dmitrijs2005/antecipa/internal/server/auth"
	"github.com/dmitrijs2005/antecipa/internal/server/config"
	"github.com/dmitrijs2005/antecipa/internal/server/credentials"
	"github.com/dmitrijs2005/antecipa/internal/server/httpapi"
	"github.com/dmitrijs2005/antecipa/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/antecipa/internal/server/services"
	"github.com/dmitrijs2005/antecipa/internal/server/telemetry"
	"github.com/dmitrijs2005/antecipa/internal/server/tokens"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/dmitrijs2005/antecipa"

type App struct {
	config   *config.Config
	logger   logging.Logger
	sessions *services.SessionService
	issuer   *auth.JWTIssuer
	factory  *tokens.Factory

	meterProvider *sdkmetric.MeterProvider
	metricsReader *sdkmetric.ManualReader
	closers       []func() error
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}

	store, err := app.openStore(context.Background())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("store init error: %w", err)
	}

	app.metricsReader = sdkmetric.NewManualReader()
	app.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(app.metricsReader))
	otel.SetMeterProvider(app.meterProvider)

	metrics, err := telemetry.NewMetrics(app.meterProvider.Meter(meterName))
	if err != nil {
		app.close()
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	app.issuer = auth.NewJWTIssuer(c.SecretKey, c.AccessTokenValidityDuration)
	app.factory = tokens.NewFactory(c.RefreshTokenLifetime)
	app.sessions = services.NewSessionService(
		store,
		auth.NewPasswordVerifier(store, 0),
		app.issuer,
		app.factory,
		c,
		services.WithLogger(logger),
		services.WithMetrics(metrics),
	)

	return app, nil
}

func (app *App) openStore(ctx context.Context) (credentials.Store, error) {
	switch app.config.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("pgx", app.config.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}

		repos := repomanager.NewPostgresRepositoryManager()
		if err := repos.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return credentials.NewPostgresStore(db, repos), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		app.closers = append(app.closers, rdb.Close)

		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return credentials.NewRedisStore(rdb, app.config.RedisKeyPrefix), nil

	case config.BackendMemory:
		app.logger.Warn(ctx, "using in-memory store, sessions are lost on restart")
		return credentials.NewMemoryStore(), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", app.config.StoreBackend)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// router builds the HTTP API plus GET /metrics. The cookie lives exactly as
// long as the refresh token it carries.
func (app *App) router() *gin.Engine {
	h := httpapi.NewHandler(app.sessions, httpapi.CookieSettings{
		Secure: app.config.SecureCookies,
		MaxAge: app.factory.Lifetime(),
	}, app.logger)
	limiter := httpapi.NewIPRateLimiter(app.config.RateLimitPerSecond, app.config.RateLimitBurst)
	r := httpapi.NewRouter(h, app.issuer, limiter, app.logger)
	r.GET("/metrics", gin.WrapH(telemetry.NewPrometheusExporter(app.metricsReader).Handler()))
	return r
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.router(), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return err
	}
	return nil
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases the store and logs the final counter values.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup
	var serveErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	shutdownCtx := context.WithoutCancel(ctx)
	app.dumpMetrics(shutdownCtx)
	if err := app.meterProvider.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "meter provider shutdown failed", "error", err)
	}
	if err := app.close(); err != nil {
		app.logger.Warn(shutdownCtx, "closing store failed", "error", err)
	}

	app.logger.Info(shutdownCtx, "App stopped")
	return serveErr
}

func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

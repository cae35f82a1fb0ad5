// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/ritan/adapters/auth"
	"github.com/artpar/ritan/adapters/clock"
	adapterengine "github.com/artpar/ritan/adapters/engine"
	"github.com/artpar/ritan/adapters/hasher"
	apihttp "github.com/artpar/ritan/adapters/http"
	"github.com/artpar/ritan/adapters/idgen"
	"github.com/artpar/ritan/adapters/memory"
	"github.com/artpar/ritan/adapters/metrics"
	"github.com/artpar/ritan/adapters/payment"
	"github.com/artpar/ritan/adapters/random"
	"github.com/artpar/ritan/adapters/redis"
	"github.com/artpar/ritan/adapters/sqlite"
	"github.com/artpar/ritan/app"
	"github.com/artpar/ritan/config"
	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// Options provides optional settings for application initialization.
type Options struct {
	Version string
	Logger  *zerolog.Logger // overrides the logger built from config
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Keys      *app.KeyService
	Auth      *app.AuthService
	Admission *app.AdmissionService
	Ledger    *app.LedgerService
	Billing   *app.BillingService
	Gateway   *app.GatewayService

	// Stores used directly by the CLI.
	Tenants  ports.TenantStore
	Usage    ports.UsageStore
	Sessions *auth.TokenService // nil when no session secret is configured

	// Adapters (for cleanup)
	usageRecorder *LocalUsageRecorder
	counters      io.Closer
}

// New creates and initializes the application from the holder's current
// configuration. Reloadable settings follow the holder afterwards.
func New(holder *config.Holder, opts Options) (*App, error) {
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger.Info().Str("version", opts.Version).Msg("initializing ritan")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := a.initServices(cfg); err != nil {
		a.Shutdown()
		return nil, err
	}

	a.initHTTPServer(cfg, opts.Version)
	a.watchConfig()

	return a, nil
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database ready")
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	logger := a.Logger
	clk := clock.Real{}

	h, err := hasher.New(cfg.Auth.DigestAlgorithm, []byte(cfg.Auth.DigestPepper))
	if err != nil {
		return fmt.Errorf("init hasher: %w", err)
	}

	counters, err := a.counterStore(cfg.Admission)
	if err != nil {
		return fmt.Errorf("init counter store: %w", err)
	}

	engines, err := buildEngines(cfg.Engines, logger)
	if err != nil {
		return fmt.Errorf("init engines: %w", err)
	}

	keys := sqlite.NewKeyStore(a.DB)
	a.Tenants = sqlite.NewTenantStore(a.DB)
	a.Usage = sqlite.NewUsageStore(a.DB)

	a.usageRecorder = NewLocalUsageRecorder(a.Usage, RecorderOptions{
		BatchSize:     cfg.Usage.BatchSize,
		FlushInterval: cfg.Usage.FlushInterval,
		MaxBuffered:   cfg.Usage.MaxBuffered,
		Logger:        logger,
		Metrics:       a.Metrics,
	})

	var sessions ports.SessionVerifier
	if cfg.Auth.SessionSecret != "" {
		a.Sessions = auth.NewTokenService(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, clk)
		sessions = a.Sessions
	} else {
		logger.Warn().Msg("no session secret configured, dashboard routes will reject every request")
	}

	if cfg.Billing.PaymentSecret == "" {
		logger.Warn().Msg("no payment secret configured, upgrades are disabled")
	}

	a.Keys = app.NewKeyService(app.KeyDeps{
		Keys:    keys,
		Tenants: a.Tenants,
		Random:  random.Real{},
		Hasher:  h,
		IDGen:   idgen.UUID{},
		Clock:   clk,
		Logger:  logger,
	})
	a.Auth = app.NewAuthService(app.AuthDeps{
		Keys:     keys,
		Tenants:  a.Tenants,
		Hasher:   h,
		Clock:    clk,
		Sessions: sessions,
		Logger:   logger,
	})
	a.Admission = app.NewAdmissionService(app.AdmissionDeps{
		Tenants:  a.Tenants,
		Counters: counters,
		Clock:    clk,
		Logger:   logger,
	}, cfg.Ceilings())
	a.Ledger = app.NewLedgerService(app.LedgerDeps{
		Recorder:  a.usageRecorder,
		Store:     a.Usage,
		Admission: a.Admission,
		Clock:     clk,
	})
	a.Billing = app.NewBillingService(app.BillingDeps{
		Tenants:  a.Tenants,
		Verifier: payment.NewVerifier(cfg.Billing.PaymentSecret),
		Clock:    clk,
		Logger:   logger,
	})
	a.Gateway = app.NewGatewayService(app.GatewayDeps{
		Engines:   engines,
		Admission: a.Admission,
		Ledger:    a.Ledger,
		Clock:     clk,
		IDGen:     idgen.Ordered{},
		Logger:    logger,
	}, cfg.EngineSpecs())

	return nil
}

// counterStore selects the admission counter backend.
func (a *App) counterStore(cfg config.AdmissionConfig) (ports.CounterStore, error) {
	switch cfg.Store {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := redis.NewCounterStore(ctx, redis.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.counters = store
		a.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("admission counters in redis")
		return store, nil
	case "memory":
		a.Logger.Warn().Msg("admission counters in memory, they reset on restart")
		return memory.NewCounterStore(16), nil
	default:
		return sqlite.NewCounterStore(a.DB), nil
	}
}

// buildEngines creates one adapter per configured engine.
func buildEngines(cfgs map[string]config.EngineConfig, logger zerolog.Logger) (map[engine.Kind]ports.Engine, error) {
	engines := make(map[engine.Kind]ports.Engine, len(cfgs))
	for _, kind := range engine.Kinds() {
		ec, ok := cfgs[string(kind)]
		if !ok {
			continue
		}
		switch ec.Mode {
		case "http":
			e, err := adapterengine.NewHTTP(adapterengine.HTTPConfig{
				Kind:             kind,
				URL:              ec.URL,
				Token:            ec.Token,
				Timeout:          ec.Timeout,
				FailureThreshold: ec.FailureThreshold,
				OpenTimeout:      ec.OpenTimeout,
			}, logger)
			if err != nil {
				return nil, err
			}
			engines[kind] = e
		case "smtp":
			e, err := adapterengine.NewSMTP(adapterengine.SMTPConfig{
				Host:        ec.SMTP.Host,
				Port:        ec.SMTP.Port,
				Username:    ec.SMTP.Username,
				Password:    ec.SMTP.Password,
				From:        ec.SMTP.From,
				UseTLS:      ec.SMTP.UseTLS,
				UseImplicit: ec.SMTP.UseImplicit,
				Timeout:     ec.Timeout,
			})
			if err != nil {
				return nil, err
			}
			engines[kind] = e
		default:
			engines[kind] = adapterengine.Echo{}
		}
		logger.Debug().Str("engine", string(kind)).Str("mode", ec.Mode).Msg("engine configured")
	}
	return engines, nil
}

func (a *App) initHTTPServer(cfg *config.Config, version string) {
	var pinger apihttp.Pinger
	if a.DB != nil {
		pinger = a.DB
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Auth: a.Auth,
		Handler: apihttp.NewHandler(apihttp.HandlerDeps{
			Gateway: a.Gateway,
			Keys:    a.Keys,
			Ledger:  a.Ledger,
			Billing: a.Billing,
			Logger:  a.Logger,
			Metrics: a.Metrics,
		}),
		Health:            apihttp.NewHealthHandler(pinger),
		Metrics:           a.Metrics,
		Logger:            a.Logger,
		RequestTimeout:    cfg.Server.RequestTimeout,
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		MetricsPath:       metricsPath,
		Version:           version,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// watchConfig applies reloadable settings when the holder reloads.
func (a *App) watchConfig() {
	a.Config.OnChange(func(cfg *config.Config) {
		a.Admission.UpdateCeilings(cfg.Ceilings())
		a.Gateway.UpdateSpecs(cfg.EngineSpecs())
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
	a.Config.OnReload(a.Metrics.ConfigReloaded)
}

// Run starts the HTTP server and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	if a.Config.Path() != "" {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Config.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("http server error")
		a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Flush usage recorder
	if a.usageRecorder != nil {
		if err := a.usageRecorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if a.counters != nil {
		if err := a.counters.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("counter store close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

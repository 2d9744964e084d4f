package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/freekieb7/go-duedate/internal/cache"
	"github.com/freekieb7/go-duedate/internal/completion"
	"github.com/freekieb7/go-duedate/internal/config"
	"github.com/freekieb7/go-duedate/internal/database"
	"github.com/freekieb7/go-duedate/internal/health"
	"github.com/freekieb7/go-duedate/internal/login"
	"github.com/freekieb7/go-duedate/internal/moodle"
	"github.com/freekieb7/go-duedate/internal/session"
	"github.com/freekieb7/go-duedate/internal/web/handler"
	"github.com/freekieb7/go-duedate/internal/web/middleware"
	"github.com/freekieb7/go-duedate/internal/web/proxy"
)

const databaseFile = "duedate.db"

type Container struct {
	Config     config.Config
	Logger     *slog.Logger
	Database   database.Database
	Cache      *cache.Service
	Moodle     *moodle.Client
	Limiter    *middleware.InMemoryRateLimiter
	HttpServer *http.Server

	tempDir string
}

// New builds every dependency of the server. Call Close when done, also after
// an error, to release what was opened so far.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dir, err := os.MkdirTemp("", "duedate-")
		if err != nil {
			return c, fmt.Errorf("create data dir: %w", err)
		}
		c.tempDir = dir
		dataDir = dir
		logger.Warn("DATA_DIR not set, completion marks are kept in a temporary directory", "dir", dir)
	}

	db, err := database.Open(ctx, filepath.Join(dataDir, databaseFile))
	if err != nil {
		return c, fmt.Errorf("open database: %w", err)
	}
	c.Database = db

	if err := database.NewMigrator(db, logger).Up(ctx, completion.Migrations()); err != nil {
		return c, fmt.Errorf("migration up failed: %w", err)
	}

	production := cfg.Server.IsProduction()

	var sessions session.Provider
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		cacheConfig := cache.DefaultConfig()
		cacheConfig.Addr = cfg.Cache.RedisAddr
		cacheConfig.Password = cfg.Cache.RedisPassword
		cacheConfig.DB = cfg.Cache.RedisDB
		cacheConfig.PoolSize = cfg.Cache.RedisPoolSize

		cacheService, err := cache.NewService(cacheConfig, logger)
		if err != nil {
			return c, fmt.Errorf("connect session cache: %w", err)
		}
		c.Cache = cacheService
		sessions = session.NewRedisProvider(cacheService, production, logger)
	default:
		sessions = session.NewCookieProvider(cfg.Session.CookieName, production)
	}

	client, err := moodle.NewClient(moodle.Options{
		BaseURL: cfg.Moodle.BaseURL,
		Service: cfg.Moodle.Service,
		Timeout: cfg.Moodle.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return c, err
	}
	c.Moodle = client

	c.Limiter = middleware.NewInMemoryRateLimiter()

	mux := http.NewServeMux()

	uiHandler, err := handler.NewUIHandler(&c.Config, logger, sessions, login.NewService(client, logger), client, completion.NewStore(db), c.Limiter)
	if err != nil {
		return c, fmt.Errorf("load templates: %w", err)
	}
	uiHandler.RegisterRoutes(mux)

	healthHandler := handler.NewHealthHandler(c.healthChecker())
	healthHandler.RegisterRoutes(mux)

	if cfg.Proxy.Enabled {
		proxyHandler, err := c.proxyHandler()
		if err != nil {
			return c, err
		}
		mux.Handle(cfg.Proxy.Prefix+"/", proxyHandler)
	}

	c.HttpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))(mux),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return c, nil
}

func (c *Container) healthChecker() *health.Checker {
	components := []health.Component{
		{Name: "database", Pinger: health.PingFunc(c.Database.PingContext), Critical: true},
		{Name: "moodle", Pinger: c.Moodle},
	}
	if c.Cache != nil {
		components = append(components, health.Component{Name: "session_cache", Pinger: c.Cache, Critical: true})
	}

	return health.NewChecker(string(c.Config.Server.Environment), c.Logger, components...)
}

func (c *Container) proxyHandler() (http.Handler, error) {
	target, err := url.Parse(c.Config.Moodle.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("proxy target: %w", err)
	}

	var h http.Handler = proxy.New(proxy.Options{
		Prefix:  c.Config.Proxy.Prefix,
		Target:  target,
		Timeout: c.Config.Moodle.RequestTimeout,
		Logger:  c.Logger,
	})

	if c.Config.RateLimit.Enabled {
		h = middleware.RateLimitMiddleware(c.Limiter, middleware.RateLimit{
			Requests: c.Config.RateLimit.ProxyRequests,
			Window:   c.Config.RateLimit.Window,
			KeyFunc:  middleware.KeyByIP("proxy", c.Config.Server.TrustProxy),
		}, c.Logger)(h)
	}

	security := middleware.DefaultSecurityHeaders(c.Config.Server.IsProduction())
	return middleware.SecurityHeaders(security)(h), nil
}

// Close releases everything New opened, in reverse order.
func (c *Container) Close() error {
	var errs []error

	if c.Limiter != nil {
		errs = append(errs, c.Limiter.Close())
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.Database.DB != nil {
		errs = append(errs, c.Database.Close())
	}
	if c.tempDir != "" {
		errs = append(errs, os.RemoveAll(c.tempDir))
	}

	return errors.Join(errs...)
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/cache"
	"github.com/DuyAnh662/Fileshare/internal/config"
	"github.com/DuyAnh662/Fileshare/internal/ctxkeys"
	"github.com/DuyAnh662/Fileshare/internal/db"
	"github.com/DuyAnh662/Fileshare/internal/identity"
	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/repository"
	"github.com/DuyAnh662/Fileshare/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Cfg          *config.Config
	DB           *sqlx.DB
	Redis        *redis.Client
	Repos        service.Repositories
	Settings     service.Settings
	DeviceTokens *service.DeviceTokens

	refresher *cache.Refresher
	resolvers []identity.Resolver
	memory    *localstore.MemoryPool
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{
		Cfg:   cfg,
		DB:    database,
		Repos: service.Repositories{
			Tiers:       repository.NewTierRepository(database),
			Usage:       repository.NewUsageRepository(database),
			Completions: repository.NewCompletionRepository(database),
			Submissions: repository.NewSubmissionRepository(database),
			Tx:          repository.NewTransactor(database),
		},
		DeviceTokens: service.NewDeviceTokens(cfg.DeviceSecret, cfg.DeviceStateTTL, cfg.SessionTTL, cfg.SecureCookies),
		refresher:    cache.NewRefresher(),
		resolvers:    identity.NewHTTPResolvers(cfg.IPResolverEndpoints, cfg.IPResolverTimeout),
	}

	// Device-local state
	if cfg.RedisURL != "" {
		client, err := localstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize device store: %w", err)
		}
		a.Redis = client
		slog.Info("device store connected", "backend", "redis")
	} else {
		a.memory = localstore.NewMemoryPool()
		slog.Info("device store in memory", "backend", "memory")
	}

	a.Settings = service.Settings{
		Tiers:             cfg.Tiers,
		CacheTTL:          cfg.CacheTTL,
		CacheStaleAfter:   cfg.CacheStaleAfter,
		UploadCooldown:    cfg.UploadCooldown,
		ExtraUploads:      cfg.ExtraUploads,
		ExtraUploadsCap:   cfg.ExtraUploadsCap,
		MinCompletionTime: cfg.MinCompletionTime,
		TaskURLs:          cfg.TaskURLs,
		Refresher:         a.refresher,
	}

	return a, nil
}

func (a *App) store(namespace string, ttl time.Duration) localstore.Store {
	if a.Redis != nil {
		return localstore.NewRedis(a.Redis, namespace, ttl)
	}
	return a.memory.Namespace(namespace)
}

// Gate builds the upload gate for the device that sent r. The Device
// middleware must have run so the device and session ids are in the context.
func (a *App) Gate(r *http.Request) *service.Gate {
	ctx := r.Context()
	deviceID := ctxkeys.DeviceID(ctx)
	sessionID := ctxkeys.SessionID(ctx)

	resolvers := make([]identity.Resolver, 0, len(a.resolvers)+1)
	resolvers = append(resolvers, identity.RequestResolver{Request: r})
	resolvers = append(resolvers, a.resolvers...)

	provider := identity.NewProvider(
		identity.AttributesFromRequest(r),
		a.store("session:"+sessionID, a.Cfg.SessionTTL),
		resolvers...,
	)

	device := service.Device{
		ID:       deviceID,
		Identity: provider,
		Store:    a.store("device:"+deviceID, a.Cfg.DeviceStateTTL),
	}

	return service.NewDeviceGate(a.Repos, device, a.Settings)
}

// Close waits for background cache refreshes before closing the stores they use.
func (a *App) Close() error {
	a.refresher.Wait()

	var firstErr error
	if a.Redis != nil {
		err := a.Redis.Close()
		if err != nil {
			firstErr = err
		}
	}
	err := db.Close(a.DB)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

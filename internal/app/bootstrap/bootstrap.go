// Package bootstrap turns process configuration into the stores and
// collaborators the application is built from.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/media"
	aisvc "github.com/R3E-Network/studio_layer/internal/app/services/ai"
	"github.com/R3E-Network/studio_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/studio_layer/internal/app/storage/redis"
	"github.com/R3E-Network/studio_layer/internal/app/storage/supabase"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/internal/platform/migrations"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
)

// ChatTTL is how long an idle consultant conversation is kept in Redis.
const ChatTTL = 30 * 24 * time.Hour

// Runtime holds the assembled dependencies and the resources to release.
type Runtime struct {
	Stores   app.Stores
	Options  app.Options
	// Upstream is set when the Supabase backend is in use.
	Upstream *sb.ResilientClient

	closers []func() error
}

// Close releases database and cache connections.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// connectors opens the external backends. Tests replace individual entries
// to force failures part way through Build.
type connectors struct {
	supabase func(sb.EnhancedConfig) (*sb.Client, *sb.ResilientClient, error)
	migrate  func(databaseURL string) error
	postgres func(ctx context.Context, dsn string) (*sqlx.DB, error)
	redis    func(ctx context.Context, addr string, db int) (*goredis.Client, error)
	minio    func(ctx context.Context, cfg media.MinioConfig) (media.ImageStore, error)
	gemini   func(ctx context.Context, key string) (aisvc.Generator, error)
}

var defaultConnectors = connectors{
	supabase: sb.NewEnhanced,
	migrate:  migrations.Up,
	postgres: postgres.Open,
	redis:    redis.Dial,
	minio: func(ctx context.Context, cfg media.MinioConfig) (media.ImageStore, error) {
		return media.NewMinioStore(ctx, cfg)
	},
	gemini: aisvc.NewGemini,
}

// Build connects the configured backends. On error every connection opened
// so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	return build(ctx, cfg, log, defaultConnectors)
}

func build(ctx context.Context, cfg *config.Config, log *logger.Logger, conn connectors) (_ *Runtime, err error) {
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	studios, err := config.LoadStudioConfig(cfg.StudioFile)
	if err != nil {
		log.WithError(err).Warnf("studio catalogue %s unavailable; using defaults", cfg.StudioFile)
		studios = config.DefaultStudioConfig()
	}
	rt.Options = app.Options{
		Studios:          studios,
		JWTSecret:        cfg.JWTSecret,
		TokenTTL:         cfg.TokenTTL,
		SweepSchedule:    cfg.SweepSchedule,
		LowStockSchedule: cfg.LowStockSchedule,
	}

	var sbClient *sb.Client
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		sbClient, rt.Upstream, err = conn.supabase(sb.EnhancedConfig{
			Config:  sb.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey},
			Retry:   sb.DefaultRetryPolicy(),
			Breaker: sb.DefaultBreakerPolicy(),
			OnRetry: func(req *http.Request, attempt int, err error) {
				log.WithFields(map[string]interface{}{
					"path":    req.URL.Path,
					"attempt": attempt,
				}).WithError(err).Warn("retrying supabase request")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("supabase client: %w", err)
		}
		store := supabase.New(sbClient)
		rt.Stores = app.Stores{
			Clients:      store,
			Appointments: store,
			Consents:     store,
			Medical:      store,
			Inventory:    store,
			Flash:        store,
			Reviews:      store,
			Gallery:      store,
		}
		if cfg.RealtimeEnabled {
			rt.Options.Realtime = sb.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabaseKey)
		}
		log.Info("using supabase store")
	case config.BackendPostgres:
		if err := conn.migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := conn.postgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		store := postgres.New(db)
		rt.Stores = app.Stores{
			Clients:      store,
			Appointments: store,
			Consents:     store,
			Medical:      store,
			Inventory:    store,
			Flash:        store,
			Reviews:      store,
			Gallery:      store,
		}
		log.Info("using postgres store")
	default:
		log.Warn("using in-memory store; data is lost on restart")
	}

	if cfg.RedisAddr != "" {
		rdb, err := conn.redis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rdb.Close)
		rt.Stores.Chats = redis.NewChatStore(rdb, ChatTTL)
		log.WithField("addr", cfg.RedisAddr).Info("consultant history in redis")
	}

	switch {
	case cfg.MinioEnabled():
		images, err := conn.minio(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		rt.Options.Images = images
	case sbClient != nil:
		rt.Options.Images = media.NewBucketStore(sbClient, cfg.SupabaseBucket)
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := conn.gemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		rt.Options.Generator = gen
	}
	return rt, nil
}

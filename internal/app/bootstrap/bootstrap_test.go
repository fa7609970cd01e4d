package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/studio_layer/internal/app/media"
	aisvc "github.com/R3E-Network/studio_layer/internal/app/services/ai"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	"github.com/R3E-Network/studio_layer/pkg/testutil"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
)

var errDown = errors.New("backend down")

// fakeBackends hands out connections whose closing the tests can observe.
type fakeBackends struct {
	t      *testing.T
	mock   sqlmock.Sqlmock
	rdb    *goredis.Client
	opened []string
}

func newFakeBackends(t *testing.T) *fakeBackends {
	t.Helper()
	return &fakeBackends{t: t}
}

func (f *fakeBackends) connectors() connectors {
	return connectors{
		supabase: func(cfg sb.EnhancedConfig) (*sb.Client, *sb.ResilientClient, error) {
			f.opened = append(f.opened, "supabase")
			return sb.NewEnhanced(cfg)
		},
		migrate: func(string) error {
			f.opened = append(f.opened, "migrate")
			return nil
		},
		postgres: func(context.Context, string) (*sqlx.DB, error) {
			f.opened = append(f.opened, "postgres")
			db, mock, err := sqlmock.New()
			require.NoError(f.t, err)
			mock.ExpectClose()
			f.mock = mock
			return sqlx.NewDb(db, "postgres"), nil
		},
		redis: func(_ context.Context, addr string, db int) (*goredis.Client, error) {
			f.opened = append(f.opened, "redis")
			f.rdb = goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
			return f.rdb, nil
		},
		minio: func(context.Context, media.MinioConfig) (media.ImageStore, error) {
			f.opened = append(f.opened, "minio")
			return testutil.NewMockImageStore(), nil
		},
		gemini: func(context.Context, string) (aisvc.Generator, error) {
			f.opened = append(f.opened, "gemini")
			return nil, nil
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StudioFile:   filepath.Join(t.TempDir(), "missing.yaml"),
		StoreBackend: config.BackendMemory,
	}
}

func TestBuildUnreachableRedisReturnsError(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	var (
		rt  *Runtime
		err error
	)
	require.NotPanics(t, func() {
		rt, err = Build(context.Background(), cfg, logger.NewDefault("test"))
	})
	assert.Error(t, err)
	assert.Nil(t, rt)
}

func TestBuildFailureClosesEarlierConnections(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(cfg *config.Config, conn *connectors)
		opened []string
		check  func(t *testing.T, f *fakeBackends)
	}{
		{
			name: "supabase client",
			setup: func(cfg *config.Config, _ *connectors) {
				cfg.StoreBackend = config.BackendSupabase
			},
			opened: []string{"supabase"},
		},
		{
			name: "migrations",
			setup: func(cfg *config.Config, conn *connectors) {
				cfg.StoreBackend = config.BackendPostgres
				cfg.DatabaseURL = "postgres://studio@localhost/studio"
				conn.migrate = func(string) error { return errDown }
			},
			opened: nil,
		},
		{
			name: "redis dial",
			setup: func(cfg *config.Config, conn *connectors) {
				cfg.StoreBackend = config.BackendPostgres
				cfg.DatabaseURL = "postgres://studio@localhost/studio"
				cfg.RedisAddr = "127.0.0.1:1"
				conn.redis = func(context.Context, string, int) (*goredis.Client, error) { return nil, errDown }
			},
			opened: []string{"migrate", "postgres"},
			check: func(t *testing.T, f *fakeBackends) {
				assert.NoError(t, f.mock.ExpectationsWereMet(), "postgres handle left open")
			},
		},
		{
			name: "minio",
			setup: func(cfg *config.Config, conn *connectors) {
				cfg.StoreBackend = config.BackendPostgres
				cfg.DatabaseURL = "postgres://studio@localhost/studio"
				cfg.RedisAddr = "127.0.0.1:1"
				cfg.MinioEndpoint = "localhost:9000"
				cfg.MinioAccessKey = "studio"
				cfg.MinioSecretKey = "secret"
				conn.minio = func(context.Context, media.MinioConfig) (media.ImageStore, error) { return nil, errDown }
			},
			opened: []string{"migrate", "postgres", "redis"},
			check: func(t *testing.T, f *fakeBackends) {
				assert.NoError(t, f.mock.ExpectationsWereMet(), "postgres handle left open")
				assert.ErrorContains(t, f.rdb.Ping(context.Background()).Err(), "closed")
			},
		},
		{
			name: "gemini",
			setup: func(cfg *config.Config, conn *connectors) {
				cfg.RedisAddr = "127.0.0.1:1"
				cfg.GeminiAPIKey = "key"
				conn.gemini = func(context.Context, string) (aisvc.Generator, error) { return nil, errDown }
			},
			opened: []string{"redis"},
			check: func(t *testing.T, f *fakeBackends) {
				assert.ErrorContains(t, f.rdb.Ping(context.Background()).Err(), "closed")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeBackends(t)
			conn := f.connectors()
			cfg := testConfig(t)
			tc.setup(cfg, &conn)

			var (
				rt  *Runtime
				err error
			)
			require.NotPanics(t, func() {
				rt, err = build(context.Background(), cfg, logger.NewDefault("test"), conn)
			})
			require.Error(t, err)
			assert.Nil(t, rt)
			assert.Equal(t, tc.opened, f.opened)
			if tc.check != nil {
				tc.check(t, f)
			}
		})
	}
}

func TestBuildSuccessOwnsConnections(t *testing.T) {
	f := newFakeBackends(t)
	cfg := testConfig(t)
	cfg.StoreBackend = config.BackendPostgres
	cfg.DatabaseURL = "postgres://studio@localhost/studio"
	cfg.RedisAddr = "127.0.0.1:1"

	rt, err := build(context.Background(), cfg, logger.NewDefault("test"), f.connectors())
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.NotNil(t, rt.Stores.Clients)
	assert.NotNil(t, rt.Stores.Chats)
	assert.Equal(t, "bribiesca", rt.Options.Studios.Studios[0].ID)

	require.NoError(t, rt.Close())
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.ErrorContains(t, f.rdb.Ping(context.Background()).Err(), "closed")
	assert.NoError(t, rt.Close(), "second close is a no-op")
}

//go:build integration && postgres

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/internal/platform/migrations"
)

// Booking and consent flows against a real Postgres schema.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	require.NoError(t, migrations.Up(dsn))
	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Clients:      store,
		Appointments: store,
		Consents:     store,
		Medical:      store,
		Inventory:    store,
		Flash:        store,
		Reviews:      store,
		Gallery:      store,
	}, app.Options{Studios: config.DefaultStudioConfig(), JWTSecret: "integration-secret"}, nil)
	require.NoError(t, err)
	h := NewHandler(application, Options{Version: "integration"})

	username := fmt.Sprintf("it%d", time.Now().UnixNano())
	clientToken, clientID := registerClient(t, h, username)
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	date := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/appointments", clientToken, map[string]string{
		"name":    "Integración",
		"contact": username + "@example.com",
		"date":    date,
		"time":    "11:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	apptID := decodeBody[map[string]any](t, rec)["id"].(string)
	t.Cleanup(func() {
		do(t, h, http.MethodDelete, "/studios/"+studio+"/appointments/"+apptID, adminToken, nil)
		do(t, h, http.MethodDelete, "/studios/"+studio+"/clients/"+clientID, adminToken, nil)
	})

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/availability?date="+date, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["booked"])

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/consents", adminToken, map[string]string{"client_id": clientID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/consents", clientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decodeBody[map[string][]map[string]any](t, rec)
	assert.Len(t, lists["pending"], 1)
}

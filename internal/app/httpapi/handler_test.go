package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/internal/httputil"
	"github.com/R3E-Network/studio_layer/internal/middleware"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
)

const studio = "bribiesca"

func newTestAPI(t *testing.T) (http.Handler, *app.Application, *AuditLog) {
	t.Helper()
	studios := config.DefaultStudioConfig()
	studios.Studios = append(studios.Studios, config.Studio{
		ID:     "norte",
		Name:   "Norte Ink",
		Admins: []config.Admin{{Username: "lupe", Password: "norte_admin"}},
	})
	application, err := app.New(app.Stores{}, app.Options{Studios: studios, JWTSecret: "test-secret"}, nil)
	require.NoError(t, err)
	audit := NewAuditLog(10, nil)
	return NewHandler(application, Options{Version: "test", Audit: audit}), application, audit
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func login(t *testing.T, h http.Handler, studioID, username, password string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/studios/"+studioID+"/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[map[string]any](t, rec)["token"].(string)
}

func registerClient(t *testing.T, h http.Handler, username string) (token, id string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/auth/register", "", map[string]string{
		"full_name": "Ana López",
		"username":  username,
		"email":     username + "@example.com",
		"whatsapp":  "5512345678",
		"password":  "secreto1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	return body["token"].(string), body["user_id"].(string)
}

func TestHealthAndInfo(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.TraceHeader))

	rec = do(t, h, http.MethodGet, "/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, false, info["ai_enabled"])
	assert.Len(t, info["studios"], 2)
}

func TestTenantResolution(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/studios/unknown/gallery", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	token := login(t, h, "norte", "lupe", "norte_admin")
	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/clients", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/norte/clients", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGates(t *testing.T) {
	h, _, _ := newTestAPI(t)
	clientToken, _ := registerClient(t, h, "ana")
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodGet, "/studios/"+studio+"/clients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/clients", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	errBody := decodeBody[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "No tienes permiso para esta acción.", errBody.Error)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/clients?q=ana", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "ana", list[0]["username"])
	assert.Nil(t, list[0]["password"])
}

func TestLoginFailures(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/auth/login", "", map[string]string{"username": "nadie", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/auth/login", "", map[string]string{"username": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/studios/"+studio+"/auth/login", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginIgnoresStaleToken(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/auth/login", "expired.or.garbage", map[string]string{
		"username": "johana_admin",
		"password": "123_admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody[map[string]any](t, rec)["token"])

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/profile", "expired.or.garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordRecovery(t *testing.T) {
	h, _, _ := newTestAPI(t)
	registerClient(t, h, "ana")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/auth/recover", "", map[string]string{
		"email":        "ana@example.com",
		"new_password": "nueva123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "¡CONTRASEÑA ACTUALIZADA CON ÉXITO!", body["message"])
	assert.NotContains(t, body, "username")

	login(t, h, studio, "ana", "nueva123")
}

func TestBookingFlow(t *testing.T) {
	h, _, _ := newTestAPI(t)
	clientToken, _ := registerClient(t, h, "ana")
	adminToken := login(t, h, studio, "harold", "123_admin")
	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/appointments", clientToken, map[string]string{
		"name":    "Ana López",
		"contact": "ana@example.com",
		"idea":    "Rosa en el antebrazo",
		"date":    date,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "14:00", appt["time"])
	id := appt["id"].(string)

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/appointments", clientToken, map[string]string{
		"name":    "Ana López",
		"contact": "no-es-correo",
		"date":    date,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/availability?date="+date, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["booked"])

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/availability?month="+date[:7], "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[map[string]any](t, rec)["dates"], date)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/appointments", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	split := decodeBody[map[string][]map[string]any](t, rec)
	require.Len(t, split["scheduled"], 1)
	assert.Empty(t, split["past"])

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/appointments/"+id+"/complete", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/appointments", adminToken, nil)
	split = decodeBody[map[string][]map[string]any](t, rec)
	assert.Empty(t, split["scheduled"])
	assert.Len(t, split["past"], 1)

	rec = do(t, h, http.MethodDelete, "/studios/"+studio+"/appointments/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/appointments/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsentFlow(t *testing.T) {
	h, application, _ := newTestAPI(t)
	clientToken, clientID := registerClient(t, h, "ana")
	otherToken, _ := registerClient(t, h, "beto")
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/consents", adminToken, map[string]string{"client_id": clientID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeBody[map[string]any](t, rec)
	assert.Contains(t, doc["content"], "Ana López")
	id := doc["id"].(string)

	recent := application.Hub.Recent(studio, "ana", 5)
	require.NotEmpty(t, recent)
	assert.Equal(t, notification.KindConsentSent, recent[0].Kind)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/consents", clientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lists := decodeBody[map[string][]map[string]any](t, rec)
	assert.Len(t, lists["pending"], 1)
	assert.Empty(t, lists["signed"])

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/consents/"+id, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	signature := "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/consents/"+id+"/sign", clientToken, map[string]string{"signature": signature})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "signed", decodeBody[map[string]any](t, rec)["status"])

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/consents/"+id+"/sign", clientToken, map[string]string{"signature": signature})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(1), stats["signed_consents"])

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/notifications", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decodeBody[[]map[string]any](t, rec)
	require.NotEmpty(t, feed)
	assert.Equal(t, notification.KindConsentSigned, feed[0]["kind"])
}

func TestMedicalFormAndPDF(t *testing.T) {
	h, _, _ := newTestAPI(t)
	clientToken, _ := registerClient(t, h, "ana")
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/medical", clientToken, map[string]any{
		"client_name": "Ana López",
		"age":         28,
		"conditions":  []string{"Diabetes", "Desconocida"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	form := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ana", form["client_username"])
	assert.Equal(t, []any{"Diabetes"}, form["conditions"])
	id := form["id"].(string)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/medical?q=ana", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/medical/"+id+"/pdf", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestInventoryAndFlash(t *testing.T) {
	h, _, _ := newTestAPI(t)
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/inventory", adminToken, map[string]any{
		"item_name": "Tinta negra",
		"quantity":  2,
		"min_stock": 5,
		"category":  "Tintas",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/inventory?low=true", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/inventory/"+id+"/stock", adminToken, map[string]int{"delta": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), decodeBody[map[string]any](t, rec)["quantity"])

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/inventory/"+id+"/stock", adminToken, map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/flash", adminToken, map[string]any{
		"title":        "Golondrina",
		"price":        800,
		"size_cm":      8,
		"image_url":    "https://example.com/golondrina.png",
		"is_available": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	flashID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = do(t, h, http.MethodPost, "/studios/"+studio+"/flash/"+flashID+"/toggle", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/flash", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/flash", adminToken, nil)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestPublicTools(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/studios/"+studio+"/budget?size_cm=10&style=Sombreado&color=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote struct {
		Estimate map[string]any `json:"estimate"`
		Styles   []string       `json:"styles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, float64(230), quote.Estimate["price"])
	assert.Equal(t, float64(276), quote.Estimate["max"])
	assert.Contains(t, quote.Styles, "Sombreado")

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/budget?size_cm=99", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/aftercare", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	steps := decodeBody[[]map[string]string](t, rec)
	require.Len(t, steps, 3)
	assert.Equal(t, "Limpieza Crítica", steps[0]["title"])

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/tips/today", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tip := decodeBody[map[string]string](t, rec)
	assert.NotEmpty(t, tip["tip"])
	assert.Len(t, tip["date"], len("2006-01-02"))

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/gallery?sort=oldest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 8)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTipOfTheDayUsesUTCDate(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{Studios: config.DefaultStudioConfig(), JWTSecret: "test-secret"}, nil)
	require.NoError(t, err)
	mexico := time.FixedZone("CST", -6*60*60)
	lateEvening := time.Date(2026, 3, 1, 22, 30, 0, 0, mexico)
	h := NewHandler(application, Options{Now: func() time.Time { return lateEvening }})

	rec := do(t, h, http.MethodGet, "/studios/"+studio+"/tips/today", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tip := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "2026-03-02", tip["date"])
	assert.Equal(t, application.Budget.Tip(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)), tip["tip"])
}

func TestAIWithoutGenerator(t *testing.T) {
	h, _, _ := newTestAPI(t)
	token, _ := registerClient(t, h, "ana")

	rec := do(t, h, http.MethodPost, "/studios/"+studio+"/ai/designs", token, map[string]string{"idea": "un lobo"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, h, http.MethodGet, "/studios/"+studio+"/ai/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestAuditRecordsMutations(t *testing.T) {
	h, _, audit := newTestAPI(t)
	registerClient(t, h, "ana")
	adminToken := login(t, h, studio, "johana_admin", "123_admin")
	do(t, h, http.MethodGet, "/studios/"+studio+"/gallery", "", nil)

	entries := audit.List(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "/studios/"+studio+"/auth/register", entries[0].Path)
	assert.Equal(t, http.StatusCreated, entries[0].Status)
	assert.Equal(t, studio, entries[0].Studio)

	rec := do(t, h, http.MethodGet, "/admin/audit?limit=1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string][]AuditEntry](t, rec)
	require.Len(t, body["entries"], 1)
	assert.Equal(t, "/studios/"+studio+"/auth/login", body["entries"][0].Path)
}

func TestSystemStatusRequiresAdmin(t *testing.T) {
	h, _, _ := newTestAPI(t)
	adminToken := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodGet, "/system/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/system/status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[map[string]any](t, rec)
	assert.Contains(t, status, "goroutines")
	assert.Contains(t, status, "host")
	assert.NotContains(t, status, "upstream")
}

func TestSystemStatusReportsUpstream(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{Studios: config.DefaultStudioConfig(), JWTSecret: "test-secret"}, nil)
	require.NoError(t, err)
	rc := sb.NewResilientClient(sb.ResilientConfig{
		Retry:   sb.DefaultRetryPolicy(),
		Breaker: sb.DefaultBreakerPolicy(),
	})
	h := NewHandler(application, Options{Upstream: rc})
	token := login(t, h, studio, "johana_admin", "123_admin")

	rec := do(t, h, http.MethodGet, "/system/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[map[string]any](t, rec)
	upstream, ok := status["upstream"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "closed", upstream["circuit"])
	assert.Contains(t, upstream["requests"], "total_requests")
}

func TestNotificationSocket(t *testing.T) {
	h, application, _ := newTestAPI(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	token := login(t, h, studio, "johana_admin", "123_admin")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/studios/" + studio + "/notifications/ws?" + middleware.TokenQueryParam + "=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return application.Hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	application.Hub.Publish(context.Background(), notification.Notification{
		StudioID: studio,
		Kind:     notification.KindLowStock,
		Audience: notification.AudienceAdmin,
		Message:  "stock bajo",
	})
	application.Hub.Publish(context.Background(), notification.Notification{
		StudioID: studio,
		Kind:     notification.KindConsentSent,
		Audience: "ana",
		Message:  "no es para staff",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notification.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, notification.KindLowStock, got.Kind)
	assert.Equal(t, "stock bajo", got.Message)

	rec := do(t, h, http.MethodGet, "/studios/"+studio+"/notifications/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	db, err := sb.New(sb.Config{URL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	return New(db)
}

func TestCreateClientPostsRowArray(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/clients", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(body, &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "bribiesca", rows[0]["studio_id"])
		assert.NotEmpty(t, rows[0]["id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})

	c, err := store.CreateClient(context.Background(), client.Client{StudioID: "bribiesca", Name: "Ana", Contact: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.NotEmpty(t, c.ID)
}

func TestCreateClientMapsUniqueViolation(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"clients_username_key\""}`))
	})

	_, err := store.CreateClient(context.Background(), client.Client{StudioID: "bribiesca", Username: "ana"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "err = %v", err)
}

func TestFindClientByUsernameScopesStudio(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.bribiesca", q.Get("studio_id"))
		assert.Equal(t, "eq.ana", q.Get("username"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`))
	})

	_, err := store.FindClientByUsername(context.Background(), "bribiesca", "ana")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListConsentsByUsernameOrdersNewestFirst(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.ana", q.Get("client_username"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		_, _ = w.Write([]byte(`[{"id":"c2","client_username":"ana","status":"signed"},{"id":"c1","client_username":"ana","status":"pending"}]`))
	})

	list, err := store.ListConsentsByUsername(context.Background(), "bribiesca", "ana")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, consent.StatusSigned, list[0].Status)
}

func TestUpdateWithNoMatchingRowIsNotFound(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.x", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.UpdateInventoryItem(context.Background(), inventory.Item{ID: "x", StudioID: "bribiesca"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignConsentRequiresUnsignedRow(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.x", q.Get("id"))
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "is.null", q.Get("signed_at"))
			var patch map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			assert.Equal(t, consent.StatusSigned, patch["status"])
			assert.Equal(t, "data:image/png;base64,AA==", patch["signature"])
			_, _ = w.Write([]byte(`[]`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"x","status":"signed"}`))
		}
	})

	_, err := store.SignConsent(context.Background(), "bribiesca", "x", "data:image/png;base64,AA==", time.Now())
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestAdjustInventoryQuantityRetriesAfterConcurrentWrite(t *testing.T) {
	stock := 5
	patches := 0
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = fmt.Fprintf(w, `{"id":"i1","studio_id":"bribiesca","quantity":%d}`, stock)
		case http.MethodPatch:
			patches++
			if patches == 1 {
				assert.Equal(t, "eq.5", r.URL.Query().Get("quantity"))
				stock = 7
				_, _ = w.Write([]byte(`[]`))
				return
			}
			assert.Equal(t, "eq.7", r.URL.Query().Get("quantity"))
			var patch map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			assert.Equal(t, 9, patch["quantity"])
			_, _ = fmt.Fprintf(w, `[{"id":"i1","studio_id":"bribiesca","quantity":%d}]`, patch["quantity"])
		}
	})

	item, err := store.AdjustInventoryQuantity(context.Background(), "bribiesca", "i1", 2)
	require.NoError(t, err)
	assert.Equal(t, 9, item.Quantity)
	assert.Equal(t, 2, patches)

	_, err = store.AdjustInventoryQuantity(context.Background(), "bribiesca", "i1", -10)
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
	assert.Equal(t, 2, patches)
}

func TestDeleteInventoryItem(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/rest/v1/inventory", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"i1"}]`))
	})

	require.NoError(t, store.DeleteInventoryItem(context.Background(), "bribiesca", "i1"))
}

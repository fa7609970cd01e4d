// Package supabase implements the storage interfaces over the Supabase REST
// (PostgREST) API. Each studio's rows are isolated by a studio_id filter.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/appointment"
	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/flash"
	"github.com/R3E-Network/studio_layer/internal/app/domain/gallery"
	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	"github.com/R3E-Network/studio_layer/internal/app/domain/medical"
	"github.com/R3E-Network/studio_layer/internal/app/domain/review"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
	"github.com/google/uuid"
)

// Table names.
const (
	TableClients      = "clients"
	TableAppointments = "appointments"
	TableConsents     = "consents"
	TableMedical      = "medical_histories"
	TableInventory    = "inventory"
	TableFlash        = "flash_sets"
	TableReviews      = "reviews"
	TableGallery      = "gallery_items"
)

// Store implements the storage interfaces backed by Supabase.
type Store struct {
	db *sb.Client
}

var _ storage.ClientStore = (*Store)(nil)
var _ storage.AppointmentStore = (*Store)(nil)
var _ storage.ConsentStore = (*Store)(nil)
var _ storage.MedicalStore = (*Store)(nil)
var _ storage.InventoryStore = (*Store)(nil)
var _ storage.FlashStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.GalleryStore = (*Store)(nil)

// New creates a Store using the provided Supabase client.
func New(db *sb.Client) *Store {
	return &Store{db: db}
}

func (s *Store) scoped(table, studioID string) *sb.QueryBuilder {
	return s.db.From(table).Select("*").Eq("studio_id", studioID)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case sb.IsNoRows(err):
		return storage.ErrNotFound
	case sb.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	default:
		return err
	}
}

func insertOne[T any](ctx context.Context, q *sb.QueryBuilder, in T) (T, error) {
	var zero T
	resp, err := q.ExecuteInsert(ctx, []T{in})
	if err != nil {
		return zero, err
	}
	var rows []T
	if err := resp.Into(&rows); err != nil {
		return zero, mapErr(err)
	}
	if len(rows) == 0 {
		return in, nil
	}
	return rows[0], nil
}

func updateOne[T any](ctx context.Context, q *sb.QueryBuilder, in T) (T, error) {
	return patchOne[T](ctx, q, in)
}

// patchOne sends a partial update and decodes the single affected row.
// No matching row yields ErrNotFound.
func patchOne[T any](ctx context.Context, q *sb.QueryBuilder, patch any) (T, error) {
	var zero T
	resp, err := q.ExecuteUpdate(ctx, patch)
	if err != nil {
		return zero, err
	}
	var rows []T
	if err := resp.Into(&rows); err != nil {
		return zero, mapErr(err)
	}
	if len(rows) == 0 {
		return zero, storage.ErrNotFound
	}
	return rows[0], nil
}

func selectOne[T any](ctx context.Context, q *sb.QueryBuilder) (T, error) {
	var out T
	resp, err := q.Limit(1).Single().Execute(ctx)
	if err != nil {
		return out, err
	}
	if err := resp.Into(&out); err != nil {
		return out, mapErr(err)
	}
	return out, nil
}

func selectMany[T any](ctx context.Context, q *sb.QueryBuilder) ([]T, error) {
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := resp.Into(&rows); err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func deleteOne(ctx context.Context, q *sb.QueryBuilder) error {
	resp, err := q.ExecuteDelete(ctx)
	if err != nil {
		return err
	}
	var rows []map[string]any
	if err := resp.Into(&rows); err != nil {
		return mapErr(err)
	}
	if len(rows) == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) byID(table, studioID, id string) *sb.QueryBuilder {
	return s.db.From(table).Eq("studio_id", studioID).Eq("id", id)
}

// --- ClientStore ------------------------------------------------------------

func (s *Store) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableClients), c)
}

func (s *Store) UpdateClient(ctx context.Context, c client.Client) (client.Client, error) {
	return updateOne(ctx, s.byID(TableClients, c.StudioID, c.ID), c)
}

func (s *Store) GetClient(ctx context.Context, studioID, id string) (client.Client, error) {
	return selectOne[client.Client](ctx, s.scoped(TableClients, studioID).Eq("id", id))
}

func (s *Store) ListClients(ctx context.Context, studioID string) ([]client.Client, error) {
	return selectMany[client.Client](ctx, s.scoped(TableClients, studioID).Order("created_at", true))
}

func (s *Store) DeleteClient(ctx context.Context, studioID, id string) error {
	return deleteOne(ctx, s.byID(TableClients, studioID, id))
}

func (s *Store) FindClientByContact(ctx context.Context, studioID, contact string) (client.Client, error) {
	return selectOne[client.Client](ctx, s.scoped(TableClients, studioID).Eq("contact", contact))
}

func (s *Store) FindClientByUsername(ctx context.Context, studioID, username string) (client.Client, error) {
	return selectOne[client.Client](ctx, s.scoped(TableClients, studioID).Eq("username", username))
}

// --- AppointmentStore -------------------------------------------------------

func (s *Store) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableAppointments), a)
}

func (s *Store) UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	return updateOne(ctx, s.byID(TableAppointments, a.StudioID, a.ID), a)
}

func (s *Store) GetAppointment(ctx context.Context, studioID, id string) (appointment.Appointment, error) {
	return selectOne[appointment.Appointment](ctx, s.scoped(TableAppointments, studioID).Eq("id", id))
}

func (s *Store) ListAppointments(ctx context.Context, studioID string) ([]appointment.Appointment, error) {
	return selectMany[appointment.Appointment](ctx, s.scoped(TableAppointments, studioID).Order("date", true).Order("time", true))
}

func (s *Store) DeleteAppointment(ctx context.Context, studioID, id string) error {
	return deleteOne(ctx, s.byID(TableAppointments, studioID, id))
}

// --- ConsentStore -----------------------------------------------------------

func (s *Store) CreateConsent(ctx context.Context, c consent.Consent) (consent.Consent, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableConsents), c)
}

func (s *Store) SignConsent(ctx context.Context, studioID, id, signature string, signedAt time.Time) (consent.Consent, error) {
	patch := map[string]any{
		"status":    consent.StatusSigned,
		"signature": signature,
		"signed_at": signedAt.UTC(),
	}
	c, err := patchOne[consent.Consent](ctx, s.byID(TableConsents, studioID, id).Is("signed_at", "null"), patch)
	if errors.Is(err, storage.ErrNotFound) {
		if _, err := s.GetConsent(ctx, studioID, id); err != nil {
			return consent.Consent{}, err
		}
		return consent.Consent{}, fmt.Errorf("%w: consent %s already signed", storage.ErrConflict, id)
	}
	return c, err
}

func (s *Store) GetConsent(ctx context.Context, studioID, id string) (consent.Consent, error) {
	return selectOne[consent.Consent](ctx, s.scoped(TableConsents, studioID).Eq("id", id))
}

func (s *Store) ListConsents(ctx context.Context, studioID string) ([]consent.Consent, error) {
	return selectMany[consent.Consent](ctx, s.scoped(TableConsents, studioID).Order("created_at", false))
}

func (s *Store) ListConsentsByUsername(ctx context.Context, studioID, username string) ([]consent.Consent, error) {
	return selectMany[consent.Consent](ctx, s.scoped(TableConsents, studioID).
		Eq("client_username", username).
		Order("created_at", false))
}

// --- MedicalStore -----------------------------------------------------------

func (s *Store) CreateMedicalHistory(ctx context.Context, h medical.History) (medical.History, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if h.Conditions == nil {
		h.Conditions = []string{}
	}
	return insertOne(ctx, s.db.From(TableMedical), h)
}

func (s *Store) GetMedicalHistory(ctx context.Context, studioID, id string) (medical.History, error) {
	return selectOne[medical.History](ctx, s.scoped(TableMedical, studioID).Eq("id", id))
}

func (s *Store) ListMedicalHistories(ctx context.Context, studioID string) ([]medical.History, error) {
	return selectMany[medical.History](ctx, s.scoped(TableMedical, studioID).Order("created_at", false))
}

// --- InventoryStore ---------------------------------------------------------

func (s *Store) CreateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return insertOne(ctx, s.db.From(TableInventory), item)
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	return updateOne(ctx, s.byID(TableInventory, item.StudioID, item.ID), item)
}

// adjustAttempts bounds the compare-and-swap retries of AdjustInventoryQuantity.
const adjustAttempts = 5

// AdjustInventoryQuantity swaps the quantity only if it is unchanged since it
// was read. PostgREST has no column arithmetic in a PATCH.
func (s *Store) AdjustInventoryQuantity(ctx context.Context, studioID, id string, delta int) (inventory.Item, error) {
	for attempt := 0; attempt < adjustAttempts; attempt++ {
		item, err := s.GetInventoryItem(ctx, studioID, id)
		if err != nil {
			return inventory.Item{}, err
		}
		if item.Quantity+delta < 0 {
			return inventory.Item{}, storage.ErrInsufficientStock
		}
		q := s.byID(TableInventory, studioID, id).Eq("quantity", item.Quantity)
		updated, err := patchOne[inventory.Item](ctx, q, map[string]any{"quantity": item.Quantity + delta})
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		return updated, err
	}
	return inventory.Item{}, fmt.Errorf("%w: inventory %s changed concurrently", storage.ErrConflict, id)
}

func (s *Store) GetInventoryItem(ctx context.Context, studioID, id string) (inventory.Item, error) {
	return selectOne[inventory.Item](ctx, s.scoped(TableInventory, studioID).Eq("id", id))
}

func (s *Store) ListInventoryItems(ctx context.Context, studioID string) ([]inventory.Item, error) {
	return selectMany[inventory.Item](ctx, s.scoped(TableInventory, studioID).Order("category", true))
}

func (s *Store) DeleteInventoryItem(ctx context.Context, studioID, id string) error {
	return deleteOne(ctx, s.byID(TableInventory, studioID, id))
}

// --- FlashStore -------------------------------------------------------------

func (s *Store) CreateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableFlash), d)
}

func (s *Store) UpdateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error) {
	return updateOne(ctx, s.byID(TableFlash, d.StudioID, d.ID), d)
}

func (s *Store) GetFlashDesign(ctx context.Context, studioID, id string) (flash.Design, error) {
	return selectOne[flash.Design](ctx, s.scoped(TableFlash, studioID).Eq("id", id))
}

func (s *Store) ListFlashDesigns(ctx context.Context, studioID string) ([]flash.Design, error) {
	return selectMany[flash.Design](ctx, s.scoped(TableFlash, studioID).Order("created_at", false))
}

func (s *Store) DeleteFlashDesign(ctx context.Context, studioID, id string) error {
	return deleteOne(ctx, s.byID(TableFlash, studioID, id))
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableReviews), r)
}

func (s *Store) ListReviews(ctx context.Context, studioID string) ([]review.Review, error) {
	return selectMany[review.Review](ctx, s.scoped(TableReviews, studioID).Order("date", false))
}

// --- GalleryStore -----------------------------------------------------------

func (s *Store) CreateGalleryItem(ctx context.Context, item gallery.Item) (gallery.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return insertOne(ctx, s.db.From(TableGallery), item)
}

func (s *Store) ListGalleryItems(ctx context.Context, studioID string) ([]gallery.Item, error) {
	return selectMany[gallery.Item](ctx, s.scoped(TableGallery, studioID).Order("created_at", true))
}

package postgres

import (
	"context"
	"database/sql"
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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.ClientStore = (*Store)(nil)
var _ storage.AppointmentStore = (*Store)(nil)
var _ storage.ConsentStore = (*Store)(nil)
var _ storage.MedicalStore = (*Store)(nil)
var _ storage.InventoryStore = (*Store)(nil)
var _ storage.FlashStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.GalleryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Message)
	}
	return err
}

func expectOne(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ClientStore ------------------------------------------------------------

// clientRow overlays the array column on the domain type.
type clientRow struct {
	client.Client
	InkHistory pq.StringArray `db:"ink_history"`
}

func (r clientRow) domain() client.Client {
	c := r.Client
	c.InkHistory = []string(r.InkHistory)
	return c
}

const clientColumns = `id, studio_id, name, username, contact, whatsapp, notes, allergies, password, role, loyalty_points, ink_history, created_at`

func (s *Store) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (:id, :studio_id, :name, NULLIF(:username, ''), :contact, :whatsapp, :notes, :allergies, :password, :role, :loyalty_points, :ink_history, :created_at)
	`, clientRow{Client: c, InkHistory: pq.StringArray(c.InkHistory)})
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, c client.Client) (client.Client, error) {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE clients
		SET name = :name, username = NULLIF(:username, ''), contact = :contact, whatsapp = :whatsapp,
			notes = :notes, allergies = :allergies, password = :password, role = :role,
			loyalty_points = :loyalty_points, ink_history = :ink_history
		WHERE id = :id AND studio_id = :studio_id
	`, clientRow{Client: c, InkHistory: pq.StringArray(c.InkHistory)})
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	if err := expectOne(result); err != nil {
		return client.Client{}, err
	}
	return s.GetClient(ctx, c.StudioID, c.ID)
}

func (s *Store) getClientWhere(ctx context.Context, where string, args ...any) (client.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, studio_id, name, COALESCE(username, '') AS username, contact, whatsapp, notes, allergies,
			password, role, loyalty_points, ink_history, created_at
		FROM clients
		WHERE `+where+`
		LIMIT 1
	`, args...)
	if err != nil {
		return client.Client{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) GetClient(ctx context.Context, studioID, id string) (client.Client, error) {
	return s.getClientWhere(ctx, "studio_id = $1 AND id = $2", studioID, id)
}

func (s *Store) FindClientByContact(ctx context.Context, studioID, contact string) (client.Client, error) {
	return s.getClientWhere(ctx, "studio_id = $1 AND contact = $2", studioID, contact)
}

func (s *Store) FindClientByUsername(ctx context.Context, studioID, username string) (client.Client, error) {
	return s.getClientWhere(ctx, "studio_id = $1 AND username = $2", studioID, username)
}

func (s *Store) ListClients(ctx context.Context, studioID string) ([]client.Client, error) {
	var rows []clientRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, studio_id, name, COALESCE(username, '') AS username, contact, whatsapp, notes, allergies,
			password, role, loyalty_points, ink_history, created_at
		FROM clients
		WHERE studio_id = $1
		ORDER BY created_at
	`, studioID)
	if err != nil {
		return nil, err
	}
	out := make([]client.Client, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) DeleteClient(ctx context.Context, studioID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// --- AppointmentStore -------------------------------------------------------

const appointmentColumns = `id, studio_id, client_id, name, contact, idea, date, time, reminder_method, status,
	deposit_amount, deposit_paid, price_total, has_consent, created_at`

func (s *Store) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (:id, :studio_id, :client_id, :name, :contact, :idea, :date, :time, :reminder_method, :status,
			:deposit_amount, :deposit_paid, :price_total, :has_consent, :created_at)
	`, a)
	if err != nil {
		return appointment.Appointment{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE appointments
		SET client_id = :client_id, name = :name, contact = :contact, idea = :idea, date = :date, time = :time,
			reminder_method = :reminder_method, status = :status, deposit_amount = :deposit_amount,
			deposit_paid = :deposit_paid, price_total = :price_total, has_consent = :has_consent
		WHERE id = :id AND studio_id = :studio_id
	`, a)
	if err != nil {
		return appointment.Appointment{}, mapErr(err)
	}
	if err := expectOne(result); err != nil {
		return appointment.Appointment{}, err
	}
	return s.GetAppointment(ctx, a.StudioID, a.ID)
}

func (s *Store) GetAppointment(ctx context.Context, studioID, id string) (appointment.Appointment, error) {
	var a appointment.Appointment
	err := s.db.GetContext(ctx, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return appointment.Appointment{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, studioID string) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	err := s.db.SelectContext(ctx, &out, `SELECT `+appointmentColumns+` FROM appointments WHERE studio_id = $1 ORDER BY date, time`, studioID)
	return out, err
}

func (s *Store) DeleteAppointment(ctx context.Context, studioID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// --- ConsentStore -----------------------------------------------------------

const consentColumns = `id, studio_id, client_id, client_username, client_name, content, status, signature, signed_at, created_at`

func (s *Store) CreateConsent(ctx context.Context, c consent.Consent) (consent.Consent, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO consents (`+consentColumns+`)
		VALUES (:id, :studio_id, :client_id, :client_username, :client_name, :content, :status, :signature, :signed_at, :created_at)
	`, c)
	if err != nil {
		return consent.Consent{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) SignConsent(ctx context.Context, studioID, id, signature string, signedAt time.Time) (consent.Consent, error) {
	var c consent.Consent
	err := s.db.GetContext(ctx, &c, `
		UPDATE consents
		SET status = $3, signature = $4, signed_at = $5
		WHERE studio_id = $1 AND id = $2 AND signed_at IS NULL
		RETURNING `+consentColumns,
		studioID, id, consent.StatusSigned, signature, signedAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.GetConsent(ctx, studioID, id); err != nil {
			return consent.Consent{}, err
		}
		return consent.Consent{}, fmt.Errorf("%w: consent %s already signed", storage.ErrConflict, id)
	}
	if err != nil {
		return consent.Consent{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) GetConsent(ctx context.Context, studioID, id string) (consent.Consent, error) {
	var c consent.Consent
	err := s.db.GetContext(ctx, &c, `SELECT `+consentColumns+` FROM consents WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return consent.Consent{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) ListConsents(ctx context.Context, studioID string) ([]consent.Consent, error) {
	var out []consent.Consent
	err := s.db.SelectContext(ctx, &out, `SELECT `+consentColumns+` FROM consents WHERE studio_id = $1 ORDER BY created_at DESC`, studioID)
	return out, err
}

func (s *Store) ListConsentsByUsername(ctx context.Context, studioID, username string) ([]consent.Consent, error) {
	var out []consent.Consent
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+consentColumns+`
		FROM consents
		WHERE studio_id = $1 AND client_username = $2
		ORDER BY created_at DESC
	`, studioID, username)
	return out, err
}

// --- MedicalStore -----------------------------------------------------------

type historyRow struct {
	medical.History
	Conditions pq.StringArray `db:"conditions"`
}

func (r historyRow) domain() medical.History {
	h := r.History
	h.Conditions = []string(r.Conditions)
	return h
}

const historyColumns = `id, studio_id, client_id, client_username, client_name, birth_date, age, sex, address, phone,
	occupation, residence, schooling, email, conditions, allergies_detail, appointment_motive,
	signature_client, signature_witness, created_at`

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
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO medical_histories (`+historyColumns+`)
		VALUES (:id, :studio_id, :client_id, :client_username, :client_name, :birth_date, :age, :sex, :address, :phone,
			:occupation, :residence, :schooling, :email, :conditions, :allergies_detail, :appointment_motive,
			:signature_client, :signature_witness, :created_at)
	`, historyRow{History: h, Conditions: pq.StringArray(h.Conditions)})
	if err != nil {
		return medical.History{}, mapErr(err)
	}
	return h, nil
}

func (s *Store) GetMedicalHistory(ctx context.Context, studioID, id string) (medical.History, error) {
	var row historyRow
	err := s.db.GetContext(ctx, &row, `SELECT `+historyColumns+` FROM medical_histories WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return medical.History{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) ListMedicalHistories(ctx context.Context, studioID string) ([]medical.History, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+historyColumns+` FROM medical_histories WHERE studio_id = $1 ORDER BY created_at DESC`, studioID)
	if err != nil {
		return nil, err
	}
	out := make([]medical.History, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

// --- InventoryStore ---------------------------------------------------------

const inventoryColumns = `id, studio_id, item_name, quantity, min_stock, category`

func (s *Store) CreateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO inventory (`+inventoryColumns+`)
		VALUES (:id, :studio_id, :item_name, :quantity, :min_stock, :category)
	`, item)
	if err != nil {
		return inventory.Item{}, mapErr(err)
	}
	return item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE inventory
		SET item_name = :item_name, quantity = :quantity, min_stock = :min_stock, category = :category
		WHERE id = :id AND studio_id = :studio_id
	`, item)
	if err != nil {
		return inventory.Item{}, mapErr(err)
	}
	if err := expectOne(result); err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

func (s *Store) AdjustInventoryQuantity(ctx context.Context, studioID, id string, delta int) (inventory.Item, error) {
	var item inventory.Item
	err := s.db.GetContext(ctx, &item, `
		UPDATE inventory
		SET quantity = quantity + $3
		WHERE studio_id = $1 AND id = $2 AND quantity + $3 >= 0
		RETURNING `+inventoryColumns,
		studioID, id, delta)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.GetInventoryItem(ctx, studioID, id); err != nil {
			return inventory.Item{}, err
		}
		return inventory.Item{}, storage.ErrInsufficientStock
	}
	if err != nil {
		return inventory.Item{}, mapErr(err)
	}
	return item, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, studioID, id string) (inventory.Item, error) {
	var item inventory.Item
	err := s.db.GetContext(ctx, &item, `SELECT `+inventoryColumns+` FROM inventory WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return inventory.Item{}, mapErr(err)
	}
	return item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context, studioID string) ([]inventory.Item, error) {
	var out []inventory.Item
	err := s.db.SelectContext(ctx, &out, `SELECT `+inventoryColumns+` FROM inventory WHERE studio_id = $1 ORDER BY category, item_name`, studioID)
	return out, err
}

func (s *Store) DeleteInventoryItem(ctx context.Context, studioID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// --- FlashStore -------------------------------------------------------------

const flashColumns = `id, studio_id, title, price, size_cm, image_url, is_repeatable, is_available, created_at`

func (s *Store) CreateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO flash_sets (`+flashColumns+`)
		VALUES (:id, :studio_id, :title, :price, :size_cm, :image_url, :is_repeatable, :is_available, :created_at)
	`, d)
	if err != nil {
		return flash.Design{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) UpdateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error) {
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE flash_sets
		SET title = :title, price = :price, size_cm = :size_cm, image_url = :image_url,
			is_repeatable = :is_repeatable, is_available = :is_available
		WHERE id = :id AND studio_id = :studio_id
	`, d)
	if err != nil {
		return flash.Design{}, mapErr(err)
	}
	if err := expectOne(result); err != nil {
		return flash.Design{}, err
	}
	return s.GetFlashDesign(ctx, d.StudioID, d.ID)
}

func (s *Store) GetFlashDesign(ctx context.Context, studioID, id string) (flash.Design, error) {
	var d flash.Design
	err := s.db.GetContext(ctx, &d, `SELECT `+flashColumns+` FROM flash_sets WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return flash.Design{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) ListFlashDesigns(ctx context.Context, studioID string) ([]flash.Design, error) {
	var out []flash.Design
	err := s.db.SelectContext(ctx, &out, `SELECT `+flashColumns+` FROM flash_sets WHERE studio_id = $1 ORDER BY created_at DESC`, studioID)
	return out, err
}

func (s *Store) DeleteFlashDesign(ctx context.Context, studioID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM flash_sets WHERE studio_id = $1 AND id = $2`, studioID, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO reviews (id, studio_id, client_name, rating, comment, date)
		VALUES (:id, :studio_id, :client_name, :rating, :comment, :date)
	`, r)
	if err != nil {
		return review.Review{}, mapErr(err)
	}
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, studioID string) ([]review.Review, error) {
	var out []review.Review
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, studio_id, client_name, rating, comment, date
		FROM reviews
		WHERE studio_id = $1
		ORDER BY date DESC
	`, studioID)
	return out, err
}

// --- GalleryStore -----------------------------------------------------------

func (s *Store) CreateGalleryItem(ctx context.Context, item gallery.Item) (gallery.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO gallery_items (id, studio_id, src, alt, description, style, date, type, created_at)
		VALUES (:id, :studio_id, :src, :alt, :description, :style, :date, :type, :created_at)
	`, item)
	if err != nil {
		return gallery.Item{}, mapErr(err)
	}
	return item, nil
}

func (s *Store) ListGalleryItems(ctx context.Context, studioID string) ([]gallery.Item, error) {
	var out []gallery.Item
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, studio_id, src, alt, description, style, date, type, created_at
		FROM gallery_items
		WHERE studio_id = $1
		ORDER BY created_at
	`, studioID)
	return out, err
}

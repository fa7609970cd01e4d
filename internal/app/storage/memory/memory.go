package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/appointment"
	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/flash"
	"github.com/R3E-Network/studio_layer/internal/app/domain/gallery"
	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	"github.com/R3E-Network/studio_layer/internal/app/domain/medical"
	"github.com/R3E-Network/studio_layer/internal/app/domain/review"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	seq          int64
	clients      table[client.Client]
	appointments table[appointment.Appointment]
	consents     table[consent.Consent]
	histories    table[medical.History]
	inventory    table[inventory.Item]
	flash        table[flash.Design]
	reviews      table[review.Review]
	gallery      table[gallery.Item]
	chats        map[string][]chat.Message
}

var _ storage.ClientStore = (*Store)(nil)
var _ storage.AppointmentStore = (*Store)(nil)
var _ storage.ConsentStore = (*Store)(nil)
var _ storage.MedicalStore = (*Store)(nil)
var _ storage.InventoryStore = (*Store)(nil)
var _ storage.FlashStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.GalleryStore = (*Store)(nil)
var _ storage.ChatHistoryStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		clients:      newTable[client.Client](),
		appointments: newTable[appointment.Appointment](),
		consents:     newTable[consent.Consent](),
		histories:    newTable[medical.History](),
		inventory:    newTable[inventory.Item](),
		flash:        newTable[flash.Design](),
		reviews:      newTable[review.Review](),
		gallery:      newTable[gallery.Item](),
		chats:        make(map[string][]chat.Message),
	}
}

// row keeps insertion order so listings are stable.
type row[T any] struct {
	seq    int64
	studio string
	value  T
}

type table[T any] map[string]row[T]

func newTable[T any]() table[T] { return make(table[T]) }

func (t table[T]) get(studioID, id string) (T, bool) {
	r, ok := t[id]
	if !ok || r.studio != studioID {
		var zero T
		return zero, false
	}
	return r.value, true
}

func (t table[T]) list(studioID string, keep func(T) bool) []T {
	rows := make([]row[T], 0, len(t))
	for _, r := range t {
		if r.studio != studioID {
			continue
		}
		if keep != nil && !keep(r.value) {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.value)
	}
	return out
}

func (t table[T]) find(studioID string, match func(T) bool) (T, bool) {
	matches := t.list(studioID, match)
	if len(matches) == 0 {
		var zero T
		return zero, false
	}
	return matches[0], true
}

func (s *Store) nextSeqLocked() int64 {
	s.seq++
	return s.seq
}

// ClientStore implementation --------------------------------------------------

func (s *Store) CreateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Username != "" {
		if _, dup := s.clients.find(c.StudioID, func(o client.Client) bool {
			return strings.EqualFold(o.Username, c.Username)
		}); dup {
			return client.Client{}, storage.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := s.clients[c.ID]; exists {
		return client.Client{}, storage.ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.InkHistory = cloneStrings(c.InkHistory)

	s.clients[c.ID] = row[client.Client]{seq: s.nextSeqLocked(), studio: c.StudioID, value: c}
	return cloneClient(c), nil
}

func (s *Store) UpdateClient(_ context.Context, c client.Client) (client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[c.ID]
	if !ok || existing.studio != c.StudioID {
		return client.Client{}, storage.ErrNotFound
	}
	if c.Username != "" {
		if _, dup := s.clients.find(c.StudioID, func(o client.Client) bool {
			return o.ID != c.ID && strings.EqualFold(o.Username, c.Username)
		}); dup {
			return client.Client{}, storage.ErrConflict
		}
	}
	c.CreatedAt = existing.value.CreatedAt
	c.InkHistory = cloneStrings(c.InkHistory)
	existing.value = c
	s.clients[c.ID] = existing
	return cloneClient(c), nil
}

func (s *Store) GetClient(_ context.Context, studioID, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients.get(studioID, id)
	if !ok {
		return client.Client{}, storage.ErrNotFound
	}
	return cloneClient(c), nil
}

func (s *Store) ListClients(_ context.Context, studioID string) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.clients.list(studioID, nil)
	for i := range out {
		out[i] = cloneClient(out[i])
	}
	return out, nil
}

func (s *Store) DeleteClient(_ context.Context, studioID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients.get(studioID, id); !ok {
		return storage.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

func (s *Store) FindClientByContact(_ context.Context, studioID, contact string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients.find(studioID, func(c client.Client) bool { return c.Contact == contact })
	if !ok {
		return client.Client{}, storage.ErrNotFound
	}
	return cloneClient(c), nil
}

func (s *Store) FindClientByUsername(_ context.Context, studioID, username string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients.find(studioID, func(c client.Client) bool { return c.Username == username })
	if !ok {
		return client.Client{}, storage.ErrNotFound
	}
	return cloneClient(c), nil
}

// AppointmentStore implementation ---------------------------------------------

func (s *Store) CreateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.appointments[a.ID] = row[appointment.Appointment]{seq: s.nextSeqLocked(), studio: a.StudioID, value: a}
	return a, nil
}

func (s *Store) UpdateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.appointments[a.ID]
	if !ok || existing.studio != a.StudioID {
		return appointment.Appointment{}, storage.ErrNotFound
	}
	a.CreatedAt = existing.value.CreatedAt
	existing.value = a
	s.appointments[a.ID] = existing
	return a, nil
}

func (s *Store) GetAppointment(_ context.Context, studioID, id string) (appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments.get(studioID, id)
	if !ok {
		return appointment.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAppointments(_ context.Context, studioID string) ([]appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appointments.list(studioID, nil), nil
}

func (s *Store) DeleteAppointment(_ context.Context, studioID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments.get(studioID, id); !ok {
		return storage.ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

// ConsentStore implementation -------------------------------------------------

func (s *Store) CreateConsent(_ context.Context, c consent.Consent) (consent.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.consents[c.ID] = row[consent.Consent]{seq: s.nextSeqLocked(), studio: c.StudioID, value: c}
	return c, nil
}

func (s *Store) SignConsent(_ context.Context, studioID, id, signature string, signedAt time.Time) (consent.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.consents[id]
	if !ok || existing.studio != studioID {
		return consent.Consent{}, storage.ErrNotFound
	}
	if existing.value.SignedAt != nil || existing.value.Status == consent.StatusSigned {
		return consent.Consent{}, storage.ErrConflict
	}
	at := signedAt
	existing.value.Status = consent.StatusSigned
	existing.value.Signature = signature
	existing.value.SignedAt = &at
	s.consents[id] = existing
	return existing.value, nil
}

func (s *Store) GetConsent(_ context.Context, studioID, id string) (consent.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.consents.get(studioID, id)
	if !ok {
		return consent.Consent{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListConsents(_ context.Context, studioID string) ([]consent.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consents.list(studioID, nil), nil
}

func (s *Store) ListConsentsByUsername(_ context.Context, studioID, username string) ([]consent.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consents.list(studioID, func(c consent.Consent) bool { return c.ClientUsername == username }), nil
}

// MedicalStore implementation -------------------------------------------------

func (s *Store) CreateMedicalHistory(_ context.Context, h medical.History) (medical.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	h.Conditions = cloneStrings(h.Conditions)
	s.histories[h.ID] = row[medical.History]{seq: s.nextSeqLocked(), studio: h.StudioID, value: h}
	return cloneHistory(h), nil
}

func (s *Store) GetMedicalHistory(_ context.Context, studioID, id string) (medical.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories.get(studioID, id)
	if !ok {
		return medical.History{}, storage.ErrNotFound
	}
	return cloneHistory(h), nil
}

func (s *Store) ListMedicalHistories(_ context.Context, studioID string) ([]medical.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.histories.list(studioID, nil)
	for i := range out {
		out[i] = cloneHistory(out[i])
	}
	return out, nil
}

// InventoryStore implementation -----------------------------------------------

func (s *Store) CreateInventoryItem(_ context.Context, item inventory.Item) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	s.inventory[item.ID] = row[inventory.Item]{seq: s.nextSeqLocked(), studio: item.StudioID, value: item}
	return item, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item inventory.Item) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inventory[item.ID]
	if !ok || existing.studio != item.StudioID {
		return inventory.Item{}, storage.ErrNotFound
	}
	existing.value = item
	s.inventory[item.ID] = existing
	return item, nil
}

func (s *Store) AdjustInventoryQuantity(_ context.Context, studioID, id string, delta int) (inventory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inventory[id]
	if !ok || existing.studio != studioID {
		return inventory.Item{}, storage.ErrNotFound
	}
	if existing.value.Quantity+delta < 0 {
		return inventory.Item{}, storage.ErrInsufficientStock
	}
	existing.value.Quantity += delta
	s.inventory[id] = existing
	return existing.value, nil
}

func (s *Store) GetInventoryItem(_ context.Context, studioID, id string) (inventory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory.get(studioID, id)
	if !ok {
		return inventory.Item{}, storage.ErrNotFound
	}
	return item, nil
}

func (s *Store) ListInventoryItems(_ context.Context, studioID string) ([]inventory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventory.list(studioID, nil), nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, studioID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inventory.get(studioID, id); !ok {
		return storage.ErrNotFound
	}
	delete(s.inventory, id)
	return nil
}

// FlashStore implementation ---------------------------------------------------

func (s *Store) CreateFlashDesign(_ context.Context, d flash.Design) (flash.Design, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.flash[d.ID] = row[flash.Design]{seq: s.nextSeqLocked(), studio: d.StudioID, value: d}
	return d, nil
}

func (s *Store) UpdateFlashDesign(_ context.Context, d flash.Design) (flash.Design, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.flash[d.ID]
	if !ok || existing.studio != d.StudioID {
		return flash.Design{}, storage.ErrNotFound
	}
	d.CreatedAt = existing.value.CreatedAt
	existing.value = d
	s.flash[d.ID] = existing
	return d, nil
}

func (s *Store) GetFlashDesign(_ context.Context, studioID, id string) (flash.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.flash.get(studioID, id)
	if !ok {
		return flash.Design{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListFlashDesigns(_ context.Context, studioID string) ([]flash.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flash.list(studioID, nil), nil
}

func (s *Store) DeleteFlashDesign(_ context.Context, studioID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flash.get(studioID, id); !ok {
		return storage.ErrNotFound
	}
	delete(s.flash, id)
	return nil
}

// ReviewStore implementation --------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}
	s.reviews[r.ID] = row[review.Review]{seq: s.nextSeqLocked(), studio: r.StudioID, value: r}
	return r, nil
}

func (s *Store) ListReviews(_ context.Context, studioID string) ([]review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reviews.list(studioID, nil), nil
}

// GalleryStore implementation -------------------------------------------------

func (s *Store) CreateGalleryItem(_ context.Context, item gallery.Item) (gallery.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	} else if _, exists := s.gallery[item.ID]; exists {
		return gallery.Item{}, storage.ErrConflict
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.gallery[item.ID] = row[gallery.Item]{seq: s.nextSeqLocked(), studio: item.StudioID, value: item}
	return item, nil
}

func (s *Store) ListGalleryItems(_ context.Context, studioID string) ([]gallery.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gallery.list(studioID, nil), nil
}

// ChatHistoryStore implementation ---------------------------------------------

func chatKey(studioID, username string) string {
	return studioID + "/" + username
}

func (s *Store) AppendChatMessages(_ context.Context, studioID, username string, limit int, msgs ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chatKey(studioID, username)
	history := append(s.chats[key], msgs...)
	if limit > 0 && len(history) > limit {
		history = append([]chat.Message(nil), history[len(history)-limit:]...)
	}
	s.chats[key] = history
	return nil
}

func (s *Store) ListChatMessages(_ context.Context, studioID, username string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.chats[chatKey(studioID, username)]
	out := make([]chat.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *Store) ClearChatMessages(_ context.Context, studioID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatKey(studioID, username))
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneClient(c client.Client) client.Client {
	c.InkHistory = cloneStrings(c.InkHistory)
	return c
}

func cloneHistory(h medical.History) medical.History {
	h.Conditions = cloneStrings(h.Conditions)
	return h
}

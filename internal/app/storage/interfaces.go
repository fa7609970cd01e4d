package storage

import (
	"context"
	"errors"
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
)

var (
	// ErrNotFound is returned when a record does not exist in the studio.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("record already exists")
	// ErrInsufficientStock is returned when an adjustment would take an
	// item's quantity below zero.
	ErrInsufficientStock = errors.New("quantity would go below zero")
)

// Every store method is scoped to a studio. Records of one studio are never
// visible through another studio's ID.

// ClientStore persists studio clients.
type ClientStore interface {
	CreateClient(ctx context.Context, c client.Client) (client.Client, error)
	UpdateClient(ctx context.Context, c client.Client) (client.Client, error)
	GetClient(ctx context.Context, studioID, id string) (client.Client, error)
	ListClients(ctx context.Context, studioID string) ([]client.Client, error)
	DeleteClient(ctx context.Context, studioID, id string) error
	FindClientByContact(ctx context.Context, studioID, contact string) (client.Client, error)
	FindClientByUsername(ctx context.Context, studioID, username string) (client.Client, error)
}

// AppointmentStore persists calendar appointments.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	GetAppointment(ctx context.Context, studioID, id string) (appointment.Appointment, error)
	ListAppointments(ctx context.Context, studioID string) ([]appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, studioID, id string) error
}

// ConsentStore persists consent documents.
type ConsentStore interface {
	CreateConsent(ctx context.Context, c consent.Consent) (consent.Consent, error)
	// SignConsent stores the signature only while the document is unsigned.
	// A document signed by a concurrent request yields ErrConflict.
	SignConsent(ctx context.Context, studioID, id, signature string, signedAt time.Time) (consent.Consent, error)
	GetConsent(ctx context.Context, studioID, id string) (consent.Consent, error)
	ListConsents(ctx context.Context, studioID string) ([]consent.Consent, error)
	ListConsentsByUsername(ctx context.Context, studioID, username string) ([]consent.Consent, error)
}

// MedicalStore persists medical intake forms.
type MedicalStore interface {
	CreateMedicalHistory(ctx context.Context, h medical.History) (medical.History, error)
	GetMedicalHistory(ctx context.Context, studioID, id string) (medical.History, error)
	ListMedicalHistories(ctx context.Context, studioID string) ([]medical.History, error)
}

// InventoryStore persists stock items.
type InventoryStore interface {
	CreateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error)
	UpdateInventoryItem(ctx context.Context, item inventory.Item) (inventory.Item, error)
	// AdjustInventoryQuantity adds delta to the quantity in a single write.
	AdjustInventoryQuantity(ctx context.Context, studioID, id string, delta int) (inventory.Item, error)
	GetInventoryItem(ctx context.Context, studioID, id string) (inventory.Item, error)
	ListInventoryItems(ctx context.Context, studioID string) ([]inventory.Item, error)
	DeleteInventoryItem(ctx context.Context, studioID, id string) error
}

// FlashStore persists the flash catalog.
type FlashStore interface {
	CreateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error)
	UpdateFlashDesign(ctx context.Context, d flash.Design) (flash.Design, error)
	GetFlashDesign(ctx context.Context, studioID, id string) (flash.Design, error)
	ListFlashDesigns(ctx context.Context, studioID string) ([]flash.Design, error)
	DeleteFlashDesign(ctx context.Context, studioID, id string) error
}

// ReviewStore persists client reviews.
type ReviewStore interface {
	CreateReview(ctx context.Context, r review.Review) (review.Review, error)
	ListReviews(ctx context.Context, studioID string) ([]review.Review, error)
}

// GalleryStore persists saved gallery pieces.
type GalleryStore interface {
	CreateGalleryItem(ctx context.Context, item gallery.Item) (gallery.Item, error)
	ListGalleryItems(ctx context.Context, studioID string) ([]gallery.Item, error)
}

// ChatHistoryStore keeps AI consultant conversations per user.
type ChatHistoryStore interface {
	// AppendChatMessages appends msgs and trims the history to the newest
	// limit entries when limit > 0.
	AppendChatMessages(ctx context.Context, studioID, username string, limit int, msgs ...chat.Message) error
	ListChatMessages(ctx context.Context, studioID, username string) ([]chat.Message, error)
	ClearChatMessages(ctx context.Context, studioID, username string) error
}

package notification

import "time"

// Kinds of notification.
const (
	KindConsentSent         = "consent.sent"
	KindConsentSigned       = "consent.signed"
	KindMedicalReceived     = "medical.received"
	KindPendingConfirmation = "booking.pending_confirmation"
	KindLowStock            = "inventory.low_stock"
)

// AudienceAdmin targets staff; any other audience is a client username.
const AudienceAdmin = "admin"

// Notification is a toast pushed to connected users.
type Notification struct {
	ID        string    `json:"id"`
	StudioID  string    `json:"studio_id"`
	Kind      string    `json:"kind"`
	Audience  string    `json:"audience"`
	Message   string    `json:"message"`
	Ref       string    `json:"ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package consent

import "time"

const (
	StatusPending = "pending"
	StatusSigned  = "signed"
)

// Consent is a consent document sent to a client for signature.
type Consent struct {
	ID             string     `json:"id" db:"id"`
	StudioID       string     `json:"studio_id" db:"studio_id"`
	ClientID       string     `json:"client_id" db:"client_id"`
	ClientUsername string     `json:"client_username" db:"client_username"`
	ClientName     string     `json:"client_name" db:"client_name"`
	Content        string     `json:"content" db:"content"`
	Status         string     `json:"status" db:"status"`
	Signature      string     `json:"signature,omitempty" db:"signature"`
	SignedAt       *time.Time `json:"signed_at,omitempty" db:"signed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

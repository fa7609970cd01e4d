package appointment

import (
	"fmt"
	"time"
)

// Status values.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
)

// Reminder channels.
const (
	ReminderEmail = "email"
	ReminderSMS   = "sms"
)

// DateLayout and TimeLayout are the wire formats for Date and Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Appointment is a booked session on the studio calendar.
type Appointment struct {
	ID             string    `json:"id" db:"id"`
	StudioID       string    `json:"studio_id" db:"studio_id"`
	ClientID       string    `json:"client_id,omitempty" db:"client_id"`
	Name           string    `json:"name" db:"name"`
	Contact        string    `json:"contact" db:"contact"`
	Idea           string    `json:"idea" db:"idea"`
	Date           string    `json:"date" db:"date"`
	Time           string    `json:"time" db:"time"`
	ReminderMethod string    `json:"reminder_method" db:"reminder_method"`
	Status         string    `json:"status" db:"status"`
	DepositAmount  float64   `json:"deposit_amount" db:"deposit_amount"`
	DepositPaid    bool      `json:"deposit_paid" db:"deposit_paid"`
	PriceTotal     float64   `json:"price_total" db:"price_total"`
	HasConsent     bool      `json:"has_consent" db:"has_consent"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// StartsAt combines Date and Time in loc. An empty Time means midnight.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clock := a.Time
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("appointment %s: invalid date/time %q %q: %w", a.ID, a.Date, a.Time, err)
	}
	return t, nil
}

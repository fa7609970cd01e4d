package review

import "time"

// Review is client feedback shown on the reviews page.
type Review struct {
	ID         string    `json:"id" db:"id"`
	StudioID   string    `json:"studio_id" db:"studio_id"`
	ClientName string    `json:"client_name" db:"client_name"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	Date       time.Time `json:"date" db:"date"`
}

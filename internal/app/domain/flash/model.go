package flash

import "time"

// Design is a pre-drawn flash piece offered in the catalog.
type Design struct {
	ID           string    `json:"id" db:"id"`
	StudioID     string    `json:"studio_id" db:"studio_id"`
	Title        string    `json:"title" db:"title"`
	Price        float64   `json:"price" db:"price"`
	SizeCM       float64   `json:"size_cm" db:"size_cm"`
	ImageURL     string    `json:"image_url" db:"image_url"`
	IsRepeatable bool      `json:"is_repeatable" db:"is_repeatable"`
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

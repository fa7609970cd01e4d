package gallery

import "time"

// Styles used to tag gallery pieces.
const (
	StyleRealismo    = "Realismo"
	StyleGeometrico  = "Geométrico"
	StyleBlackwork   = "Blackwork"
	StyleTradicional = "Tradicional"
)

// Styles lists every known style.
var Styles = []string{StyleRealismo, StyleGeometrico, StyleBlackwork, StyleTradicional}

// Item is a finished piece or a saved AI result in the studio gallery.
type Item struct {
	ID          string    `json:"id" db:"id"`
	StudioID    string    `json:"studio_id" db:"studio_id"`
	Src         string    `json:"src" db:"src"`
	Alt         string    `json:"alt" db:"alt"`
	Description string    `json:"description" db:"description"`
	Style       string    `json:"style" db:"style"`
	Date        string    `json:"date" db:"date"`
	Type        string    `json:"type" db:"type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

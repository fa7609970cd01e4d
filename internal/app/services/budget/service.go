// Package budget estimates tattoo prices and serves the aftercare guide and
// the tip of the day.
package budget

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/R3E-Network/studio_layer/internal/config"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
)

// Request describes the piece being quoted.
type Request struct {
	SizeCM int    `json:"size_cm"`
	Style  string `json:"style"`
	Color  bool   `json:"color"`
}

// Estimate is a base price and the upper end of the likely range.
type Estimate struct {
	SizeCM int     `json:"size_cm"`
	Style  string  `json:"style"`
	Color  bool    `json:"color"`
	Price  float64 `json:"price"`
	Max    float64 `json:"max"`
	Note   string  `json:"note"`
}

const disclaimer = "*Este es un precio base orientativo. El costo final se confirma con el artista tras evaluar el diseño final."

// Service prices pieces from the studio pricing table.
type Service struct {
	pricing   config.Pricing
	aftercare []config.CareStep
	tips      []string
}

// New constructs a budget service.
func New(pricing config.Pricing, aftercare []config.CareStep) *Service {
	def := config.DefaultStudioConfig()
	if pricing.PerCM == 0 {
		pricing = def.Pricing
	}
	if len(aftercare) == 0 {
		aftercare = def.Aftercare
	}
	return &Service{pricing: pricing, aftercare: aftercare, tips: def.Tips}
}

// WithTips replaces the tip rotation. An empty list keeps the defaults.
func (s *Service) WithTips(tips []string) *Service {
	if len(tips) > 0 {
		s.tips = append([]string(nil), tips...)
	}
	return s
}

// Styles lists the priced styles alphabetically.
func (s *Service) Styles() []string {
	out := make([]string, 0, len(s.pricing.Multipliers))
	for name := range s.pricing.Multipliers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Estimate computes size × rate × style multiplier, plus the color surcharge,
// rounded to the nearest unit. Unknown styles are priced as linework.
func (s *Service) Estimate(req Request) (Estimate, error) {
	p := s.pricing
	if req.SizeCM < p.MinSizeCM || (p.MaxSizeCM > 0 && req.SizeCM > p.MaxSizeCM) {
		return Estimate{}, apperrors.Validation(fmt.Sprintf("El tamaño debe estar entre %d y %d cm.", p.MinSizeCM, p.MaxSizeCM))
	}
	base := float64(req.SizeCM) * p.PerCM
	if m, ok := p.Multipliers[req.Style]; ok && m > 0 {
		base *= m
	}
	if req.Color {
		base += p.ColorSurcharge
	}
	price := math.Round(base)
	factor := p.RangeFactor
	if factor < 1 {
		factor = 1
	}
	return Estimate{
		SizeCM: req.SizeCM,
		Style:  req.Style,
		Color:  req.Color,
		Price:  price,
		Max:    math.Round(price * factor),
		Note:   disclaimer,
	}, nil
}

// Aftercare returns the healing guide.
func (s *Service) Aftercare() []config.CareStep {
	return append([]config.CareStep(nil), s.aftercare...)
}

// Tip returns the tip for the calendar day of t. Every caller sees the same
// tip for a given date and the rotation advances one entry per day.
func (s *Service) Tip(t time.Time) string {
	if len(s.tips) == 0 {
		return ""
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return s.tips[int(day%int64(len(s.tips)))]
}

// Package gallery serves the studio portfolio and saved AI results.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/R3E-Network/studio_layer/internal/app/domain/gallery"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// Sort orders.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

const (
	dateLayout = "2006-01-02"
	typeImage  = "image"
)

// SaveRequest describes a piece to keep in the gallery.
type SaveRequest struct {
	Src         string `json:"src"`
	Alt         string `json:"alt"`
	Description string `json:"description"`
	Style       string `json:"style"`
	Type        string `json:"type"`
}

// Query filters a gallery listing.
type Query struct {
	Style string
	Sort  string
}

// Service manages gallery items.
type Service struct {
	store storage.GalleryStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a gallery service.
func New(store storage.GalleryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gallery")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// Save stores a new item dated today.
func (s *Service) Save(ctx context.Context, studioID string, req SaveRequest) (domain.Item, error) {
	alt := strings.TrimSpace(req.Alt)
	if req.Src == "" || alt == "" {
		return domain.Item{}, apperrors.Validation("El título y la imagen son obligatorios para guardar.")
	}
	if req.Style != "" && !knownStyle(req.Style) {
		return domain.Item{}, apperrors.Validation(fmt.Sprintf("estilo desconocido: %s", req.Style))
	}
	typ := req.Type
	if typ == "" {
		typ = typeImage
	}
	now := s.now().UTC()
	item, err := s.store.CreateGalleryItem(ctx, domain.Item{
		StudioID:    studioID,
		Src:         req.Src,
		Alt:         alt,
		Description: req.Description,
		Style:       req.Style,
		Date:        now.Format(dateLayout),
		Type:        typ,
		CreatedAt:   now,
	})
	if err != nil {
		return domain.Item{}, apperrors.Internal("No se pudo guardar la imagen en la galería.", err)
	}
	s.log.WithContext(ctx).WithField("item_id", item.ID).Info("gallery item saved")
	return item, nil
}

// List returns saved items newest first followed by the portfolio seeds that
// have not been persisted, then applies the style filter and sort order.
func (s *Service) List(ctx context.Context, studioID string, q Query) ([]domain.Item, error) {
	saved, err := s.store.ListGalleryItems(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(saved, func(i, j int) bool { return saved[i].CreatedAt.After(saved[j].CreatedAt) })

	seen := make(map[string]struct{}, len(saved))
	for _, it := range saved {
		seen[it.ID] = struct{}{}
	}
	out := make([]domain.Item, 0, len(saved)+len(seeds))
	out = append(out, saved...)
	for _, seed := range Seeds(studioID) {
		if _, ok := seen[seed.ID]; !ok {
			out = append(out, seed)
		}
	}

	if q.Style != "" {
		filtered := out[:0]
		for _, it := range out {
			if it.Style == q.Style {
				filtered = append(filtered, it)
			}
		}
		out = filtered
	}

	switch q.Sort {
	case "":
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	default:
		return nil, apperrors.Validation(fmt.Sprintf("orden desconocido: %s", q.Sort))
	}
	return out, nil
}

// Seed persists the portfolio seeds for a studio. Seeds already stored are
// skipped. It returns how many were inserted.
func (s *Service) Seed(ctx context.Context, studioID string) (int, error) {
	inserted := 0
	for _, seed := range Seeds(studioID) {
		if _, err := s.store.CreateGalleryItem(ctx, seed); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func knownStyle(style string) bool {
	for _, s := range domain.Styles {
		if s == style {
			return true
		}
	}
	return false
}

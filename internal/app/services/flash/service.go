package flash

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/R3E-Network/studio_layer/internal/app/domain/flash"
	"github.com/R3E-Network/studio_layer/internal/app/media"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

const imageFolder = "flash"

// Service manages the flash catalog.
type Service struct {
	store  storage.FlashStore
	images media.ImageStore
	log    *logger.Logger
}

// New constructs a flash service. images may be nil, in which case uploaded
// data URLs are stored inline.
func New(store storage.FlashStore, images media.ImageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("flash")
	}
	return &Service{store: store, images: images, log: log}
}

// List returns designs newest first. Unavailable designs are only included
// when all is set.
func (s *Service) List(ctx context.Context, studioID string, all bool) ([]flash.Design, error) {
	designs, err := s.store.ListFlashDesigns(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(designs, func(i, j int) bool { return designs[i].CreatedAt.After(designs[j].CreatedAt) })
	if all {
		return designs, nil
	}
	out := designs[:0]
	for _, d := range designs {
		if d.IsAvailable {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) validate(d *flash.Design) error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return apperrors.Validation("title is required")
	}
	if d.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	if d.SizeCM < 0 {
		return apperrors.Validation("size_cm must not be negative")
	}
	return nil
}

func (s *Service) storeImage(ctx context.Context, d *flash.Design) error {
	if d.ImageURL == "" {
		return apperrors.Validation("image_url is required")
	}
	url, err := media.UploadDataURL(ctx, s.images, d.StudioID, imageFolder, d.ImageURL)
	if err != nil {
		if media.IsInvalidImage(err) {
			return apperrors.Validation(err.Error())
		}
		return apperrors.Upstream("No se pudo guardar la imagen.", err)
	}
	d.ImageURL = url
	return nil
}

// Add stores a new design, uploading an inline image first.
func (s *Service) Add(ctx context.Context, d flash.Design) (flash.Design, error) {
	if d.StudioID == "" {
		return flash.Design{}, fmt.Errorf("studio_id is required")
	}
	if err := s.validate(&d); err != nil {
		return flash.Design{}, err
	}
	if err := s.storeImage(ctx, &d); err != nil {
		return flash.Design{}, err
	}
	created, err := s.store.CreateFlashDesign(ctx, d)
	if err != nil {
		return flash.Design{}, err
	}
	s.log.WithContext(ctx).Infof("flash design %s added", created.ID)
	return created, nil
}

// Update replaces a design.
func (s *Service) Update(ctx context.Context, d flash.Design) (flash.Design, error) {
	if err := s.validate(&d); err != nil {
		return flash.Design{}, err
	}
	if err := s.storeImage(ctx, &d); err != nil {
		return flash.Design{}, err
	}
	return s.store.UpdateFlashDesign(ctx, d)
}

// ToggleAvailability flips whether a design can still be booked.
func (s *Service) ToggleAvailability(ctx context.Context, studioID, id string) (flash.Design, error) {
	d, err := s.store.GetFlashDesign(ctx, studioID, id)
	if err != nil {
		return flash.Design{}, err
	}
	d.IsAvailable = !d.IsAvailable
	return s.store.UpdateFlashDesign(ctx, d)
}

// Delete removes a design.
func (s *Service) Delete(ctx context.Context, studioID, id string) error {
	return s.store.DeleteFlashDesign(ctx, studioID, id)
}

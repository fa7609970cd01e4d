package reviews

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/review"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// DefaultRating is used when a review omits the rating.
const DefaultRating = 5

// Service manages client reviews.
type Service struct {
	store storage.ReviewStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a review service.
func New(store storage.ReviewStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reviews")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// List returns reviews newest first.
func (s *Service) List(ctx context.Context, studioID string) ([]review.Review, error) {
	all, err := s.store.ListReviews(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return all, nil
}

// Create publishes a review signed with the author's username.
func (s *Service) Create(ctx context.Context, studioID, username string, rating int, comment string) (review.Review, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return review.Review{}, apperrors.Validation("El comentario es obligatorio.")
	}
	if rating == 0 {
		rating = DefaultRating
	}
	if rating < 1 || rating > 5 {
		return review.Review{}, apperrors.Validation("La calificación debe estar entre 1 y 5.")
	}
	if username == "" {
		return review.Review{}, apperrors.Unauthorized("")
	}
	created, err := s.store.CreateReview(ctx, review.Review{
		StudioID:   studioID,
		ClientName: username,
		Rating:     rating,
		Comment:    comment,
		Date:       s.now().UTC(),
	})
	if err != nil {
		return review.Review{}, err
	}
	s.log.WithContext(ctx).Infof("review %s by %s", created.ID, username)
	return created, nil
}

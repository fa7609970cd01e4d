// Package medical stores medical intake forms and exports them as PDF.
package medical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/medical"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/services/notify"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// ToggleCondition adds cond to list when absent and removes it otherwise.
func ToggleCondition(list []string, cond string) []string {
	out := make([]string, 0, len(list)+1)
	found := false
	for _, c := range list {
		if c == cond {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, cond)
	}
	return out
}

// AgeAt returns the age in whole years on day for a YYYY-MM-DD birth date.
func AgeAt(birthDate string, day time.Time) (int, error) {
	born, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return 0, fmt.Errorf("parse birth date: %w", err)
	}
	age := day.Year() - born.Year()
	if day.Month() < born.Month() || (day.Month() == born.Month() && day.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, fmt.Errorf("birth date %s is in the future", birthDate)
	}
	return age, nil
}

// Service manages medical histories.
type Service struct {
	store storage.MedicalStore
	pub   notify.Publisher
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a medical history service.
func New(store storage.MedicalStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("medical")
	}
	return &Service{store: store, pub: notify.Discard{}, log: log, now: time.Now}
}

// WithPublisher routes received-form events to pub.
func (s *Service) WithPublisher(pub notify.Publisher) *Service {
	if pub != nil {
		s.pub = pub
	}
	return s
}

// Create stores a form. Only known conditions are kept, in the order they
// are offered on the form.
func (s *Service) Create(ctx context.Context, h medical.History) (medical.History, error) {
	h.ClientName = strings.TrimSpace(h.ClientName)
	if h.StudioID == "" {
		return medical.History{}, fmt.Errorf("studio_id is required")
	}
	if h.ClientName == "" {
		return medical.History{}, apperrors.Validation("El nombre del cliente es obligatorio.")
	}
	if h.Age < 0 {
		return medical.History{}, apperrors.Validation("La edad no es válida.")
	}
	if h.Age == 0 && h.BirthDate != "" {
		age, err := AgeAt(h.BirthDate, s.now())
		if err != nil {
			return medical.History{}, apperrors.Validation("La fecha de nacimiento no es válida.")
		}
		h.Age = age
	}
	h.Conditions = knownConditions(h.Conditions)

	created, err := s.store.CreateMedicalHistory(ctx, h)
	if err != nil {
		return medical.History{}, err
	}
	s.log.WithContext(ctx).WithField("history_id", created.ID).Info("medical history saved")
	s.pub.Publish(ctx, notification.Notification{
		StudioID: created.StudioID,
		Kind:     notification.KindMedicalReceived,
		Audience: notification.AudienceAdmin,
		Message:  notify.MedicalMessage(created.ClientName),
		Ref:      created.ID,
	})
	return created, nil
}

func knownConditions(in []string) []string {
	selected := make(map[string]bool, len(in))
	for _, c := range in {
		selected[strings.TrimSpace(c)] = true
	}
	out := []string{}
	for _, c := range medical.Conditions {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out
}

// Get fetches one form.
func (s *Service) Get(ctx context.Context, studioID, id string) (medical.History, error) {
	return s.store.GetMedicalHistory(ctx, studioID, id)
}

// List returns forms newest first.
func (s *Service) List(ctx context.Context, studioID string) ([]medical.History, error) {
	all, err := s.store.ListMedicalHistories(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// Search filters List by a case-insensitive substring of the client name.
func (s *Service) Search(ctx context.Context, studioID, term string) ([]medical.History, error) {
	all, err := s.List(ctx, studioID)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all, nil
	}
	out := all[:0]
	for _, h := range all {
		if strings.Contains(strings.ToLower(h.ClientName), term) {
			out = append(out, h)
		}
	}
	return out, nil
}

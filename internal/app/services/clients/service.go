package clients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// Service manages the studio client book and client profiles.
type Service struct {
	store storage.ClientStore
	log   *logger.Logger
}

// New constructs a client service.
func New(store storage.ClientStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("clients")
	}
	return &Service{store: store, log: log}
}

// List returns the studio's clients ordered by name, without password hashes.
func (s *Service) List(ctx context.Context, studioID string) ([]client.Client, error) {
	all, err := s.store.ListClients(ctx, studioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	out := make([]client.Client, len(all))
	for i, c := range all {
		out[i] = c.Public()
	}
	return out, nil
}

// Search filters List by a case-insensitive substring of name or username.
func (s *Service) Search(ctx context.Context, studioID, term string) ([]client.Client, error) {
	all, err := s.List(ctx, studioID)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all, nil
	}
	out := all[:0]
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(strings.ToLower(c.Username), term) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get fetches one client.
func (s *Service) Get(ctx context.Context, studioID, id string) (client.Client, error) {
	c, err := s.store.GetClient(ctx, studioID, id)
	if err != nil {
		return client.Client{}, err
	}
	return c.Public(), nil
}

// Add creates a client from the admin client book.
func (s *Service) Add(ctx context.Context, c client.Client) (client.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Contact = strings.TrimSpace(c.Contact)
	c.Username = client.NormalizeUsername(c.Username)
	if c.StudioID == "" {
		return client.Client{}, fmt.Errorf("studio_id is required")
	}
	if c.Name == "" {
		return client.Client{}, apperrors.Validation("El nombre es obligatorio.")
	}
	if c.Role == "" {
		c.Role = client.RoleClient
	}
	if c.Password != "" {
		hash, err := HashPassword(c.Password)
		if err != nil {
			return client.Client{}, err
		}
		c.Password = hash
	}
	created, err := s.store.CreateClient(ctx, c)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return client.Client{}, apperrors.Conflict("EL USUARIO O CORREO YA EXISTEN")
		}
		return client.Client{}, err
	}
	s.log.WithContext(ctx).Infof("client %s created", created.ID)
	return created.Public(), nil
}

// Patch holds the editable client fields. Nil fields are left unchanged.
type Patch struct {
	Name          *string  `json:"name"`
	Username      *string  `json:"username"`
	Contact       *string  `json:"contact"`
	WhatsApp      *string  `json:"whatsapp"`
	Notes         *string  `json:"notes"`
	Allergies     *string  `json:"allergies"`
	LoyaltyPoints *int     `json:"loyalty_points"`
	InkHistory    []string `json:"ink_history"`
}

// Update merges p into the stored client.
func (s *Service) Update(ctx context.Context, studioID, id string, p Patch) (client.Client, error) {
	c, err := s.store.GetClient(ctx, studioID, id)
	if err != nil {
		return client.Client{}, err
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return client.Client{}, apperrors.Validation("El nombre es obligatorio.")
		}
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Username != nil {
		c.Username = client.NormalizeUsername(*p.Username)
	}
	if p.Contact != nil {
		c.Contact = strings.TrimSpace(*p.Contact)
	}
	if p.WhatsApp != nil {
		c.WhatsApp = strings.TrimSpace(*p.WhatsApp)
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if p.Allergies != nil {
		c.Allergies = *p.Allergies
	}
	if p.LoyaltyPoints != nil {
		if *p.LoyaltyPoints < 0 {
			return client.Client{}, apperrors.Validation("loyalty_points must not be negative")
		}
		c.LoyaltyPoints = *p.LoyaltyPoints
	}
	if p.InkHistory != nil {
		c.InkHistory = p.InkHistory
	}
	updated, err := s.store.UpdateClient(ctx, c)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return client.Client{}, apperrors.Conflict("EL USUARIO O CORREO YA EXISTEN")
		}
		return client.Client{}, err
	}
	return updated.Public(), nil
}

// Delete removes a client.
func (s *Service) Delete(ctx context.Context, studioID, id string) error {
	if err := s.store.DeleteClient(ctx, studioID, id); err != nil {
		return err
	}
	s.log.WithContext(ctx).Infof("client %s deleted", id)
	return nil
}

// FindOrCreate returns the client with the given contact, creating a bare
// record when none exists.
func (s *Service) FindOrCreate(ctx context.Context, studioID, name, contact string) (client.Client, error) {
	existing, err := s.store.FindClientByContact(ctx, studioID, contact)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return client.Client{}, fmt.Errorf("find client: %w", err)
	}
	created, err := s.store.CreateClient(ctx, client.Client{
		StudioID: studioID,
		Name:     name,
		Contact:  contact,
		Role:     client.RoleClient,
	})
	if err != nil {
		return client.Client{}, fmt.Errorf("add client: %w", err)
	}
	s.log.WithContext(ctx).Infof("client %s created from booking", created.ID)
	return created, nil
}

// Profile returns the client behind a login.
func (s *Service) Profile(ctx context.Context, studioID, username string) (client.Client, error) {
	c, err := s.store.FindClientByUsername(ctx, studioID, client.NormalizeUsername(username))
	if err != nil {
		return client.Client{}, err
	}
	return c.Public(), nil
}

// ProfileUpdate carries the fields a client may change about themselves.
type ProfileUpdate struct {
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp"`
	Password string `json:"password"`
}

// UpdateProfile applies u to the client behind username. An empty password
// keeps the current one.
func (s *Service) UpdateProfile(ctx context.Context, studioID, username string, u ProfileUpdate) (client.Client, error) {
	c, err := s.store.FindClientByUsername(ctx, studioID, client.NormalizeUsername(username))
	if err != nil {
		return client.Client{}, err
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		c.Name = name
	}
	c.WhatsApp = strings.TrimSpace(u.WhatsApp)
	if u.Password != "" {
		hash, err := HashPassword(u.Password)
		if err != nil {
			return client.Client{}, err
		}
		c.Password = hash
	}
	updated, err := s.store.UpdateClient(ctx, c)
	if err != nil {
		return client.Client{}, err
	}
	s.log.WithContext(ctx).Infof("profile %s updated", updated.Username)
	return updated.Public(), nil
}

// Package dashboard aggregates the admin overview.
package dashboard

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// RecentSignaturesLimit caps the signed documents listed on the overview.
const RecentSignaturesLimit = 5

// NewClientWindow is how far back a client counts as new.
const NewClientWindow = 30 * 24 * time.Hour

// Stats is the admin overview.
type Stats struct {
	Appointments     int               `json:"appointments"`
	Revenue          float64           `json:"revenue"`
	LowStock         int               `json:"low_stock"`
	Clients          int               `json:"clients"`
	NewClients       int               `json:"new_clients"`
	PendingConsents  int               `json:"pending_consents"`
	SignedConsents   int               `json:"signed_consents"`
	RecentSignatures []consent.Consent `json:"recent_signatures"`
}

// Feed returns recent notifications for a studio.
type Feed interface {
	Recent(studioID, audience string, limit int) []notification.Notification
}

// Service computes dashboard figures.
type Service struct {
	appointments storage.AppointmentStore
	inventory    storage.InventoryStore
	clients      storage.ClientStore
	consents     storage.ConsentStore
	feed         Feed
	log          *logger.Logger
	now          func() time.Time
}

// New constructs a dashboard service. feed may be nil.
func New(appointments storage.AppointmentStore, inventory storage.InventoryStore, clients storage.ClientStore, consents storage.ConsentStore, feed Feed, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dashboard")
	}
	return &Service{
		appointments: appointments,
		inventory:    inventory,
		clients:      clients,
		consents:     consents,
		feed:         feed,
		log:          log,
		now:          time.Now,
	}
}

// Stats loads every table concurrently and summarises them.
func (s *Service) Stats(ctx context.Context, studioID string) (Stats, error) {
	var out Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.appointments.ListAppointments(gctx, studioID)
		if err != nil {
			return err
		}
		out.Appointments = len(list)
		for _, a := range list {
			out.Revenue += a.PriceTotal
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.inventory.ListInventoryItems(gctx, studioID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.Low() {
				out.LowStock++
			}
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.clients.ListClients(gctx, studioID)
		if err != nil {
			return err
		}
		cutoff := s.now().Add(-NewClientWindow)
		out.Clients = len(list)
		for _, c := range list {
			if c.CreatedAt.After(cutoff) {
				out.NewClients++
			}
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.consents.ListConsents(gctx, studioID)
		if err != nil {
			return err
		}
		signed := make([]consent.Consent, 0, len(list))
		for _, c := range list {
			switch c.Status {
			case consent.StatusPending:
				out.PendingConsents++
			case consent.StatusSigned:
				out.SignedConsents++
				signed = append(signed, c)
			}
		}
		sort.SliceStable(signed, func(i, j int) bool { return signedAt(signed[i]).After(signedAt(signed[j])) })
		if len(signed) > RecentSignaturesLimit {
			signed = signed[:RecentSignaturesLimit]
		}
		out.RecentSignatures = signed
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("dashboard stats failed")
		return Stats{}, err
	}
	return out, nil
}

func signedAt(c consent.Consent) time.Time {
	if c.SignedAt == nil {
		return time.Time{}
	}
	return *c.SignedAt
}

// Notifications returns the newest admin notifications of a studio.
func (s *Service) Notifications(studioID string, limit int) []notification.Notification {
	if s.feed == nil {
		return []notification.Notification{}
	}
	return s.feed.Recent(studioID, notification.AudienceAdmin, limit)
}

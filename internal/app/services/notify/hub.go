// Package notify fans studio notifications out to connected users and keeps
// a short feed per studio for the dashboard.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	"github.com/google/uuid"
)

// Toast texts shown to users.
const (
	MsgNewDocument = "¡TIENES UN NUEVO DOCUMENTO!"
	msgSigned      = "NUEVA FIRMA: El cliente %s ha firmado su consentimiento."
	msgMedical     = "NUEVO HISTORIAL: Recibiste la ficha clínica de %s."
	msgPending     = "CITA PENDIENTE: ¿Se completó la cita de %s del %s a las %s?"
	msgLowStock    = "STOCK BAJO: %d artículo(s) por debajo del mínimo."
)

// SignedMessage is the admin toast for a signed consent.
func SignedMessage(clientName string) string { return fmt.Sprintf(msgSigned, clientName) }

// MedicalMessage is the admin toast for a received medical form.
func MedicalMessage(clientName string) string { return fmt.Sprintf(msgMedical, clientName) }

// PendingMessage is the admin toast for an appointment awaiting confirmation.
func PendingMessage(name, date, clock string) string {
	return fmt.Sprintf(msgPending, name, date, clock)
}

// LowStockMessage is the admin toast for low inventory.
func LowStockMessage(count int) string { return fmt.Sprintf(msgLowStock, count) }

// DefaultFeedSize is how many notifications each studio keeps.
const DefaultFeedSize = 100

// Publisher accepts notifications.
type Publisher interface {
	Publish(ctx context.Context, n notification.Notification)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(context.Context, notification.Notification) {}

type subscriber struct {
	studio   string
	audience string
	ch       chan notification.Notification
}

// Hub is an in-process notification fan-out. Slow subscribers drop messages
// rather than block publishers.
type Hub struct {
	mu    sync.RWMutex
	size  int
	feeds map[string][]notification.Notification
	subs  map[*subscriber]struct{}
	log   *logger.Logger
	now   func() time.Time
}

// NewHub creates a hub keeping size notifications per studio.
func NewHub(size int, log *logger.Logger) *Hub {
	if size <= 0 {
		size = DefaultFeedSize
	}
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &Hub{
		size:  size,
		feeds: make(map[string][]notification.Notification),
		subs:  make(map[*subscriber]struct{}),
		log:   log,
		now:   time.Now,
	}
}

// Publish records n in the studio feed and delivers it to matching
// subscribers.
func (h *Hub) Publish(_ context.Context, n notification.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now().UTC()
	}
	if n.Audience == "" {
		n.Audience = notification.AudienceAdmin
	}

	h.mu.Lock()
	feed := append(h.feeds[n.StudioID], n)
	if len(feed) > h.size {
		feed = append([]notification.Notification(nil), feed[len(feed)-h.size:]...)
	}
	h.feeds[n.StudioID] = feed

	dropped := 0
	for sub := range h.subs {
		if sub.studio != n.StudioID || !audienceMatches(sub.audience, n.Audience) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	metrics.RecordNotification(n.Kind)
	entry := h.log.WithField("studio", n.StudioID).
		WithField("kind", n.Kind).
		WithField("audience", n.Audience)
	if dropped > 0 {
		entry.WithField("dropped", dropped).Warn("notification subscribers are slow; message dropped")
		return
	}
	entry.Debug("notification published")
}

// audienceMatches reports whether a subscriber should see a notification.
// Admin subscribers see admin notifications; client subscribers see their own.
func audienceMatches(subscriber, audience string) bool {
	return subscriber == audience
}

// Recent returns the studio feed for audience, newest first. limit <= 0
// returns everything kept.
func (h *Hub) Recent(studioID, audience string, limit int) []notification.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	feed := h.feeds[studioID]
	out := make([]notification.Notification, 0, len(feed))
	for i := len(feed) - 1; i >= 0; i-- {
		if audience != "" && !audienceMatches(audience, feed[i].Audience) {
			continue
		}
		out = append(out, feed[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Subscribe registers a listener for studio notifications addressed to
// audience. The returned cancel func must be called to release it.
func (h *Hub) Subscribe(studioID, audience string, buffer int) (<-chan notification.Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{studio: studioID, audience: audience, ch: make(chan notification.Notification, buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

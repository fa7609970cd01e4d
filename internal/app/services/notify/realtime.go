package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/system"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
)

const (
	tableConsents = "consents"
	tableMedical  = "medical_histories"

	maxReconnectBackoff = time.Minute
)

// Realtime is the subset of the realtime client the listener needs.
type Realtime interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Lost() <-chan struct{}
	SubscribeToPostgresChanges(ctx context.Context, cfg sb.PostgresChangesConfig, handler sb.EventHandler) (*sb.Channel, error)
}

var _ system.Service = (*Listener)(nil)

// Listener turns row changes on consents and medical histories into
// notifications, reconnecting when the socket drops.
type Listener struct {
	rt      Realtime
	studios []string
	pub     Publisher
	log     *logger.Logger
	retry   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewListener creates a realtime listener for the given studios.
func NewListener(rt Realtime, studios []string, pub Publisher, log *logger.Logger) *Listener {
	if log == nil {
		log = logger.NewDefault("notify-realtime")
	}
	if pub == nil {
		pub = Discard{}
	}
	return &Listener{
		rt:      rt,
		studios: append([]string(nil), studios...),
		pub:     pub,
		log:     log,
		retry:   time.Second,
	}
}

func (l *Listener) Name() string { return "notify-realtime" }

func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true
	l.mu.Unlock()

	for _, studio := range l.studios {
		if err := l.subscribe(ctx, studio); err != nil {
			cancel()
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return err
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(runCtx)
	}()

	l.log.WithField("studios", len(l.studios)).Info("realtime listener started")
	return nil
}

func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel := l.cancel
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	cancel()
	if err := l.rt.Disconnect(); err != nil {
		l.log.WithError(err).Debug("realtime disconnect")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.log.Info("realtime listener stopped")
	return nil
}

func (l *Listener) subscribe(ctx context.Context, studio string) error {
	filter := "studio_id=eq." + studio
	subs := []struct {
		event   string
		table   string
		handler func(string, *sb.RealtimeEvent)
	}{
		{"INSERT", tableConsents, l.onConsentInsert},
		{"UPDATE", tableConsents, l.onConsentUpdate},
		{"INSERT", tableMedical, l.onMedicalInsert},
	}
	for _, s := range subs {
		handler := s.handler
		_, err := l.rt.SubscribeToPostgresChanges(ctx, sb.PostgresChangesConfig{
			Event:  s.event,
			Table:  s.table,
			Filter: filter,
		}, func(ev *sb.RealtimeEvent) { handler(studio, ev) })
		if err != nil {
			return fmt.Errorf("subscribe %s %s for %s: %w", s.event, s.table, studio, err)
		}
	}
	return nil
}

func (l *Listener) run(ctx context.Context) {
	backoff := l.retry
	for {
		if !l.rt.Connected() {
			if err := l.rt.Connect(ctx); err != nil {
				l.log.WithError(err).WithField("retry_in", backoff.String()).Warn("realtime connect failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > maxReconnectBackoff {
					backoff = maxReconnectBackoff
				}
				continue
			}
			backoff = l.retry
			l.log.Info("realtime connected")
		}

		select {
		case <-ctx.Done():
			return
		case <-l.rt.Lost():
			l.log.Warn("realtime connection lost; reconnecting")
		}
	}
}

func (l *Listener) onConsentInsert(studio string, ev *sb.RealtimeEvent) {
	metrics.RecordRealtimeEvent(tableConsents, ev.ChangeType())
	rec := ev.Record()
	username := rec.Get("client_username").String()
	if username == "" {
		return
	}
	l.pub.Publish(context.Background(), notification.Notification{
		StudioID: studio,
		Kind:     notification.KindConsentSent,
		Audience: username,
		Message:  MsgNewDocument,
		Ref:      rec.Get("id").String(),
	})
}

func (l *Listener) onConsentUpdate(studio string, ev *sb.RealtimeEvent) {
	metrics.RecordRealtimeEvent(tableConsents, ev.ChangeType())
	rec := ev.Record()
	if rec.Get("status").String() != consent.StatusSigned {
		return
	}
	if old := ev.OldRecord().Get("status"); old.Exists() && old.String() == consent.StatusSigned {
		return
	}
	l.pub.Publish(context.Background(), notification.Notification{
		StudioID: studio,
		Kind:     notification.KindConsentSigned,
		Audience: notification.AudienceAdmin,
		Message:  SignedMessage(rec.Get("client_name").String()),
		Ref:      rec.Get("id").String(),
	})
}

func (l *Listener) onMedicalInsert(studio string, ev *sb.RealtimeEvent) {
	metrics.RecordRealtimeEvent(tableMedical, ev.ChangeType())
	rec := ev.Record()
	l.pub.Publish(context.Background(), notification.Notification{
		StudioID: studio,
		Kind:     notification.KindMedicalReceived,
		Audience: notification.AudienceAdmin,
		Message:  MedicalMessage(rec.Get("client_name").String()),
		Ref:      rec.Get("id").String(),
	})
}

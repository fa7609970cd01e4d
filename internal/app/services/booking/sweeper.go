package booking

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/services/notify"
	"github.com/R3E-Network/studio_layer/internal/app/system"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	"github.com/robfig/cron/v3"
)

var _ system.Service = (*Sweeper)(nil)

// DefaultSweepSchedule checks for overdue appointments once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically looks for scheduled appointments that should have
// finished and asks the studio admins to confirm them. An appointment is
// announced once for as long as it stays overdue.
type Sweeper struct {
	service  *Service
	studios  []string
	pub      notify.Publisher
	log      *logger.Logger
	schedule string
	now      func() time.Time

	mu        sync.Mutex
	cron      *cron.Cron
	announced map[string]map[string]struct{} // studio -> overdue appointment IDs
	running   bool
}

// NewSweeper builds a sweeper over the given studios.
func NewSweeper(service *Service, studios []string, pub notify.Publisher, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("booking-sweeper")
	}
	if pub == nil {
		pub = notify.Discard{}
	}
	return &Sweeper{
		service:   service,
		studios:   studios,
		pub:       pub,
		log:       log,
		schedule:  DefaultSweepSchedule,
		now:       time.Now,
		announced: make(map[string]map[string]struct{}),
	}
}

// WithSchedule overrides the cron spec.
func (s *Sweeper) WithSchedule(spec string) *Sweeper {
	if spec != "" {
		s.schedule = spec
	}
	return s
}

func (s *Sweeper) Name() string { return "booking-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithLocation(s.service.loc))
	runCtx := context.WithoutCancel(ctx)
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(runCtx) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("booking sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("booking sweeper stopped")
	return nil
}

// Sweep runs one pass over every studio and returns how many appointments
// were newly announced.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := s.now()
	total := 0
	for _, studio := range s.studios {
		overdue, err := s.service.Overdue(ctx, studio, now)
		if err != nil {
			metrics.RecordSweep("error")
			s.log.WithError(err).WithField("studio", studio).Warn("pending confirmation sweep failed")
			continue
		}
		current := make(map[string]struct{}, len(overdue))
		for _, a := range overdue {
			current[a.ID] = struct{}{}
		}
		s.mu.Lock()
		seen := s.announced[studio]
		s.announced[studio] = current
		s.mu.Unlock()
		for _, a := range overdue {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			total++
			s.log.WithFields(map[string]interface{}{
				"studio":         studio,
				"appointment_id": a.ID,
			}).Info("appointment awaiting confirmation")
			s.pub.Publish(ctx, notification.Notification{
				StudioID: studio,
				Kind:     notification.KindPendingConfirmation,
				Audience: notification.AudienceAdmin,
				Message:  notify.PendingMessage(a.Name, a.Date, a.Time),
				Ref:      a.ID,
			})
		}
	}
	if total > 0 {
		metrics.RecordSweep("pending")
	} else {
		metrics.RecordSweep("clear")
	}
	return total
}

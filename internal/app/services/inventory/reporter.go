package inventory

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

var _ system.Service = (*LowStockReporter)(nil)

// DefaultReportSchedule is how often stock levels are checked.
const DefaultReportSchedule = "@every 15m"

// LowStockReporter exports the low-stock gauge per studio and tells the admins
// whenever the number of items under their minimum changes to a non-zero value.
type LowStockReporter struct {
	service  *Service
	studios  []string
	pub      notify.Publisher
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	last    map[string]int
	running bool
}

// NewLowStockReporter builds a reporter over the given studios.
func NewLowStockReporter(service *Service, studios []string, pub notify.Publisher, log *logger.Logger) *LowStockReporter {
	if log == nil {
		log = logger.NewDefault("inventory-reporter")
	}
	if pub == nil {
		pub = notify.Discard{}
	}
	return &LowStockReporter{
		service:  service,
		studios:  studios,
		pub:      pub,
		log:      log,
		schedule: DefaultReportSchedule,
		last:     make(map[string]int),
	}
}

// WithSchedule overrides the cron spec.
func (r *LowStockReporter) WithSchedule(spec string) *LowStockReporter {
	if spec != "" {
		r.schedule = spec
	}
	return r
}

func (r *LowStockReporter) Name() string { return "inventory-low-stock" }

func (r *LowStockReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	c := cron.New()
	runCtx := context.WithoutCancel(ctx)
	if _, err := c.AddFunc(r.schedule, func() { r.Report(runCtx) }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("low stock reporter started")
	return nil
}

func (r *LowStockReporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("low stock reporter stopped")
	return nil
}

// Report checks every studio once and returns the low-stock count per studio.
func (r *LowStockReporter) Report(ctx context.Context) map[string]int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	counts := make(map[string]int, len(r.studios))
	for _, studio := range r.studios {
		low, err := r.service.LowStock(ctx, studio)
		if err != nil {
			r.log.WithError(err).WithField("studio", studio).Warn("low stock check failed")
			continue
		}
		n := len(low)
		counts[studio] = n
		metrics.SetLowStock(studio, n)

		r.mu.Lock()
		prev, seen := r.last[studio]
		r.last[studio] = n
		r.mu.Unlock()
		if n == 0 || (seen && prev == n) {
			continue
		}
		r.pub.Publish(ctx, notification.Notification{
			StudioID: studio,
			Kind:     notification.KindLowStock,
			Audience: notification.AudienceAdmin,
			Message:  notify.LowStockMessage(n),
		})
	}
	return counts
}

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/media"
	aisvc "github.com/R3E-Network/studio_layer/internal/app/services/ai"
	"github.com/R3E-Network/studio_layer/internal/app/services/auth"
	"github.com/R3E-Network/studio_layer/internal/app/services/booking"
	"github.com/R3E-Network/studio_layer/internal/app/services/budget"
	"github.com/R3E-Network/studio_layer/internal/app/services/clients"
	consentsvc "github.com/R3E-Network/studio_layer/internal/app/services/consent"
	"github.com/R3E-Network/studio_layer/internal/app/services/dashboard"
	flashsvc "github.com/R3E-Network/studio_layer/internal/app/services/flash"
	gallerysvc "github.com/R3E-Network/studio_layer/internal/app/services/gallery"
	inventorysvc "github.com/R3E-Network/studio_layer/internal/app/services/inventory"
	medicalsvc "github.com/R3E-Network/studio_layer/internal/app/services/medical"
	"github.com/R3E-Network/studio_layer/internal/app/services/notify"
	"github.com/R3E-Network/studio_layer/internal/app/services/reviews"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	"github.com/R3E-Network/studio_layer/internal/app/storage/memory"
	"github.com/R3E-Network/studio_layer/internal/app/system"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// DefaultFeedSize is how many notifications the hub keeps per studio.
const DefaultFeedSize = 100

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Clients      storage.ClientStore
	Appointments storage.AppointmentStore
	Consents     storage.ConsentStore
	Medical      storage.MedicalStore
	Inventory    storage.InventoryStore
	Flash        storage.FlashStore
	Reviews      storage.ReviewStore
	Gallery      storage.GalleryStore
	Chats        storage.ChatHistoryStore
}

// Options carries the non-storage collaborators. Zero values fall back to
// in-process defaults.
type Options struct {
	Studios   *config.StudioConfig
	JWTSecret string
	TokenTTL  time.Duration
	// Generator is nil when no Gemini key is configured; the AI tools then
	// answer with an upstream error.
	Generator aisvc.Generator
	Images    media.ImageStore
	// Realtime, when set, sources consent and medical notifications from the
	// database change feed instead of the services.
	Realtime         notify.Realtime
	Location         *time.Location
	SweepSchedule    string
	LowStockSchedule string
	FeedSize         int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Studios   *config.StudioConfig
	Hub       *notify.Hub
	Auth      *auth.Service
	Clients   *clients.Service
	Booking   *booking.Service
	Sweeper   *booking.Sweeper
	Inventory *inventorysvc.Service
	LowStock  *inventorysvc.LowStockReporter
	Flash     *flashsvc.Service
	Consents  *consentsvc.Service
	Medical   *medicalsvc.Service
	Reviews   *reviews.Service
	Dashboard *dashboard.Service
	AI        *aisvc.Service
	Gallery   *gallerysvc.Service
	Budget    *budget.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Studios == nil {
		opts.Studios = config.DefaultStudioConfig()
	}
	if len(opts.Studios.Studios) == 0 {
		return nil, fmt.Errorf("at least one studio must be configured")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.FeedSize <= 0 {
		opts.FeedSize = DefaultFeedSize
	}

	mem := memory.New()
	if stores.Clients == nil {
		stores.Clients = mem
	}
	if stores.Appointments == nil {
		stores.Appointments = mem
	}
	if stores.Consents == nil {
		stores.Consents = mem
	}
	if stores.Medical == nil {
		stores.Medical = mem
	}
	if stores.Inventory == nil {
		stores.Inventory = mem
	}
	if stores.Flash == nil {
		stores.Flash = mem
	}
	if stores.Reviews == nil {
		stores.Reviews = mem
	}
	if stores.Gallery == nil {
		stores.Gallery = mem
	}
	if stores.Chats == nil {
		stores.Chats = mem
	}

	var err error
	secret := opts.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set; using an ephemeral signing key")
		if secret, err = ephemeralSecret(); err != nil {
			return nil, err
		}
	}
	tokens, err := auth.NewTokens(secret, opts.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}

	studioIDs := opts.Studios.StudioIDs()
	hub := notify.NewHub(opts.FeedSize, log.Named("notify"))

	// With a change feed the listener publishes consent and medical events,
	// so the services must not publish them a second time.
	var servicePub notify.Publisher = hub
	if opts.Realtime != nil {
		servicePub = notify.Discard{}
	}

	clientService := clients.New(stores.Clients, log.Named("clients"))
	bookingService := booking.New(stores.Appointments, clientService, log.Named("booking")).WithLocation(opts.Location)
	inventoryService := inventorysvc.New(stores.Inventory, log.Named("inventory"))
	consentService := consentsvc.New(stores.Consents, stores.Clients, log.Named("consent")).
		WithTemplates(func(studioID string) string {
			if st, ok := opts.Studios.Studio(studioID); ok {
				return st.ConsentTemplate
			}
			return ""
		}).
		WithPublisher(servicePub)

	sweeper := booking.NewSweeper(bookingService, studioIDs, hub, log.Named("booking-sweeper"))
	if opts.SweepSchedule != "" {
		sweeper.WithSchedule(opts.SweepSchedule)
	}
	lowStock := inventorysvc.NewLowStockReporter(inventoryService, studioIDs, hub, log.Named("inventory-low-stock"))
	if opts.LowStockSchedule != "" {
		lowStock.WithSchedule(opts.LowStockSchedule)
	}

	manager := system.NewManager(log.Named("system"))
	services := []system.Service{sweeper, lowStock}
	if opts.Realtime != nil {
		services = append(services, notify.NewListener(opts.Realtime, studioIDs, hub, log.Named("notify-realtime")))
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	if opts.Generator == nil {
		log.Warn("GEMINI_API_KEY not set; AI tools disabled")
	}

	return &Application{
		manager:   manager,
		log:       log,
		Studios:   opts.Studios,
		Hub:       hub,
		Auth:      auth.New(stores.Clients, opts.Studios, tokens, log.Named("auth")),
		Clients:   clientService,
		Booking:   bookingService,
		Sweeper:   sweeper,
		Inventory: inventoryService,
		LowStock:  lowStock,
		Flash:     flashsvc.New(stores.Flash, opts.Images, log.Named("flash")),
		Consents:  consentService,
		Medical:   medicalsvc.New(stores.Medical, log.Named("medical")).WithPublisher(servicePub),
		Reviews:   reviews.New(stores.Reviews, log.Named("reviews")),
		Dashboard: dashboard.New(stores.Appointments, stores.Inventory, stores.Clients, stores.Consents, hub, log.Named("dashboard")),
		AI:        aisvc.New(opts.Generator, stores.Chats, log.Named("ai")),
		Gallery:   gallerysvc.New(stores.Gallery, log.Named("gallery")),
		Budget:    budget.New(opts.Studios.Pricing, opts.Studios.Aftercare).WithTips(opts.Studios.Tips),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the lifecycle-managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate signing key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

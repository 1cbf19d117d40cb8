// Package app assembles the domain services and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/retailcore/commerce_layer/internal/app/services/agentstock"
	"github.com/retailcore/commerce_layer/internal/app/services/auth"
	"github.com/retailcore/commerce_layer/internal/app/services/carts"
	"github.com/retailcore/commerce_layer/internal/app/services/cashboxes"
	checkoutsvc "github.com/retailcore/commerce_layer/internal/app/services/checkout"
	"github.com/retailcore/commerce_layer/internal/app/services/inbox"
	"github.com/retailcore/commerce_layer/internal/app/services/products"
	"github.com/retailcore/commerce_layer/internal/app/services/reports"
	"github.com/retailcore/commerce_layer/internal/app/services/tenants"
	"github.com/retailcore/commerce_layer/internal/app/services/users"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
	"github.com/retailcore/commerce_layer/internal/app/system"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Tenants   storage.TenantStore
	Users     storage.UserStore
	Products  storage.ProductStore
	Carts     storage.CartStore
	Sales     storage.SaleStore
	Checkout  storage.CheckoutStore
	Inventory storage.InventoryStore
	Cashboxes storage.CashboxStore
	Messages  storage.MessageStore
	Reports   storage.ReportStore
}

// Options carries cross-cutting wiring the services need beyond stores.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration

	// Cache, when set, backs the product read-through cache.
	Cache *redis.Client

	// CartTTL and JanitorInterval control the stale-cart sweeper.
	CartTTL         time.Duration
	JanitorInterval time.Duration

	// ReportSchedule is a cron spec for the daily summary job.
	ReportSchedule string

	// Notifier and Recorder receive checkout outcomes. Either may be nil.
	Notifier checkoutsvc.Notifier
	Recorder checkoutsvc.Recorder
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Auth       *auth.Service
	Tenants    *tenants.Service
	Users      *users.Service
	Products   *products.Service
	Carts      *carts.Service
	Checkout   *checkoutsvc.Service
	AgentStock *agentstock.Service
	Cashboxes  *cashboxes.Service
	Inbox      *inbox.Service
	Reports    *reports.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Tenants == nil {
		stores.Tenants = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Products == nil {
		stores.Products = mem
	}
	if stores.Carts == nil {
		stores.Carts = mem
	}
	if stores.Sales == nil {
		stores.Sales = mem
	}
	if stores.Checkout == nil {
		stores.Checkout = mem
	}
	if stores.Inventory == nil {
		stores.Inventory = mem
	}
	if stores.Cashboxes == nil {
		stores.Cashboxes = mem
	}
	if stores.Messages == nil {
		stores.Messages = mem
	}
	if stores.Reports == nil {
		stores.Reports = mem
	}

	manager := system.NewManager()

	tenantService := tenants.New(stores.Tenants, log)
	userService := users.New(stores.Tenants, stores.Users, log)
	authService := auth.New(stores.Users, opts.JWTSecret, opts.TokenTTL, log)
	productService := products.New(stores.Products, opts.Cache, log)
	cashboxService := cashboxes.New(stores.Cashboxes, log)
	cartService := carts.New(stores.Carts, stores.Products, stores.Cashboxes, log)
	checkoutService := checkoutsvc.New(stores.Carts, stores.Sales, stores.Checkout, stores.Cashboxes, opts.Notifier, opts.Recorder, log)
	agentService := agentstock.New(stores.Inventory, stores.Products, stores.Users, log)
	inboxService := inbox.New(stores.Messages, log)
	reportService := reports.New(stores.Tenants, stores.Sales, stores.Reports, log)

	janitor := carts.NewJanitor(stores.Carts, opts.CartTTL, opts.JanitorInterval, log)
	scheduler := reports.NewScheduler(reportService, opts.ReportSchedule, log)

	for _, svc := range []system.Service{janitor, scheduler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Auth:       authService,
		Tenants:    tenantService,
		Users:      userService,
		Products:   productService,
		Carts:      cartService,
		Checkout:   checkoutService,
		AgentStock: agentService,
		Cashboxes:  cashboxService,
		Inbox:      inboxService,
		Reports:    reportService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

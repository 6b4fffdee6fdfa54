package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/numbering"
	"github.com/odyssey-erp/gstbooks/internal/accounting/reports"
	"github.com/odyssey-erp/gstbooks/internal/accounting/vouchers"
	"github.com/odyssey-erp/gstbooks/internal/integration"
	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
	"github.com/odyssey-erp/gstbooks/internal/observability"
)

// Services bundles the domain services shared by the API server and the CLI.
type Services struct {
	Accounts *accounts.Service
	Rates    *taxes.Resolver
	Bills    *bills.Tracker
	Vouchers *vouchers.Service
	Reports  *reports.Service
	Mappings *mappings.Repository
}

// ServiceDeps are the infrastructure handles the services are built on.
type ServiceDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Queue   integration.Enqueuer
	Metrics *observability.Metrics
}

// NewServices wires repositories into services.
func NewServices(d ServiceDeps) (*Services, error) {
	policy, err := d.Config.MoneyPolicy()
	if err != nil {
		return nil, err
	}
	opts := d.Config.TxOptions()

	var rateCache *taxes.Cache
	if d.Redis != nil {
		rateCache = taxes.NewCache(d.Redis, d.Config.RateCacheTTL)
	}
	resolver := taxes.NewResolver(taxes.NewRepository(d.Pool, opts), rateCache, policy, d.Logger)
	tracker := bills.NewTracker(bills.NewRepository(d.Pool, opts), d.Logger)
	hooks := integration.NewHooks(d.Queue, d.Config.EInvoiceQueue, d.Logger)

	return &Services{
		Accounts: accounts.NewService(accounts.NewRepository(d.Pool, opts), d.Logger),
		Rates:    resolver,
		Bills:    tracker,
		Vouchers: vouchers.NewService(vouchers.Deps{
			Repo:      vouchers.NewRepository(d.Pool, opts),
			Rates:     resolver,
			Tracker:   tracker,
			Sequencer: numbering.NewSequencer(),
			Notifier:  hooks,
			Observer:  d.Metrics,
			Policy:    policy,
			Logger:    d.Logger,
		}),
		Reports:  reports.NewService(reports.NewRepository(d.Pool), d.Logger),
		Mappings: mappings.NewRepository(d.Pool, opts),
	}, nil
}

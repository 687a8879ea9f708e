package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/config"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/funding"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/middleware"
	"github.com/congo-pay/mobile_money/internal/notification"
	"github.com/congo-pay/mobile_money/internal/payments"
	"github.com/congo-pay/mobile_money/internal/settlement"
	"github.com/congo-pay/mobile_money/internal/storage"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier receives post-commit events; nil logs them instead.
	Notifier notification.Notifier
	// AccessLog toggles the plain text access log.
	AccessLog bool
}

// Backends holds the storage the services share.
type Backends struct {
	Runner   storage.Runner
	Accounts account.Store
	Ledger   ledger.Ledger
}

// NewBackends picks PostgreSQL when a pool is available and in-memory
// storage otherwise.
func NewBackends(db *pgxpool.Pool, unitTimeout time.Duration) Backends {
	if db != nil {
		return Backends{
			Runner:   storage.NewPostgresRunner(db, unitTimeout),
			Accounts: account.NewPostgresStore(db),
			Ledger:   ledger.NewPostgresLedger(db),
		}
	}
	return Backends{
		Runner:   storage.NewMemoryRunner(unitTimeout),
		Accounts: account.NewMemoryStore(),
		Ledger:   ledger.NewInMemory(),
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Backends, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Backends{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Backends{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	backends := NewBackends(d.DB, d.Cfg.UnitTimeout)

	policy, err := fee.NewPolicy(d.Cfg.FeeDisposal, d.Cfg.FeeAccountID)
	if err != nil {
		return Backends{}, err
	}
	accountSvc := account.NewService(backends.Accounts, backends.Runner, d.Cfg.AgentOnboardingCredit)
	if policy.Collects() {
		if _, err := accountSvc.EnsureSystem(context.Background(), policy.AccountID); err != nil {
			return Backends{}, fmt.Errorf("ensure fee account: %w", err)
		}
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	paymentSvc := payments.NewService(backends.Accounts, backends.Ledger, backends.Runner, policy, notifier, d.Logger)
	fundingSvc := funding.NewService(backends.Accounts, backends.Ledger, policy, notifier, d.Logger)
	settlementSvc := settlement.NewService(backends.Accounts, backends.Ledger, backends.Runner, policy, notifier, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.RequestIDFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret))
	moneyMoving := []fiber.Handler{
		middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMinute),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	}

	RegisterPaymentRoutes(protected, payments.NewHandler(paymentSvc), moneyMoving...)
	RegisterFundingRoutes(protected, funding.NewHandler(fundingSvc), moneyMoving...)
	RegisterSettlementRoutes(protected, settlement.NewHandler(settlementSvc), moneyMoving...)
	RegisterLedgerRoutes(protected, ledger.NewHandler(backends.Ledger))
	RegisterAccountRoutes(protected, account.NewHandler(accountSvc))

	return backends, nil
}

func chain(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, h)
}

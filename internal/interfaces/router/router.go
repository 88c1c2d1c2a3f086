package router

import (
	"context"
	"errors"
	"net/http"

	adminsvc "bluegold-backend/internal/application/admin"
	authsvc "bluegold-backend/internal/application/auth"
	"bluegold-backend/internal/application/interest"
	invsvc "bluegold-backend/internal/application/investors"
	"bluegold-backend/internal/application/ledger"
	notifsvc "bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/application/portfolio"
	refsvc "bluegold-backend/internal/application/referrals"
	topupsvc "bluegold-backend/internal/application/topups"
	usersvc "bluegold-backend/internal/application/user"
	wdsvc "bluegold-backend/internal/application/withdrawals"
	"bluegold-backend/internal/config"
	"bluegold-backend/internal/constants"
	"bluegold-backend/internal/health"
	"bluegold-backend/internal/infrastructure/cache"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/infrastructure/messaging"
	"bluegold-backend/internal/infrastructure/paystack"
	"bluegold-backend/internal/infrastructure/tracing"
	adminhandler "bluegold-backend/internal/interfaces/handlers/admin"
	authhandler "bluegold-backend/internal/interfaces/handlers/auth"
	healthhandler "bluegold-backend/internal/interfaces/handlers/health"
	invhandler "bluegold-backend/internal/interfaces/handlers/investors"
	notifhandler "bluegold-backend/internal/interfaces/handlers/notifications"
	refhandler "bluegold-backend/internal/interfaces/handlers/referrals"
	topuphandler "bluegold-backend/internal/interfaces/handlers/topups"
	userhandler "bluegold-backend/internal/interfaces/handlers/user"
	wdhandler "bluegold-backend/internal/interfaces/handlers/withdrawals"
	"bluegold-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const cachePrefix = "bluegold:"

// App is the wired service: the fiber app plus the pieces the process
// entry point drives outside of HTTP (scheduler, shutdown).
type App struct {
	Fiber         *fiber.App
	DB            *gorm.DB
	Rdb           *redis.Client
	Engine        *interest.Engine
	Notifications *notifsvc.Service

	publisher *messaging.Publisher
}

// Close releases the broker connection, the redis client and the DB pool.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Rdb != nil {
		errs = append(errs, a.Rdb.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// CreateApp builds the fiber app with global middleware and every route.
// Without a database only the auth and health routes are mounted.
func CreateApp(cfg *config.Config) (*App, error) {
	out := &App{}
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	out.Fiber = app

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.JaegerEndpoint,
		Environment: cfg.Env,
	})
	if err != nil {
		return nil, err
	}

	app.Use(middleware.CORS(middleware.CORSConfig{
		FrontendURL:    cfg.FrontendURL,
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: !cfg.IsProduction(),
	}))

	// The gateway signs the raw body, so the webhook is mounted ahead of
	// the session and response middleware. Service is set once the DB is up.
	webhook := &topuphandler.WebhookHandler{SecretKey: cfg.PaystackSecretKey}
	app.Post("/api/v1/topups/webhook", webhook.HandleWebhook)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, err
	}
	out.Rdb = rdb
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
		Probes: []health.Probe{
			{Name: "frontend", URL: cfg.FrontendURL},
			{Name: "paystack", URL: cfg.PaystackBaseURL},
		},
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		out.DB = db
		hh.DB = &health.GormPinger{DB: db}
	}

	var userFinder authsvc.UserFinder
	if out.DB != nil {
		userFinder = &authsvc.GormUserFinder{DB: out.DB}
	}
	ah := &authhandler.Handlers{UserFinder: userFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	if out.DB == nil {
		log.Warn().Msg("database URL not set: only auth and health routes are mounted")
		return out, nil
	}
	db := out.DB

	rules := portfolio.Default()
	if cfg.PortfolioRulesFile != "" {
		rules, err = portfolio.Load(cfg.PortfolioRulesFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("file", cfg.PortfolioRulesFile).Msg("portfolio rules loaded")
	}

	redisCache := cache.NewRedisCache(rdb, cachePrefix)
	notifications := &notifsvc.Service{DB: db, Timeout: cfg.StoreTimeout}
	if cfg.RabbitMQURL != "" {
		pub, err := messaging.NewPublisher(cfg.RabbitMQURL, cfg.NotificationsQueue)
		if err != nil {
			// fan-out is optional; notifications are still stored
			log.Warn().Err(err).Msg("RabbitMQ unavailable, notifications will not be published")
		} else {
			out.publisher = pub
			notifications.Publisher = pub
		}
	}
	out.Notifications = notifications

	engine := &interest.Engine{
		DB:      db,
		Rules:   rules,
		Limiter: redisCache,
		Tracer:  tracer,
		Workers: cfg.EngineWorkers,
		Timeout: cfg.StoreTimeout,
	}
	ledgerSvc := &ledger.Service{DB: db, Rules: rules, Timeout: cfg.StoreTimeout}
	investors := &invsvc.Service{
		DB:      db,
		Rules:   rules,
		Engine:  engine,
		Ledger:  ledgerSvc,
		Cache:   redisCache,
		Timeout: cfg.StoreTimeout,
	}
	notifier := investors.InvalidatingNotifier(notifications)
	investors.Notifier = notifier
	engine.Notifier = notifier
	out.Engine = engine

	withdrawals := &wdsvc.Service{DB: db, Engine: engine, Notifier: notifier, Timeout: cfg.StoreTimeout}
	topups := &topupsvc.Service{
		DB:          db,
		Engine:      engine,
		Gateway:     paystack.NewClient(cfg.PaystackSecretKey, cfg.PaystackBaseURL),
		Notifier:    notifier,
		CallbackURL: cfg.TopupCallbackURL(),
		Timeout:     cfg.StoreTimeout,
	}
	webhook.Service = topups
	referrals := &refsvc.Service{DB: db, Notifier: notifier, Timeout: cfg.StoreTimeout}
	admin := &adminsvc.Service{
		DB:          db,
		Rules:       rules,
		Engine:      engine,
		Ledger:      ledgerSvc,
		Investors:   investors,
		Withdrawals: withdrawals,
		Notifier:    notifier,
		Timeout:     cfg.StoreTimeout,
	}

	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}, Config: sessionCfg}
	app.Post("/api/v1/users/create-user", uh.CreateUser)
	ug := app.Group("/api/v1/users", middleware.RequireAuth())
	ug.Put("/update-user", uh.UpdateUser)
	ug.Get("/view-user", uh.ViewUser)
	ug.Patch("/update-role", middleware.AuthorizePermission(constants.AssignRole), uh.UpdateRole)

	ih := &invhandler.Handlers{Service: investors}
	ig := app.Group("/api/v1/investors", middleware.RequireAuth())
	ig.Post("/", ih.Create)
	ig.Get("/", ih.List)
	ig.Get("/dashboard", middleware.AuthorizePermission(constants.ViewAccount), ih.Dashboard)
	ig.Put("/:id/investment-type", middleware.AuthorizePermission(constants.ManageInvestments), ih.SelectInvestmentType)
	ig.Get("/:id/due-dates", ih.DueDates)
	ig.Get("/:id/schedule", ih.Schedule)
	ig.Get("/:id/goals", ih.Goals)
	ig.Get("/:id/analytics", ih.Analytics)
	ig.Get("/:id/transactions", ih.Transactions)
	ig.Post("/:id/end", middleware.AuthorizePermission(constants.ManageInvestments), ih.End)
	ig.Post("/:id/renew", middleware.AuthorizePermission(constants.ManageInvestments), ih.Renew)

	wh := &wdhandler.Handlers{Service: withdrawals}
	wg := app.Group("/api/v1/withdrawals", middleware.RequireAuth())
	wg.Post("/", middleware.AuthorizePermission(constants.RequestWithdrawal), wh.Request)
	wg.Get("/:tx_id", wh.Status)

	th := &topuphandler.Handlers{Service: topups}
	tg := app.Group("/api/v1/topups", middleware.RequireAuth())
	tg.Post("/", middleware.AuthorizePermission(constants.ManageInvestments), th.Initiate)
	tg.Get("/callback", th.Callback)
	tg.Get("/history/:investor_id", th.History)

	nh := &notifhandler.Handlers{Service: notifications}
	ng := app.Group("/api/v1/notifications", middleware.RequireAuth())
	ng.Get("/:investor_id", nh.List)
	ng.Patch("/:id/read", nh.MarkRead)

	rh := &refhandler.Handlers{Service: referrals}
	rg := app.Group("/api/v1/referrals", middleware.RequireAuth())
	rg.Get("/me", rh.Me)
	rg.Post("/apply", rh.Apply)
	rg.Post("/redeem", rh.Redeem)

	adh := &adminhandler.Handlers{Service: admin}
	ag := app.Group("/api/v1/admin", middleware.RequireAuth())
	ag.Get("/investors", middleware.AuthorizePermission(constants.ViewAllInvestors), adh.ListInvestors)
	ag.Get("/payments-summary", middleware.AuthorizePermission(constants.ViewAllInvestors), adh.PaymentsSummary)
	ag.Patch("/investors/:id", middleware.AuthorizePermission(constants.EditInvestors), adh.UpdateInvestor)
	ag.Get("/integrity", middleware.AuthorizePermission(constants.ViewAllInvestors), adh.Integrity)
	ag.Post("/integrity/:id/fix", middleware.AuthorizePermission(constants.EditInvestors), adh.FixIntegrity)
	ag.Get("/missed-payments", middleware.AuthorizePermission(constants.ViewAllInvestors), adh.MissedPayments)
	ag.Post("/investors/:id/catch-up", middleware.AuthorizePermission(constants.RunJobs), adh.CatchUp)
	ag.Post("/jobs/interest", middleware.AuthorizePermission(constants.RunJobs), adh.RunInterestJob)
	ag.Get("/withdrawals/pending", middleware.AuthorizePermission(constants.ApproveWithdrawals), adh.PendingWithdrawals)
	ag.Post("/withdrawals/:tx_id/approve", middleware.AuthorizePermission(constants.ApproveWithdrawals), adh.ApproveWithdrawal)
	ag.Post("/withdrawals/:tx_id/reject", middleware.AuthorizePermission(constants.ApproveWithdrawals), adh.RejectWithdrawal)

	return out, nil
}

// Ping verifies the store and redis answer.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := (&health.GormPinger{DB: a.DB}).Ping(); err != nil {
			return err
		}
	}
	if a.Rdb != nil {
		return a.Rdb.Ping(ctx).Err()
	}
	return nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

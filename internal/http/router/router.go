package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/config"
	"github.com/motorlot/marketplace-api/internal/events"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/listings"
	"github.com/motorlot/marketplace-api/internal/observability"
	"github.com/motorlot/marketplace-api/internal/payments"
	"github.com/motorlot/marketplace-api/internal/platform/logging"
	"github.com/motorlot/marketplace-api/internal/promotions"
	"github.com/motorlot/marketplace-api/internal/showrooms"
)

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Dependencies are the infrastructure adapters chosen by the caller. Nil
// fields fall back to in-process implementations.
type Dependencies struct {
	Logger    *slog.Logger
	Store     listings.Store
	Guard     listings.InFlightGuard
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Stripe    payments.StripeClient
	Now       func() time.Time
}

type api struct {
	logger       *slog.Logger
	authService  *auth.Service
	tokenManager *auth.TokenManager
	listings     *listings.Service
	showrooms    *showrooms.Service
	promotions   *promotions.Service
	payments     *payments.Service
	auditLogs    *auditlog.Service
	now          func() time.Time
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Service:   "marketplace-api",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// New creates a production-ready chi router with baseline middleware and routes.
func New(cfg config.Config, deps Dependencies) (http.Handler, error) {
	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	deps = withDefaults(deps)

	authService := auth.NewService(auth.BuildBootstrapRoleMap(
		cfg.SuperAdminEmails,
		cfg.AdminEmails,
		cfg.SeniorModeratorEmails,
		cfg.ModeratorEmails,
	))
	auditLogs := auditlog.NewService()
	promotionService := promotions.NewService(cfg.PromotionCurrency)

	listingService := listings.NewService(
		deps.Store,
		lifecycle.NewEngine(lifecycle.WithClock(deps.Now)),
		listings.WithInFlightGuard(deps.Guard),
		listings.WithPackages(promotionService),
		listings.WithPublisher(deps.Publisher),
		listings.WithAuditor(auditLogs),
		listings.WithDecisionRecorder(deps.Metrics),
		listings.WithLogger(deps.Logger),
		listings.WithClock(deps.Now),
	)

	stripeClient := deps.Stripe
	if stripeClient == nil {
		stripeClient = payments.NewMockStripeClient()
		if cfg.StripeLive() {
			stripeClient = payments.NewLiveStripeClient(cfg.StripeSecretKey)
		}
	}

	apiHandlers := &api{
		logger:       deps.Logger,
		authService:  authService,
		tokenManager: tokenManager,
		listings:     listingService,
		showrooms:    showrooms.NewService(),
		promotions:   promotionService,
		auditLogs:    auditLogs,
		now:          deps.Now,
		payments: payments.NewService(payments.Config{
			WebhookSecret: cfg.StripeWebhookSecret,
			StripeClient:  stripeClient,
			Listings:      listingService,
			Packages:      promotionService,
			Recorder:      deps.Metrics,
			Logger:        deps.Logger,
		}),
	}
	if cfg.Environment == "development" {
		apiHandlers.seedDevelopmentPackages()
	}

	limiter := newRequestRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(cfg.IsProduction()))
	r.Use(corsHeaders(cfg.CORSAllowOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(limiter.middleware)

		v1.Get("/health", healthHandler)
		v1.Get("/promotion-packages", apiHandlers.handlePromotionPackagesList)
		v1.Get("/showrooms", apiHandlers.handleShowroomsList)
		v1.Get("/showrooms/{showroomID}", apiHandlers.handleShowroomGet)
		v1.Get("/listings", apiHandlers.handleListingsBrowse)
		v1.Post("/webhooks/stripe", apiHandlers.handleStripeWebhook)

		v1.Post("/auth/register", apiHandlers.handleAuthRegister)
		v1.Post("/auth/login", apiHandlers.handleAuthLogin)
		v1.Post("/auth/refresh", apiHandlers.handleAuthRefresh)

		v1.Group(func(public chi.Router) {
			public.Use(apiHandlers.optionalAuthenticate)
			public.Get("/listings/{listingID}", apiHandlers.handleListingGet)
		})

		v1.Group(func(private chi.Router) {
			private.Use(apiHandlers.authenticate)
			private.Get("/auth/me", apiHandlers.handleAuthMe)
			private.Post("/auth/logout", apiHandlers.handleAuthLogout)

			private.Post("/listings", apiHandlers.handleListingCreate)
			private.Patch("/listings/{listingID}", apiHandlers.handleListingUpdate)
			private.Delete("/listings/{listingID}", apiHandlers.handleListingDelete)
			private.Get("/listings/{listingID}/actions", apiHandlers.handleListingAllowedActions)
			private.With(actionRateLimit(cfg.ActionRateLimitPerMinute)).
				Put("/listings/{listingID}/actions", apiHandlers.handleListingAction)
			private.Post("/listings/{listingID}/feature-checkout", apiHandlers.handleFeatureCheckoutCreate)
			private.Get("/me/listings", apiHandlers.handleMyListings)

			private.Post("/showrooms", apiHandlers.handleShowroomRegister)
			private.Get("/showrooms/mine", apiHandlers.handleShowroomMine)

			private.Group(func(showroomRoutes chi.Router) {
				showroomRoutes.Use(apiHandlers.requirePermission(auth.PermissionManageShowroomProfile))
				showroomRoutes.Patch("/showrooms/mine", apiHandlers.handleShowroomUpdateProfile)
			})

			private.Group(func(showroomRoutes chi.Router) {
				showroomRoutes.Use(apiHandlers.requirePermission(auth.PermissionManageShowroomStaff))
				showroomRoutes.Post("/showrooms/mine/staff", apiHandlers.handleShowroomAddStaff)
				showroomRoutes.Delete("/showrooms/mine/staff/{userID}", apiHandlers.handleShowroomRemoveStaff)
			})

			private.Group(func(adminRoutes chi.Router) {
				adminRoutes.Use(apiHandlers.requirePermission(auth.PermissionApproveListings))
				adminRoutes.Get("/admin/listings", apiHandlers.handleAdminListingQueue)
			})

			private.Group(func(adminRoutes chi.Router) {
				adminRoutes.Use(apiHandlers.requirePermission(auth.PermissionManageAllListings))
				adminRoutes.Get("/admin/audit-logs", apiHandlers.handleAdminAuditLogsList)
			})

			private.Group(func(adminRoutes chi.Router) {
				adminRoutes.Use(apiHandlers.requirePermission(auth.PermissionManageAllUsers))
				adminRoutes.Patch("/admin/users/{userID}/role", apiHandlers.handleAdminUserRole)
			})

			private.Group(func(adminRoutes chi.Router) {
				adminRoutes.Use(apiHandlers.requirePermission(auth.PermissionCreatePromotions))
				adminRoutes.Get("/admin/promotion-packages", apiHandlers.handleAdminPromotionPackagesList)
				adminRoutes.Post("/admin/promotion-packages", apiHandlers.handleAdminPromotionPackageCreate)
				adminRoutes.Patch("/admin/promotion-packages/{packageID}", apiHandlers.handleAdminPromotionPackageUpdate)
				adminRoutes.Delete("/admin/promotion-packages/{packageID}", apiHandlers.handleAdminPromotionPackageDelete)
			})

			private.Group(func(adminRoutes chi.Router) {
				adminRoutes.Use(apiHandlers.requirePermission(auth.PermissionManagePlatformSettings))
				adminRoutes.Get("/admin/settings/payments", apiHandlers.handleAdminPaymentSettingsGet)
				adminRoutes.Patch("/admin/settings/payments", apiHandlers.handleAdminPaymentSettingsPatch)
			})
		})
	})

	return r, nil
}

func withDefaults(deps Dependencies) Dependencies {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Store == nil {
		deps.Store = listings.NewMemoryStore()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(deps.Logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return deps
}

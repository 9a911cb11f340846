package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/flash"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type pinger interface {
	Ping(context.Context) error
}

type checkoutService interface {
	Quote(ctx context.Context, owner cart.Owner) (*checkoutsvc.QuoteResult, error)
	BeginPayment(ctx context.Context, customerID uuid.UUID) (*checkoutsvc.PaymentStart, error)
	ConfirmCapture(ctx context.Context, c checkoutsvc.Capture) (*checkoutsvc.CommitResult, error)
}

type ordersService interface {
	List(ctx context.Context, customerID uuid.UUID, params orders.ListParams) (pagination.Page[orders.Summary], error)
	Detail(ctx context.Context, orderID, customerID uuid.UUID) (*orders.Detail, error)
}

type noticeStore interface {
	Take(ctx context.Context, owner string) (*flash.Notice, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP pinger,
	redisClient *redis.Client,
	sessionManager session.AccessSessionChecker,
	authService auth.Service,
	cartStore cart.Store,
	checkoutService checkoutService,
	ordersService ordersService,
	notices noticeStore,
	squareVerifier webhookVerifier,
	squareWebhookService webhookcontrollers.SquareWebhookService,
	squareWebhookGuard webhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(squareWebhookService, squareVerifier, squareWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, cfg.Cart, logg))
		r.With(middleware.Auth(cfg.JWT, sessionManager, logg)).Post("/logout", controllers.AuthLogout(authService, logg))
	})

	// Guests and customers share the cart routes; the owner is resolved
	// from the token when present and from the guest cookie otherwise.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.GuestCart(cfg.Cart, logg))

		r.Get("/", cartcontrollers.CartFetch(checkoutService, logg))
		r.Post("/items", cartcontrollers.CartAdd(cartStore, checkoutService, logg))
		r.Patch("/items", cartcontrollers.CartUpdate(cartStore, checkoutService, logg))
		r.Delete("/items", cartcontrollers.CartRemove(cartStore, checkoutService, logg))
	})

	paymentReplay := middleware.Idempotency(redisClient, cfg.Checkout.IdempotencyTTL, logg, middleware.RequireIdempotencyKey())
	captureReplay := middleware.Idempotency(redisClient, cfg.Checkout.IdempotencyTTL, logg)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.With(paymentReplay).Post("/payment", controllers.CheckoutPayment(checkoutService, logg))
			r.With(captureReplay).Post("/capture", controllers.CheckoutCapture(checkoutService, logg))
		})
		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
		})
		r.Get("/api/v1/notices/flash", controllers.FlashNotice(notices, logg))
	})

	return r
}

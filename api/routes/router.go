package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulugbekov/savdo-backend/api/controllers"
	"github.com/ulugbekov/savdo-backend/api/middleware"
	"github.com/ulugbekov/savdo-backend/internal/auth"
	cartsvc "github.com/ulugbekov/savdo-backend/internal/cart"
	checkoutsvc "github.com/ulugbekov/savdo-backend/internal/checkout"
	orderssvc "github.com/ulugbekov/savdo-backend/internal/orders"
	productssvc "github.com/ulugbekov/savdo-backend/internal/products"
	reviewssvc "github.com/ulugbekov/savdo-backend/internal/reviews"
	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/internal/verification"
	"github.com/ulugbekov/savdo-backend/pkg/auth/session"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionChecker session.AccessSessionChecker

	Verification *verification.Service
	Auth         *auth.Service
	Users        *users.Repository
	Products     *productssvc.Service
	Reviews      *reviewssvc.Service
	Cart         *cartsvc.Service
	Orders       *orderssvc.Service
	Checkout     *checkoutsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	authPolicy := middleware.NewAuthRateLimitPolicy(
		"auth",
		cfg.RateLimit.AuthWindow,
		cfg.RateLimit.AuthIPLimit,
		cfg.RateLimit.AuthPhoneLimit,
	)
	throttled := middleware.AuthRateLimit(authPolicy, deps.Redis, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(throttled).Post("/authorize", controllers.AuthAuthorize(deps.Verification, logg))
		r.With(throttled).Post("/verify", controllers.AuthVerify(deps.Verification, deps.Auth, logg))
		r.With(throttled).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(throttled).Post("/forgot-password", controllers.AuthForgotPassword(deps.Verification, logg))
		r.With(throttled).Post("/reset-password", controllers.AuthResetPassword(deps.Verification, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(deps.Products, logg))
		r.Get("/{productId}", controllers.ProductDetail(deps.Products, logg))
		r.Get("/{productId}/reviews", controllers.ReviewList(deps.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
			r.Post("/{productId}/reviews", controllers.ReviewCreate(deps.Reviews, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileFetch(deps.Users, logg))
			r.Put("/", controllers.ProfileUpdate(deps.Users, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Post("/", controllers.Checkout(deps.Checkout, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})
	})

	return r
}

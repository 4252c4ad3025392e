package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/steepandstone/teahouse-backend/api/controllers"
	"github.com/steepandstone/teahouse-backend/api/middleware"
	authsvc "github.com/steepandstone/teahouse-backend/internal/auth"
	cartsvc "github.com/steepandstone/teahouse-backend/internal/cart"
	checkoutsvc "github.com/steepandstone/teahouse-backend/internal/checkout"
	notifsvc "github.com/steepandstone/teahouse-backend/internal/notifications"
	ordersvc "github.com/steepandstone/teahouse-backend/internal/orders"
	productsvc "github.com/steepandstone/teahouse-backend/internal/products"
	usersvc "github.com/steepandstone/teahouse-backend/internal/users"
	"github.com/steepandstone/teahouse-backend/pkg/auth/session"
	"github.com/steepandstone/teahouse-backend/pkg/config"
	"github.com/steepandstone/teahouse-backend/pkg/db"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	"github.com/steepandstone/teahouse-backend/pkg/logger"
	"github.com/steepandstone/teahouse-backend/pkg/redis"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	Auth          authsvc.Service
	Users         usersvc.Service
	Products      productsvc.Service
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	Orders        ordersvc.Service
	Notifications notifsvc.Service
}

// NewRouter mounts the REST surface.
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

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).
			With(middleware.Idempotency(deps.Redis, logg)).
			Post("/register", controllers.Register(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.Login(deps.Auth, logg))
		r.Post("/refresh", controllers.Refresh(deps.Auth, logg))
		r.Post("/logout", controllers.Logout(deps.Auth, cfg.JWT, logg))
	})

	// Public catalog.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.Products, logg))
		r.Get("/{productID}", controllers.GetProduct(deps.Products, logg))
		r.Get("/{productID}/reviews", controllers.ListProductReviews(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Post("/{productID}/reviews", controllers.SubmitProductReview(deps.Products, logg))
			r.Delete("/{productID}/reviews", controllers.DeleteProductReview(deps.Products, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.Me(deps.Users, logg))
			r.Patch("/", controllers.UpdateMe(deps.Users, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.Delete("/", controllers.ClearCart(deps.Cart, logg))
			r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
			r.Patch("/items/{itemID}", controllers.UpdateCartItem(deps.Cart, logg))
			r.Delete("/items/{itemID}", controllers.RemoveCartItem(deps.Cart, logg))
			r.Post("/discount", controllers.ApplyCartDiscount(deps.Cart, logg))
			r.Put("/tax-rate", controllers.SetCartTaxRate(deps.Cart, logg))
			r.Put("/delivery-fee", controllers.SetCartDeliveryFee(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(deps.Orders, logg))
			r.Get("/lookup", controllers.GetOrderByNumber(deps.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.Post("/{orderID}/rating", controllers.RateOrder(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminListProducts(deps.Products, logg))
				r.Post("/", controllers.AdminCreateProduct(deps.Products, logg))
				r.Patch("/{productID}", controllers.AdminUpdateProduct(deps.Products, logg))
				r.Delete("/{productID}", controllers.AdminDeactivateProduct(deps.Products, logg))
				r.Post("/{productID}/activate", controllers.AdminReactivateProduct(deps.Products, logg))
				r.Put("/{productID}/stock", controllers.AdminSetProductStock(deps.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
				r.Post("/{orderID}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
				r.Put("/{orderID}/payment", controllers.AdminUpdateOrderPayment(deps.Orders, logg))
				r.Post("/{orderID}/notes", controllers.AdminAddOrderNote(deps.Orders, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.AdminListUsers(deps.Users, logg))
				r.Put("/{userID}/role", controllers.AdminSetUserRole(deps.Users, logg))
				r.Put("/{userID}/active", controllers.AdminSetUserActive(deps.Users, logg))
			})
		})
	})

	return r
}

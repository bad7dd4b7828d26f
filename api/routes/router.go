package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercatohq/mercato-backend/api/handlers"
	"github.com/mercatohq/mercato-backend/api/middleware"
	"github.com/mercatohq/mercato-backend/internal/cart"
	"github.com/mercatohq/mercato-backend/internal/catalog"
	"github.com/mercatohq/mercato-backend/internal/customers"
	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/internal/orders"
	"github.com/mercatohq/mercato-backend/internal/sales"
	"github.com/mercatohq/mercato-backend/pkg/auth"
	"github.com/mercatohq/mercato-backend/pkg/config"
	"github.com/mercatohq/mercato-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Customers     customers.Service
	Catalog       catalog.Service
	Cart          cart.Service
	Orders        orders.Service
	Sales         sales.Service
	StockMoves    *inventory.Repository
	ReadinessDeps map[string]handlers.Pinger
	MetricsView   http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CartSession(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HealthLive(cfg))
		r.Get("/ready", handlers.HealthReady(cfg, logg, deps.ReadinessDeps))
	})

	metricsView := deps.MetricsView
	if metricsView == nil {
		metricsView = promhttp.Handler()
	}
	r.Handle("/metrics", metricsView)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", handlers.Register(deps.Customers, logg))
		r.Post("/login", handlers.Login(deps.Customers, deps.Cart, logg))
		r.Post("/staff/login", handlers.StaffLogin(deps.Customers, logg))
	})

	// Storefront reads are public.
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", handlers.ListProducts(deps.Catalog, logg))
		r.Get("/products/{productId}", handlers.GetProduct(deps.Catalog, logg))
		r.Get("/attributes", handlers.ListAttributes(deps.Catalog, logg))
	})

	// Cart works for anonymous and authed shoppers alike; a valid bearer
	// token upgrades the hint, a missing one does not block the request.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/", handlers.GetCart(deps.Cart, logg))
		r.Post("/items", handlers.AddCartItem(deps.Cart, logg))
		r.Put("/items/{variantId}", handlers.UpdateCartItem(deps.Cart, logg))
		r.Delete("/items/{variantId}", handlers.RemoveCartItem(deps.Cart, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireKind(auth.ActorCustomer, logg))

		r.Get("/api/v1/me", handlers.Me(deps.Customers, logg))
		r.Post("/api/v1/checkout", handlers.Checkout(deps.Orders, logg))
		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", handlers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", handlers.GetOrder(deps.Orders, logg))
			r.Post("/{orderId}/cancel", handlers.CancelOrder(deps.Orders, logg))
		})
	})

	r.Route("/api/staff/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireKind(auth.ActorStaff, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/attributes", handlers.DefineAttribute(deps.Catalog, logg))
			r.Post("/attributes/{attributeId}/values", handlers.AddAttributeValue(deps.Catalog, logg))
			r.Post("/products", handlers.CreateProduct(deps.Catalog, logg))
			r.Patch("/products/{productId}", handlers.UpdateProduct(deps.Catalog, logg))
			r.Delete("/products/{productId}", handlers.DeleteProduct(deps.Catalog, logg))
			r.Get("/products/{productId}/duplicates", handlers.AuditDuplicateVariants(deps.Catalog, logg))
			r.Post("/products/{productId}/variants", handlers.CreateVariant(deps.Catalog, logg))
			r.Delete("/variants/{variantId}", handlers.DeleteVariant(deps.Catalog, logg))
			r.Post("/variants/{variantId}/stock", handlers.AdjustStock(deps.Catalog, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/variants/{variantId}/movements", handlers.ListStockMovements(deps.StockMoves, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", handlers.CreateSale(deps.Sales, logg))
			r.Get("/", handlers.ListSales(deps.Sales, logg))
			r.Get("/{saleId}", handlers.GetSale(deps.Sales, logg))
			r.Post("/{saleId}/void", handlers.VoidSale(deps.Sales, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", handlers.GetOrder(deps.Orders, logg))
			r.Post("/{orderId}/advance", handlers.AdvanceOrder(deps.Orders, logg))
			r.Post("/{orderId}/cancel", handlers.CancelOrder(deps.Orders, logg))
		})
	})

	return r
}

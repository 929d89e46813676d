package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/partsdesk-backend/api/controllers"
	"github.com/angelmondragon/partsdesk-backend/api/middleware"
	"github.com/angelmondragon/partsdesk-backend/internal/auth"
	"github.com/angelmondragon/partsdesk-backend/internal/cart"
	"github.com/angelmondragon/partsdesk-backend/internal/catalog"
	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/internal/transfer"
	"github.com/angelmondragon/partsdesk-backend/internal/users"
	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/angelmondragon/partsdesk-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/partsdesk-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface is wired to. Idempotency
// and RateLimit may be nil, which disables those middlewares.
type Dependencies struct {
	Ready       map[string]controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	RateLimit   middleware.RateLimiterStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Now         func() time.Time

	Auth     auth.Service
	Users    users.Service
	Catalog  catalog.Service
	Ledger   ledger.Service
	Cart     cart.Service
	Sales    sales.Service
	Transfer transfer.Service
}

var referenceKinds = []catalog.Kind{
	catalog.KindManufacturer,
	catalog.KindEngine,
	catalog.KindCategory,
	catalog.KindSupplier,
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewLoginRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginUserLimit,
	)
	idempotent := middleware.Idempotency(deps.Idempotency, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.LoginRateLimit(loginPolicy, deps.RateLimit, logg)).
			Post("/auth/login", controllers.AuthLogin(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			registerAuthenticated(r, cfg, logg, deps, idempotent)
		})
	})

	return r
}

func registerAuthenticated(r chi.Router, cfg *config.Config, logg *logger.Logger, deps Dependencies, idempotent func(http.Handler) http.Handler) {
	r.Get("/catalog/hierarchy", controllers.CatalogHierarchy(deps.Catalog, logg))
	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductSearch(deps.Catalog, logg))
		r.Get("/{productId}", controllers.ProductGet(deps.Catalog, logg))
		r.Get("/{productId}/variants", controllers.ProductVariants(deps.Catalog, logg))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", controllers.CartGet(deps.Cart, logg))
		r.Delete("/", controllers.CartClear(deps.Cart, logg))
		r.With(idempotent).Post("/items", controllers.CartAddItem(deps.Cart, logg))
		r.Delete("/items/{variantId}", controllers.CartRemoveItem(deps.Cart, logg))
		r.With(idempotent).Post("/checkout", controllers.CartCheckout(deps.Cart, logg))
	})

	r.Route("/sales", func(r chi.Router) {
		r.With(middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleEmployee), idempotent).
			Post("/", controllers.DirectSale(deps.Sales, logg))
		// customers are narrowed to their own receipts by the handlers
		r.Get("/", controllers.ListSales(deps.Sales, logg))
		r.Get("/{saleId}", controllers.GetSale(deps.Sales, logg))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Get("/stats", controllers.AdminStats(deps.Sales, deps.Now, logg))
		r.Get("/carts", controllers.AdminActiveCarts(deps.Cart, logg))
		r.Delete("/carts/{shopperId}", controllers.AdminForceRelease(deps.Cart, logg))

		for _, kind := range referenceKinds {
			r.Route("/"+string(kind), func(r chi.Router) {
				r.Get("/", controllers.ReferenceList(deps.Catalog, kind, logg))
				r.Post("/", controllers.ReferenceCreate(deps.Catalog, kind, logg))
				r.Put("/{id}", controllers.ReferenceRename(deps.Catalog, kind, logg))
				r.Delete("/{id}", controllers.ReferenceDelete(deps.Catalog, kind, logg))
			})
		}

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(deps.Catalog, logg))
			r.Put("/{productId}", controllers.AdminUpdateProduct(deps.Catalog, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Catalog, logg))
			r.Post("/{productId}/variants", controllers.AdminCreateVariant(deps.Catalog, logg))
			r.Put("/{productId}/variants/{variantId}", controllers.AdminUpdateVariant(deps.Catalog, logg))
			r.Delete("/{productId}/variants/{variantId}", controllers.AdminDeleteVariant(deps.Catalog, logg))
		})

		r.Route("/variants/{variantId}", func(r chi.Router) {
			r.Get("/stock", controllers.AdminVariantAvailability(deps.Ledger, logg))
			r.Put("/stock", controllers.AdminSetStock(deps.Ledger, logg))
			r.Get("/movements", controllers.AdminVariantMovements(deps.Ledger, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/export", controllers.CatalogExport(deps.Transfer, deps.Now, logg))
			r.Post("/import", controllers.CatalogImport(deps.Transfer, cfg.Import.MaxUploadBytes(), logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(deps.Users, logg))
			r.Post("/", controllers.AdminCreateUser(deps.Users, logg))
			r.Put("/{userId}/password", controllers.AdminSetUserPassword(deps.Users, logg))
			r.Delete("/{userId}", controllers.AdminDeactivateUser(deps.Users, logg))
		})
	})
}

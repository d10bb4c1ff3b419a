package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/config"
	"github.com/example/wdstore/internal/handlers"
	"github.com/example/wdstore/internal/middleware"
	"github.com/example/wdstore/internal/services"
)

// Deps carries the shared services the handlers are built on. They are
// constructed once in main so the background loops share the same
// instances as the HTTP layer.
type Deps struct {
	Cart     *services.CartService
	Orders   *services.OrderService
	Settings *services.SettingsService
	Stripe   *services.StripeService
	Emailer  *services.Emailer
	CSV      *services.CatalogCSV
	Poller   *services.OrderPoller
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(deps.Cart)
	checkoutHandler := handlers.NewCheckoutHandler(db, deps.Cart, deps.Orders, deps.Settings, deps.Stripe)
	webhookHandler := handlers.NewStripeWebhookHandler(db, deps.Orders, deps.Stripe)
	orderHandler := handlers.NewOrderHandler(db)
	adminOrderHandler := handlers.NewAdminOrderHandler(db, deps.Orders)
	adminSettingsHandler := handlers.NewAdminSettingsHandler(deps.Settings)
	adminCatalogHandler := handlers.NewAdminCatalogHandler(deps.CSV)
	adminEmailHandler := handlers.NewAdminEmailHandler(db, deps.Emailer, deps.Orders)
	adminDiagnosticsHandler := handlers.NewAdminDiagnosticsHandler(db, deps.Poller)

	authRequired := middleware.AuthMiddleware(cfg)
	adminRequired := middleware.RequireAdmin(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/profile", authRequired, authHandler.Profile)

	// Catalog routes (public reads)
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Cart routes (cookie session)
	cart := api.Group("/cart")
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddToCart)
	cart.Put("/items", cartHandler.UpdateCartLine)
	cart.Delete("/items", cartHandler.RemoveFromCart)
	cart.Delete("/", cartHandler.ClearCart)

	// Checkout routes
	checkout := api.Group("/checkout")
	checkout.Get("/config", checkoutHandler.StoreConfig)
	checkout.Post("/order", checkoutHandler.CreateOrder)
	checkout.Post("/session", checkoutHandler.CreateSession)
	checkout.Post("/payment-intent", checkoutHandler.CreatePaymentIntent)
	checkout.Get("/success", checkoutHandler.Success)

	// Stripe webhook (raw body, no auth)
	api.Post("/stripe/webhook", webhookHandler.Handle)

	// Customer order history
	myOrders := api.Group("/orders", authRequired)
	myOrders.Get("/", orderHandler.MyOrders)
	myOrders.Get("/:id", orderHandler.MyOrder)

	// Admin routes
	admin := api.Group("/admin", authRequired, adminRequired)

	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
	admin.Get("/products/export", adminCatalogHandler.ExportCSV)
	admin.Post("/products/import", adminCatalogHandler.ImportCSV)

	admin.Get("/orders", adminOrderHandler.ListOrders)
	admin.Get("/orders/:id", adminOrderHandler.GetOrder)
	admin.Put("/orders/:id/status", adminOrderHandler.UpdateStatus)
	admin.Put("/orders/:id/tracking", adminOrderHandler.UpdateTracking)
	admin.Post("/orders/bulk-delete", adminOrderHandler.BulkDelete)

	admin.Get("/settings", adminSettingsHandler.GetSettings)
	admin.Put("/settings", adminSettingsHandler.UpdateSettings)

	templates := admin.Group("/email/templates")
	templates.Get("/", adminEmailHandler.ListTemplates)
	templates.Post("/", adminEmailHandler.CreateTemplate)
	templates.Get("/:id", adminEmailHandler.GetTemplate)
	templates.Put("/:id", adminEmailHandler.UpdateTemplate)
	templates.Delete("/:id", adminEmailHandler.DeleteTemplate)
	templates.Get("/:id/preview", adminEmailHandler.PreviewTemplate)
	templates.Post("/:id/test-send", adminEmailHandler.TestSendTemplate)

	rules := admin.Group("/email/rules")
	rules.Get("/", adminEmailHandler.ListRules)
	rules.Post("/", adminEmailHandler.CreateRule)
	rules.Put("/:id", adminEmailHandler.UpdateRule)
	rules.Delete("/:id", adminEmailHandler.DeleteRule)
	rules.Post("/test", adminEmailHandler.TestRule)

	admin.Get("/email/logs", adminEmailHandler.ListLogs)
	admin.Get("/email/scheduled", adminEmailHandler.ListScheduled)
	admin.Post("/email/scheduled/run", adminEmailHandler.RunScheduled)

	admin.Get("/diagnostics", adminDiagnosticsHandler.Snapshot)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

package handlers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
)

// CSRF protects every form post. The bearer-token API is exempt.
func CSRF(secure bool) fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   secure,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"form": c.FormValue("csrf")})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	})
}

// ExposeCSRF copies the CSRF token into the Locals key templates read.
func ExposeCSRF(c *fiber.Ctx) error {
	if tok, ok := c.Locals("csrf").(string); ok {
		c.Locals("CSRFToken", tok)
	}
	return c.Next()
}

// Media serves uploaded files from dir, refusing anything that could escape it.
func Media(dir string) fiber.Handler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		// Block encoded traversal attempts as well as raw .. or null bytes
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(filepath.Join(dir, clean), true)
	}
}

// Register wires every page and API route of the shop onto app.
func Register(app *fiber.App, d *Deps) {
	requireUser := RequireUser(d.Auth)

	// Catalog
	app.Get("/", d.CategoryHandler.Home)
	app.Get("/search", limiter.New(limiter.Config{Max: 20, Expiration: time.Minute}), d.SearchHandler.Search)
	app.Get("/category/:slug/", d.CategoryHandler.Detail)
	app.Get("/products/:kind/:slug/", d.ProductHandler.Detail)

	// Cart & orders
	app.Get("/cart/", d.CartHandler.View)
	app.Get("/add-to-cart/:kind/:slug/", requireUser, d.CartHandler.Add)
	app.Get("/remove-from-cart/:kind/:slug/", requireUser, d.CartHandler.Remove)
	app.Post("/change-qty/:kind/:slug/", requireUser, d.CartHandler.ChangeQty)
	app.Get("/checkout/", requireUser, d.OrderHandler.Checkout)
	app.Post("/make-order/", requireUser, d.OrderHandler.MakeOrder)
	app.Post("/payed-online-order/", requireUser, d.OrderHandler.PayedOnlineOrder)
	app.Get("/orders", requireUser, d.OrderHandler.History)
	app.Get("/orders/:id", requireUser, d.OrderHandler.View)

	// Accounts (login throttled)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)
	app.Get("/register", d.AuthHandler.RegisterForm)
	app.Post("/register", limiter.New(limiter.Config{Max: 10, Expiration: 10 * time.Minute}), d.AuthHandler.Register)

	// Admin
	adminH := d.AdminHandler
	admin := app.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/", adminH.Dashboard)
	admin.Get("/orders", adminH.OrdersPage)
	admin.Get("/orders/export.xlsx", adminH.ExportOrders)
	admin.Post("/orders/:id/status", adminH.UpdateOrderStatus)
	admin.Get("/users", adminH.UsersPage)
	admin.Post("/users/:id/delete", adminH.DeleteUser)
	admin.Get("/categories", adminH.CategoriesPage)
	admin.Post("/categories", adminH.CreateCategory)
	admin.Get("/categories/:id/features", adminH.FeaturesPage)
	admin.Post("/categories/:id/features", adminH.CreateFeature)
	admin.Post("/features/:id/values", adminH.AddFeatureValue)
	admin.Get("/products", adminH.ProductsPage)
	admin.Get("/products/new", adminH.NewProduct)
	admin.Post("/products", adminH.CreateProduct)
	admin.Post("/products/:id/features", adminH.SetProductFeature)

	// REST API
	apiH := d.APIHandler
	api := app.Group("/api/v1", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT",
		AllowHeaders: "Authorization,Content-Type",
	}))
	apiLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|api"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.api.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	adminToken := RequireAPIToken(d.Tokens, true)
	api.Post("/token", apiLimiter, apiH.Token)
	api.Get("/categories", apiLimiter, apiH.Categories)
	api.Get("/categories/:id", apiLimiter, apiH.Category)
	api.Post("/categories", apiLimiter, adminToken, apiH.CreateCategory)
	api.Put("/categories/:id", apiLimiter, adminToken, apiH.UpdateCategory)
	api.Get("/notebooks", apiLimiter, apiH.Products(domain.KindNotebook))
	api.Get("/notebooks/:id", apiLimiter, apiH.Product(domain.KindNotebook))
	api.Get("/smartphones", apiLimiter, apiH.Products(domain.KindSmartphone))
	api.Get("/smartphones/:id", apiLimiter, apiH.Product(domain.KindSmartphone))
	api.Get("/customers", apiLimiter, adminToken, apiH.CustomersList)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
}

// NotFound is the catch-all handler mounted after every route.
func NotFound(c *fiber.Ctx) error {
	return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
}

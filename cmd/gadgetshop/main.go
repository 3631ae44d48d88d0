package main

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"gadgetshop/internal/config"
	"gadgetshop/internal/http/handlers"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/payments"
	"gadgetshop/internal/repos"
)

func main() {
	// Pre-config logger so config warnings are not lost
	if _, err := applog.Init("info", ""); err != nil {
		panic(err)
	}
	cfg := config.Load()
	logger, err := applog.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		applog.L().Fatal("log.init", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db.open", zap.String("dsn", cfg.DBDSN), zap.Error(err))
	}
	defer db.Close()

	deps := handlers.NewDeps(db, cfg, payments.New(cfg.StripeSecretKey))

	// Templates & app
	engine := html.New(cfg.TemplatesDir, ".html")
	engine.Reload(true)

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: handlers.ErrorHandler,
		// product images are up to 3 MiB plus form fields
		BodyLimit: 4 << 20,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(applog.AccessLog())
	app.Use(helmet.New())
	// Attach user to context if logged in (for templates/headers)
	app.Use(handlers.AttachUser(deps.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := string(c.Request().URI().Path())
			return strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, "/media/")
		},
	}))
	app.Use(handlers.CSRF(cfg.CookieSecure))
	app.Use(handlers.ExposeCSRF)

	// ---------- Static assets ----------
	logger.Info("static.mount", zap.String("static", "./web/static"), zap.String("media", cfg.MediaDir))
	app.Static("/static", "./web/static")
	app.Get("/media/*", handlers.Media(cfg.MediaDir))

	// ---------- App handlers ----------
	handlers.Register(app, deps)
	app.Use(handlers.NotFound)

	logger.Info("server.start", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server.listen", zap.Error(err))
	}
}

package handlers

import (
	"time"

	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/config"
	"gadgetshop/internal/media"
	"gadgetshop/internal/payments"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/services"
)

type Deps struct {
	Auth   *services.AuthService
	Tokens *services.TokenService

	CategoryHandler *CategoryHandler
	ProductHandler  *ProductHandler
	SearchHandler   *SearchHandler
	CartHandler     *CartHandler
	OrderHandler    *OrderHandler
	AuthHandler     *AuthHandler
	AdminHandler    *AdminHandler
	APIHandler      *APIHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, gw payments.Gateway) *Deps {
	tx := repos.NewTxRunner(db)
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	featRepo := repos.NewFeatureRepo(db)
	cartRepo := repos.NewCartRepo(db)
	custRepo := repos.NewCustomerRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)

	if gw == nil {
		gw = payments.Disabled{}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "rub"
	}

	catalogSvc := services.NewCatalogService(tx, catRepo, prodRepo, featRepo)
	specSvc := services.NewSpecService(tx, catRepo, prodRepo, featRepo)
	cartSvc := services.NewCartService(tx, cartRepo, custRepo, prodRepo)
	orderSvc := services.NewOrderService(tx, cartRepo, custRepo, orderRepo, userRepo, gw, currency)
	authSvc := services.NewAuthService(tx, userRepo, custRepo, cartRepo)
	tokenSvc := services.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	custSvc := services.NewCustomerService(custRepo, orderRepo)
	reportSvc := services.NewReportService(orderRepo)

	return &Deps{
		Auth:   authSvc,
		Tokens: tokenSvc,

		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:  &ProductHandler{Catalog: catalogSvc},
		SearchHandler:   &SearchHandler{Catalog: catalogSvc},
		CartHandler:     &CartHandler{Cart: cartSvc},
		OrderHandler: &OrderHandler{
			Cart: cartSvc, Order: orderSvc,
			PublishableKey: cfg.StripePublishableKey,
		},
		AuthHandler: &AuthHandler{Auth: authSvc, SecureCookies: cfg.CookieSecure},
		AdminHandler: &AdminHandler{
			Catalog: catalogSvc, Spec: specSvc, Order: orderSvc, Auth: authSvc,
			Reports: reportSvc, Media: media.NewStore(cfg.MediaDir),
		},
		APIHandler: &APIHandler{Catalog: catalogSvc, Customers: custSvc, Auth: authSvc, Tokens: tokenSvc},
	}
}

package handlers

import (
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

const (
	apiPageSize    = 2
	apiMaxPageSize = 10
)

// APIHandler serves the read-mostly REST API under /api/v1.
type APIHandler struct {
	Catalog   *services.CatalogService
	Customers *services.CustomerService
	Auth      *services.AuthService
	Tokens    *services.TokenService
}

type apiPage struct {
	ObjectCount int     `json:"object_count"`
	Next        *string `json:"next"`
	Previous    *string `json:"previous"`
	Items       any     `json:"items"`
}

type apiProduct struct {
	ID          string                 `json:"id"`
	Kind        domain.Kind            `json:"kind"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Slug        string                 `json:"slug"`
	Description string                 `json:"description"`
	Image       string                 `json:"image"`
	Price       string                 `json:"price"`
	URL         string                 `json:"url"`
	Notebook    *domain.NotebookSpec   `json:"notebook,omitempty"`
	Smartphone  *domain.SmartphoneSpec `json:"smartphone,omitempty"`
}

func toAPIProduct(p domain.Product) apiProduct {
	return apiProduct{
		ID: p.ID, Kind: p.Kind, Category: p.CategoryID, Title: p.Title, Slug: p.Slug,
		Description: p.Description, Image: p.Image, Price: p.Price.StringFixed(2), URL: p.URL(),
		Notebook: p.Notebook, Smartphone: p.Smartphone,
	}
}

type apiOrder struct {
	ID          string             `json:"id"`
	Status      domain.OrderStatus `json:"status"`
	Fulfillment domain.Fulfillment `json:"buying_type"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name"`
	Phone       string             `json:"phone"`
	Address     string             `json:"address"`
	Comment     string             `json:"comment"`
	Total       string             `json:"total"`
	CreatedAt   string             `json:"created_at"`
	OrderDate   string             `json:"order_date"`
}

type apiCustomer struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Orders    []apiOrder `json:"orders"`
}

// pageParams reads page and page_size, clamping them to sane values.
func pageParams(c *fiber.Ctx) (page, size int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size = c.QueryInt("page_size", apiPageSize)
	if size < 1 {
		size = apiPageSize
	}
	if size > apiMaxPageSize {
		size = apiMaxPageSize
	}
	return page, size
}

// paged wraps items in the pagination envelope with absolute next/previous links.
func paged(c *fiber.Ctx, page, size, total int, items any) apiPage {
	link := func(n int) *string {
		q := url.Values{}
		for k, v := range c.Queries() {
			q.Set(k, v)
		}
		q.Set("page", strconv.Itoa(n))
		q.Set("page_size", strconv.Itoa(size))
		s := c.BaseURL() + c.Path() + "?" + q.Encode()
		return &s
	}
	out := apiPage{ObjectCount: total, Items: items}
	if page*size < total {
		out.Next = link(page + 1)
	}
	if page > 1 {
		out.Previous = link(page - 1)
	}
	return out
}

type tokenRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// POST /api/v1/token
func (h *APIHandler) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	u, err := h.Auth.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		applog.Security(c, "api.token.fail", map[string]any{"email": req.Email})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
	}
	tok, exp, err := h.Tokens.Issue(u)
	if err != nil {
		return failJSON(c, "api.token.issue.fail", err, nil)
	}
	applog.Audit(c, "api.token.issue", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"token": tok, "token_type": "Bearer", "expires_at": exp.UTC().Format(time.RFC3339)})
}

// GET /api/v1/categories
func (h *APIHandler) Categories(c *fiber.Ctx) error {
	page, size := pageParams(c)
	items, total, err := h.Catalog.CategoryPage(c.UserContext(), page, size)
	if err != nil {
		return failJSON(c, "api.categories.fail", err, nil)
	}
	if items == nil {
		items = []domain.Category{}
	}
	return c.JSON(paged(c, page, size, total, items))
}

// GET /api/v1/categories/:id
func (h *APIHandler) Category(c *fiber.Ctx) error {
	cat, err := h.Catalog.CategoryByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return failJSON(c, "api.category.fail", err, nil)
	}
	return c.JSON(cat)
}

type categoryRequest struct {
	Name string `json:"name" form:"name"`
	Slug string `json:"slug" form:"slug"`
}

func (r categoryRequest) validate() (name, slug string, err error) {
	name, ok := validate.Name(r.Name)
	if !ok {
		return "", "", domain.Invalid("name", "is required")
	}
	slug, ok = validate.Slug(r.Slug)
	if !ok {
		return "", "", domain.Invalid("slug", "use lowercase letters, digits, - and _")
	}
	return name, slug, nil
}

// POST /api/v1/categories
func (h *APIHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	name, slug, err := req.validate()
	if err != nil {
		return failJSON(c, "api.category.create.fail", err, nil)
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), name, slug)
	if err != nil {
		return failJSON(c, "api.category.create.fail", err, map[string]any{"slug": slug})
	}
	applog.Audit(c, "api.category.create", map[string]any{"category_id": cat.ID})
	return c.Status(fiber.StatusCreated).JSON(cat)
}

// PUT /api/v1/categories/:id
func (h *APIHandler) UpdateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	name, slug, err := req.validate()
	if err != nil {
		return failJSON(c, "api.category.update.fail", err, nil)
	}
	cat, err := h.Catalog.UpdateCategory(c.UserContext(), c.Params("id"), name, slug)
	if err != nil {
		return failJSON(c, "api.category.update.fail", err, map[string]any{"category_id": c.Params("id")})
	}
	applog.Audit(c, "api.category.update", map[string]any{"category_id": cat.ID})
	return c.JSON(cat)
}

// Products returns the list handler for one product kind. The search
// query parameter narrows the list by title.
func (h *APIHandler) Products(kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		q, _ := validate.Q(c.Query("search"))
		prods, total, err := h.Catalog.ListByKind(c.UserContext(), kind, q, page, size)
		if err != nil {
			return failJSON(c, "api.products.fail", err, map[string]any{"kind": kind})
		}
		items := make([]apiProduct, 0, len(prods))
		for _, p := range prods {
			items = append(items, toAPIProduct(p))
		}
		return c.JSON(paged(c, page, size, total, items))
	}
}

// Product returns the detail handler for one product kind.
func (h *APIHandler) Product(kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := h.Catalog.ProductByID(c.UserContext(), kind, c.Params("id"))
		if err != nil {
			return failJSON(c, "api.product.fail", err, map[string]any{"kind": kind})
		}
		return c.JSON(toAPIProduct(p))
	}
}

// GET /api/v1/customers
func (h *APIHandler) CustomersList(c *fiber.Ctx) error {
	page, size := pageParams(c)
	rows, total, err := h.Customers.Page(c.UserContext(), page, size)
	if err != nil {
		return failJSON(c, "api.customers.fail", err, nil)
	}
	items := make([]apiCustomer, 0, len(rows))
	for _, r := range rows {
		cust := apiCustomer{
			ID: r.ID, UserID: r.UserID, Email: r.Email, FirstName: r.FirstName, LastName: r.LastName,
			Phone: r.Phone, Address: r.Address, Orders: make([]apiOrder, 0, len(r.Orders)),
		}
		for _, o := range r.Orders {
			cust.Orders = append(cust.Orders, apiOrder{
				ID: o.ID, Status: o.Status, Fulfillment: o.Fulfillment, FirstName: o.FirstName, LastName: o.LastName,
				Phone: o.Phone, Address: o.Address, Comment: o.Comment, Total: o.Total.StringFixed(2),
				CreatedAt: o.CreatedAt, OrderDate: o.OrderDate,
			})
		}
		items = append(items, cust)
	}
	return c.JSON(paged(c, page, size, total, items))
}

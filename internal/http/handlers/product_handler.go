package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/log"
	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// GET /products/:kind/:slug/
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	slug, ok := validate.Slug(c.Params("slug"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(404).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	}
	d, err := h.Catalog.Product(c.UserContext(), c.Params("kind"), slug)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	}
	if err != nil {
		return fail(c, "product.view.fail", err, nil)
	}
	return render(c, "product", fiber.Map{"P": d.Product, "Category": d.Category, "Specs": d.Product.SpecRows(), "Features": d.Features})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

const latestOnHome = 8

type CategoryHandler struct {
	Catalog *services.CatalogService
}

func (h *CategoryHandler) Home(c *fiber.Ctx) error {
	cats, err := h.Catalog.CategoriesWithCounts(c.UserContext())
	if err != nil {
		return fail(c, "home.categories.fail", err, nil)
	}
	latest, err := h.Catalog.Latest(c.UserContext(), latestOnHome)
	if err != nil {
		return fail(c, "home.latest.fail", err, nil)
	}
	return render(c, "home", fiber.Map{"Categories": cats, "Latest": latest})
}

// GET /category/:slug/
func (h *CategoryHandler) Detail(c *fiber.Ctx) error {
	slug, ok := validate.Slug(c.Params("slug"))
	if !ok {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Category not found"})
	}
	page := c.QueryInt("page", 1)
	cp, err := h.Catalog.Category(c.UserContext(), slug, c.Queries(), page, 12)
	if err != nil {
		return fail(c, "category.view.fail", err, map[string]any{"slug": slug})
	}
	return render(c, "category", fiber.Map{"Page": cp, "PageNo": page})
}

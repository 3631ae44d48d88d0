package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

// resolve returns the open cart of the visitor. Anonymous visitors share the
// read-only placeholder cart.
func (h *CartHandler) resolve(c *fiber.Ctx) (domain.Cart, error) {
	uid := ""
	if u := currentUser(c); u != nil {
		uid = u.ID
	}
	return h.Cart.Resolve(c.UserContext(), uid)
}

// GET /cart/
func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.resolve(c)
	if err != nil {
		return fail(c, "cart.view.fail", err, nil)
	}
	cart, err = h.Cart.View(c.UserContext(), cart)
	if err != nil {
		return fail(c, "cart.view.fail", err, nil)
	}
	return render(c, "cart", fiber.Map{"Cart": cart})
}

// GET /add-to-cart/:kind/:slug/
func (h *CartHandler) Add(c *fiber.Ctx) error {
	kind, slug := c.Params("kind"), c.Params("slug")
	cart, err := h.resolve(c)
	if err != nil {
		return fail(c, "cart.add.fail", err, nil)
	}
	if _, err := h.Cart.Add(c.UserContext(), cart, kind, slug); err != nil {
		return fail(c, "cart.add.fail", err, map[string]any{"kind": kind, "slug": slug})
	}
	applog.Audit(c, "cart.add", map[string]any{"cart_id": cart.ID, "kind": kind, "slug": slug})
	return c.Redirect("/cart/")
}

// GET /remove-from-cart/:kind/:slug/
func (h *CartHandler) Remove(c *fiber.Ctx) error {
	kind, slug := c.Params("kind"), c.Params("slug")
	cart, err := h.resolve(c)
	if err != nil {
		return fail(c, "cart.remove.fail", err, nil)
	}
	if _, err := h.Cart.Remove(c.UserContext(), cart, kind, slug); err != nil {
		return fail(c, "cart.remove.fail", err, map[string]any{"kind": kind, "slug": slug})
	}
	applog.Audit(c, "cart.remove", map[string]any{"cart_id": cart.ID, "kind": kind, "slug": slug})
	return c.Redirect("/cart/")
}

// POST /change-qty/:kind/:slug/
func (h *CartHandler) ChangeQty(c *fiber.Ctx) error {
	kind, slug := c.Params("kind"), c.Params("slug")
	qty, ok := validate.Qty(c.FormValue("qty"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "qty", "value": c.FormValue("qty")})
		return renderStatus(c, fiber.StatusBadRequest, "notfound", fiber.Map{"Message": "Quantity must be a whole number from 1 to 999"})
	}
	cart, err := h.resolve(c)
	if err != nil {
		return fail(c, "cart.qty.fail", err, nil)
	}
	if _, err := h.Cart.ChangeQty(c.UserContext(), cart, kind, slug, qty); err != nil {
		return fail(c, "cart.qty.fail", err, map[string]any{"kind": kind, "slug": slug, "qty": qty})
	}
	applog.Audit(c, "cart.qty", map[string]any{"cart_id": cart.ID, "kind": kind, "slug": slug, "qty": qty})
	return c.Redirect("/cart/")
}

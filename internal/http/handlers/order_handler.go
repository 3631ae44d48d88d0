package handlers

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/services"
)

type OrderHandler struct {
	Cart           *services.CartService
	Order          *services.OrderService
	PublishableKey string
}

func (h *OrderHandler) userCart(c *fiber.Ctx) (*domain.User, domain.Cart, error) {
	u := currentUser(c)
	if u == nil {
		return nil, domain.Cart{}, domain.ErrNotFound
	}
	cart, err := h.Cart.Resolve(c.UserContext(), u.ID)
	if err != nil {
		return u, domain.Cart{}, err
	}
	cart, err = h.Cart.View(c.UserContext(), cart)
	return u, cart, err
}

// GET /checkout/
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	_, cart, err := h.userCart(c)
	if err != nil {
		applog.Error(c, "checkout.load", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load your cart"})
	}
	data := fiber.Map{
		"Cart":     cart,
		"Today":    h.Order.Now().Format(time.DateOnly),
		"ErrField": c.Query("err"),
	}
	if !cart.IsEmpty() {
		intent, err := h.Order.PaymentIntent(c.UserContext(), cart)
		if err != nil {
			// the order form still works without online payment
			applog.Info(c, "checkout.intent.unavailable", map[string]any{"cart_id": cart.ID, "error": err.Error()})
		} else {
			data["ClientSecret"] = intent.ClientSecret
			data["PublishableKey"] = h.PublishableKey
		}
	}
	return render(c, "checkout", data)
}

// POST /make-order/
func (h *OrderHandler) MakeOrder(c *fiber.Ctx) error {
	u, cart, err := h.userCart(c)
	if err != nil {
		return fail(c, "order.place.fail", err, nil)
	}
	form := services.OrderForm{
		FirstName:   c.FormValue("first_name"),
		LastName:    c.FormValue("last_name"),
		Phone:       c.FormValue("phone"),
		Address:     c.FormValue("address"),
		Fulfillment: c.FormValue("buying_type"),
		OrderDate:   c.FormValue("order_date"),
		Comment:     c.FormValue("comment"),
	}
	o, err := h.Order.Place(c.UserContext(), cart, u.ID, form)
	if err != nil {
		if statusOf(err) == fiber.StatusInternalServerError {
			return fail(c, "order.place.fail", err, map[string]any{"cart_id": cart.ID})
		}
		applog.Security(c, "order.place.fail", map[string]any{"cart_id": cart.ID, "error": err.Error()})
		target := "/checkout/"
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			target += "?err=" + url.QueryEscape(ve.Field)
		}
		return c.Redirect(target)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id": o.ID, "cart_id": o.CartID, "total": o.Total.StringFixed(2), "fulfillment": o.Fulfillment,
	})
	return c.Redirect("/")
}

// POST /payed-online-order/
func (h *OrderHandler) PayedOnlineOrder(c *fiber.Ctx) error {
	u, cart, err := h.userCart(c)
	if err != nil {
		return failJSON(c, "order.paid.fail", err, nil)
	}
	o, err := h.Order.PlacePaid(c.UserContext(), cart, u.ID, c.FormValue("payment_intent"))
	if err != nil {
		return failJSON(c, "order.paid.fail", err, map[string]any{"cart_id": cart.ID})
	}
	applog.Audit(c, "order.paid", map[string]any{"order_id": o.ID, "cart_id": o.CartID, "total": o.Total.StringFixed(2)})
	return c.JSON(fiber.Map{"status": "paid", "order_id": o.ID})
}

// History lists orders for the current logged-in user.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	u := currentUser(c)
	if u == nil {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Orders not available"})
	}
	orders, err := h.Order.History(c.UserContext(), u.ID)
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	return render(c, "order_history", fiber.Map{"Orders": orders})
}

// GET /orders/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	u := currentUser(c)
	oid := c.Params("id")
	if u == nil || oid == "" {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Order not found"})
	}
	var (
		o     domain.Order
		lines []repos.OrderLine
		err   error
	)
	if u.IsAdmin() {
		o, lines, err = h.Order.Get(c.UserContext(), oid)
	} else {
		o, lines, err = h.Order.Owned(c.UserContext(), oid, u.ID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
			return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Order not found"})
		}
		return fail(c, "order.view.fail", err, map[string]any{"order_id": oid})
	}
	return render(c, "order", fiber.Map{"Order": o, "Lines": lines})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/log"
	"gadgetshop/internal/services"
	"gadgetshop/internal/validate"
)

type AuthHandler struct {
	Auth          *services.AuthService
	SecureCookies bool
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_format"})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": "Invalid email or password"})
	}
	if !validate.Password(pass) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": "Invalid email or password"})
	}

	// a fresh session id on every login
	sid := newSession(c, h.SecureCookies)
	if _, err := h.Auth.Login(c.UserContext(), sid, email, pass); err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": "Invalid email or password"})
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies(sessionCookie)
	if sid != "" {
		_ = h.Auth.Logout(c.UserContext(), sid)
	}
	clearSession(c, h.SecureCookies)
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.Redirect("/")
}

func (h *AuthHandler) RegisterForm(c *fiber.Ctx) error {
	return render(c, "register", fiber.Map{"Err": "", "Form": services.Registration{}})
}

// POST /register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	reg := services.Registration{
		Email:     c.FormValue("email"),
		FirstName: c.FormValue("first_name"),
		LastName:  c.FormValue("last_name"),
		Password:  c.FormValue("password"),
		Confirm:   c.FormValue("confirm_password"),
		Phone:     c.FormValue("phone"),
		Address:   c.FormValue("address"),
	}
	u, err := h.Auth.Register(c.UserContext(), reg)
	if err != nil {
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			return fail(c, "auth.register.fail", err, nil)
		}
		log.Security(c, "auth.register.fail", map[string]any{"email": reg.Email, "field": ve.Field})
		reg.Password, reg.Confirm = "", ""
		return renderStatus(c, fiber.StatusBadRequest, "register", fiber.Map{"Err": ve.Error(), "Form": reg})
	}

	sid := newSession(c, h.SecureCookies)
	if _, err := h.Auth.Login(c.UserContext(), sid, u.Email, reg.Password); err != nil {
		return fail(c, "auth.register.login.fail", err, map[string]any{"user_id": u.ID})
	}
	log.Audit(c, "auth.register", map[string]any{"user_id": u.ID, "email": u.Email})
	return c.Redirect("/")
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/domain"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/payments"
)

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, payments.ErrPayment):
		return fiber.StatusPaymentRequired
	case errors.Is(err, payments.ErrGateway), errors.Is(err, payments.ErrDisabled):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// publicMessage is the text shown to visitors for an error. Internal errors
// never leak their details.
func publicMessage(err error) string {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"
	case errors.Is(err, domain.ErrConflict):
		return "The request conflicts with the current state"
	case errors.Is(err, domain.ErrInvalidState):
		return "This action is not allowed right now"
	case errors.Is(err, payments.ErrPayment):
		return "Payment was not accepted"
	case errors.Is(err, payments.ErrDisabled):
		return "Online payments are not available"
	case errors.Is(err, payments.ErrGateway):
		return "Payment provider is unavailable, please try again later"
	}
	return "Something went wrong. Please try again."
}

// fail logs err under action and renders the notfound page with a mapped status.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		applog.Error(c, action, err, fields)
	} else {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["error"] = err.Error()
		applog.Security(c, action, fields)
	}
	return renderStatus(c, status, "notfound", fiber.Map{"Message": publicMessage(err)})
}

// failJSON is fail for JSON endpoints.
func failJSON(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		applog.Error(c, action, err, fields)
	} else {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["error"] = err.Error()
		applog.Security(c, action, fields)
	}
	body := fiber.Map{"status": "error", "error": publicMessage(err)}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler is the Fiber error handler: log with request id and show a
// friendly page without internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).Render("notfound", fiber.Map{"Message": fe.Message})
	}
	applog.Error(c, "server.error", err, nil)
	if rerr := c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
		"Message": "Something went wrong. Please try again.",
	}); rerr != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Please try again.")
	}
	return nil
}

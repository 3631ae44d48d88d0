package payments

import (
	"context"
	"errors"
)

var (
	ErrDisabled = errors.New("online payments are not configured")
	ErrGateway  = errors.New("payment gateway error")
	ErrPayment  = errors.New("payment not accepted")
)

const StatusSucceeded = "succeeded"

// Intent is a gateway payment intent. Amount is in minor currency units.
// Metadata is what was attached at creation, e.g. the cart_id it pays for.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

func (i Intent) Succeeded() bool { return i.Status == StatusSucceeded }

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, meta map[string]string) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
}

// Disabled is used when no gateway key is configured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, int64, string, map[string]string) (Intent, error) {
	return Intent{}, ErrDisabled
}

func (Disabled) GetIntent(context.Context, string) (Intent, error) { return Intent{}, ErrDisabled }

// New returns the Stripe gateway for a secret key, or Disabled without one.
func New(secretKey string) Gateway {
	if secretKey == "" {
		return Disabled{}
	}
	return NewStripe(secretKey)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/payments"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/validate"
)

const (
	maxCommentLen = 500
	maxAddressLen = 255
)

// OrderForm is the contact and fulfillment data submitted at checkout.
type OrderForm struct {
	FirstName   string
	LastName    string
	Phone       string
	Address     string
	Fulfillment string
	OrderDate   string
	Comment     string
}

// Validate checks the form and returns the order header it describes.
func (f OrderForm) Validate(now time.Time) (domain.Order, error) {
	var o domain.Order
	var ok bool
	if o.FirstName, ok = validate.Name(f.FirstName); !ok {
		return o, domain.Invalid("first_name", "is required")
	}
	if o.LastName, ok = validate.Name(f.LastName); !ok {
		return o, domain.Invalid("last_name", "is required")
	}
	if o.Phone, ok = validate.Phone(f.Phone); !ok {
		return o, domain.Invalid("phone", "is not a valid phone number")
	}
	if o.Fulfillment, ok = domain.ParseFulfillment(f.Fulfillment); !ok {
		return o, domain.Invalid("buying_type", "choose pickup or delivery")
	}
	if o.Address, ok = validate.Text(f.Address, maxAddressLen); !ok {
		return o, domain.Invalid("address", fmt.Sprintf("must be at most %d characters", maxAddressLen))
	}
	if o.Fulfillment == domain.FulfillmentDelivery && o.Address == "" {
		return o, domain.Invalid("address", "is required for delivery")
	}
	if o.OrderDate, ok = validate.Date(f.OrderDate, now); !ok {
		return o, domain.Invalid("order_date", "must be a date (YYYY-MM-DD) not in the past")
	}
	if o.Comment, ok = validate.Text(f.Comment, maxCommentLen); !ok {
		return o, domain.Invalid("comment", fmt.Sprintf("must be at most %d characters", maxCommentLen))
	}
	return o, nil
}

type OrderService struct {
	Tx        *repos.TxRunner
	Carts     *repos.CartRepo
	Customers *repos.CustomerRepo
	Orders    *repos.OrderRepo
	Users     *repos.UserRepo
	Payments  payments.Gateway
	Currency  string
	Now       func() time.Time
}

func NewOrderService(tx *repos.TxRunner, carts *repos.CartRepo, customers *repos.CustomerRepo, orders *repos.OrderRepo,
	users *repos.UserRepo, gw payments.Gateway, currency string) *OrderService {
	return &OrderService{Tx: tx, Carts: carts, Customers: customers, Orders: orders, Users: users,
		Payments: gw, Currency: currency, Now: time.Now}
}

// Place promotes the user's cart to a new order. Invalid forms leave the cart
// open; any failure after validation rolls back every write.
func (s *OrderService) Place(ctx context.Context, cart domain.Cart, userID string, form OrderForm) (domain.Order, error) {
	o, err := form.Validate(s.Now())
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.StatusNew
	if err := s.promote(ctx, cart.ID, userID, &o, nil); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// PlacePaid promotes the cart to a paid pickup order once the gateway
// confirms that the payment intent covers the cart total. Contact details
// come from the user's account and customer profile.
func (s *OrderService) PlacePaid(ctx context.Context, cart domain.Cart, userID, intentID string) (domain.Order, error) {
	if intentID == "" {
		return domain.Order{}, domain.Invalid("payment_intent", "is required")
	}
	intent, err := s.Payments.GetIntent(ctx, intentID)
	if err != nil {
		return domain.Order{}, err
	}
	if !intent.Succeeded() {
		return domain.Order{}, fmt.Errorf("%w: intent %s is %s", payments.ErrPayment, intent.ID, intent.Status)
	}
	if intent.Currency != "" && intent.Currency != s.Currency {
		return domain.Order{}, fmt.Errorf("%w: currency %s", payments.ErrPayment, intent.Currency)
	}
	if intent.Metadata["cart_id"] != cart.ID {
		return domain.Order{}, fmt.Errorf("%w: intent %s was not created for cart %s", payments.ErrPayment, intent.ID, cart.ID)
	}

	u, err := s.Users.ByID(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	cust, err := s.Customers.EnsureForUser(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       cust.Phone,
		Address:     cust.Address,
		Status:      domain.StatusPaid,
		Fulfillment: domain.FulfillmentPickup,
		OrderDate:   s.Now().Format(time.DateOnly),

		PaymentIntentID: intent.ID,
	}
	paidFor := func(c domain.Cart) error {
		if c.MinorUnits() != intent.Amount {
			return fmt.Errorf("%w: paid %d, cart total %d", payments.ErrPayment, intent.Amount, c.MinorUnits())
		}
		return nil
	}
	if err := s.promote(ctx, cart.ID, userID, &o, paidFor); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// promote writes the order and locks the cart in one transaction.
func (s *OrderService) promote(ctx context.Context, cartID, userID string, o *domain.Order, check func(domain.Cart) error) error {
	return s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		carts, orders := s.Carts.WithTx(tx), s.Orders.WithTx(tx)
		cust, err := s.Customers.WithTx(tx).EnsureForUser(ctx, userID)
		if err != nil {
			return err
		}
		cart, err := carts.Recalc(ctx, cartID)
		if err != nil {
			return err
		}
		if cart.InOrder {
			return fmt.Errorf("cart %s is already ordered: %w", cart.ID, domain.ErrConflict)
		}
		if cart.OwnerID != cust.ID {
			return fmt.Errorf("cart %s: %w", cart.ID, domain.ErrNotFound)
		}
		if cart.IsEmpty() {
			return domain.Invalid("cart", "is empty")
		}
		if check != nil {
			if err := check(cart); err != nil {
				return err
			}
		}

		o.ID = ""
		o.CartID = cart.ID
		o.CustomerID = cust.ID
		o.Total = cart.FinalPrice
		if err := orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		locked, err := carts.Lock(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if !locked {
			return fmt.Errorf("cart %s is already ordered: %w", cart.ID, domain.ErrConflict)
		}
		return nil
	})
}

// PaymentIntent asks the gateway for an intent covering the cart total.
func (s *OrderService) PaymentIntent(ctx context.Context, cart domain.Cart) (payments.Intent, error) {
	if cart.IsEmpty() {
		return payments.Intent{}, domain.Invalid("cart", "is empty")
	}
	return s.Payments.CreateIntent(ctx, cart.MinorUnits(), s.Currency, map[string]string{"cart_id": cart.ID})
}

// Transition moves an order forward along its status machine.
func (s *OrderService) Transition(ctx context.Context, id string, to domain.OrderStatus) error {
	o, err := s.Orders.ByID(ctx, id)
	if err != nil {
		return fmt.Errorf("order %s: %w", id, err)
	}
	if !o.Status.CanTransition(to) {
		return fmt.Errorf("order %s: %s -> %s: %w", id, o.Status, to, domain.ErrInvalidState)
	}
	moved, err := s.Orders.UpdateStatus(ctx, id, o.Status, to)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("order %s changed concurrently: %w", id, domain.ErrConflict)
	}
	return nil
}

// History lists the orders of a user, newest first.
func (s *OrderService) History(ctx context.Context, userID string) ([]domain.Order, error) {
	cust, err := s.Customers.ByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Orders.ListByCustomer(ctx, cust.ID)
}

func (s *OrderService) Latest(ctx context.Context, limit int) ([]repos.OrderSummary, error) {
	return s.Orders.ListLatest(ctx, limit)
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, []repos.OrderLine, error) {
	o, err := s.Orders.ByID(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	lines, err := s.Orders.Lines(ctx, id)
	return o, lines, err
}

// Owned returns an order of the given user. Orders of other customers are
// reported as not found.
func (s *OrderService) Owned(ctx context.Context, id, userID string) (domain.Order, []repos.OrderLine, error) {
	cust, err := s.Customers.ByUser(ctx, userID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	o, lines, err := s.Get(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if o.CustomerID != cust.ID {
		return domain.Order{}, nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return o, lines, nil
}

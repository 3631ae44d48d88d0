package domain

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusInProgress OrderStatus = "in_progress"
	StatusReady      OrderStatus = "ready"
	StatusCompleted  OrderStatus = "completed"
	StatusPaid       OrderStatus = "paid"
)

var OrderStatuses = []OrderStatus{StatusNew, StatusInProgress, StatusReady, StatusCompleted, StatusPaid}

var transitions = map[OrderStatus][]OrderStatus{
	StatusNew:        {StatusInProgress, StatusPaid},
	StatusPaid:       {StatusInProgress},
	StatusInProgress: {StatusReady},
	StatusReady:      {StatusCompleted},
}

// CanTransition reports whether an order may move from s to next. Statuses
// only move forward.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Label() string {
	switch s {
	case StatusNew:
		return "New order"
	case StatusInProgress:
		return "In progress"
	case StatusReady:
		return "Ready"
	case StatusCompleted:
		return "Completed"
	case StatusPaid:
		return "Paid"
	}
	return string(s)
}

type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "pickup"
	FulfillmentDelivery Fulfillment = "delivery"
)

func ParseFulfillment(s string) (Fulfillment, bool) {
	switch Fulfillment(s) {
	case FulfillmentPickup, FulfillmentDelivery:
		return Fulfillment(s), true
	}
	return "", false
}

type Order struct {
	ID          string          `db:"id"`
	CartID      string          `db:"cart_id"`
	CustomerID  string          `db:"customer_id"`
	FirstName   string          `db:"first_name"`
	LastName    string          `db:"last_name"`
	Phone       string          `db:"phone"`
	Address     string          `db:"address"`
	Status      OrderStatus     `db:"status"`
	Fulfillment Fulfillment     `db:"fulfillment"`
	Comment     string          `db:"comment"`
	Total       decimal.Decimal `db:"total"`
	CreatedAt   string          `db:"created_at"`
	OrderDate   string          `db:"order_date"`

	// PaymentIntentID is set on paid orders; a gateway payment backs at most one order.
	PaymentIntentID string `db:"payment_intent_id"`
}

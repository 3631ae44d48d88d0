package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
)

type OrderRepo struct{ db execer }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

const orderCols = `
    o.id, COALESCE(o.cart_id,'') AS cart_id, o.customer_id, o.first_name, o.last_name, o.phone, o.address,
    o.status, o.fulfillment, o.comment, o.total, COALESCE(o.created_at,'') AS created_at, o.order_date,
    COALESCE(o.payment_intent_id,'') AS payment_intent_id`

// Create inserts a new order header.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, cart_id, customer_id, first_name, last_name, phone, address, status, fulfillment, comment, total, order_date, payment_intent_id)
	  VALUES
	    (?,  ?,       ?,           ?,          ?,         ?,     ?,       ?,      ?,           ?,       ?,     ?,          ?)
	`, o.ID, nullIfEmpty(o.CartID), o.CustomerID, o.FirstName, o.LastName, o.Phone, o.Address,
		o.Status, o.Fulfillment, o.Comment, o.Total.StringFixed(2), o.OrderDate, nullIfEmpty(o.PaymentIntentID))
	return mapErr(err)
}

func (r *OrderRepo) ByID(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := get(ctx, r.db, &o, `SELECT `+orderCols+` FROM orders o WHERE o.id = ?`, id)
	return o, err
}

// OrderSummary is an order with the account email of its customer, for admin lists.
type OrderSummary struct {
	domain.Order
	Email string `db:"email"`
}

func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []OrderSummary
	err := sel(ctx, r.db, &out, `
		SELECT `+orderCols+`, COALESCE(u.email,'') AS email
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		LEFT JOIN users u ON u.id = c.user_id
		ORDER BY datetime(o.created_at) DESC, o.id
		LIMIT ?
	`, limit)
	return out, err
}

// ListByCustomer returns the order history of one customer, newest first.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	var out []domain.Order
	err := sel(ctx, r.db, &out, `
		SELECT `+orderCols+`
		FROM orders o
		WHERE o.customer_id = ?
		ORDER BY datetime(o.created_at) DESC, o.id
	`, customerID)
	return out, err
}

// ListByCustomers groups orders by customer id.
func (r *OrderRepo) ListByCustomers(ctx context.Context, customerIDs []string) (map[string][]domain.Order, error) {
	out := make(map[string][]domain.Order, len(customerIDs))
	if len(customerIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+orderCols+` FROM orders o WHERE o.customer_id IN (?)
		ORDER BY datetime(o.created_at) DESC, o.id`, customerIDs)
	if err != nil {
		return nil, err
	}
	var rows []domain.Order
	if err := sel(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, o := range rows {
		out[o.CustomerID] = append(out[o.CustomerID], o)
	}
	return out, nil
}

// UpdateStatus moves an order from one status to another. It reports false
// when the order is no longer in the expected status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	n, err := affected(r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ? AND status = ?`, to, id, from))
	return n == 1, err
}

// OrderLine is a cart line of an order, used by exports and the order page.
type OrderLine struct {
	OrderID    string `db:"order_id"`
	Title      string `db:"title"`
	Kind       string `db:"product_kind"`
	Qty        int    `db:"qty"`
	FinalPrice string `db:"final_price"`
}

func (r *OrderRepo) Lines(ctx context.Context, orderID string) ([]OrderLine, error) {
	var out []OrderLine
	err := sel(ctx, r.db, &out, `
		SELECT o.id AS order_id, p.title, cp.product_kind, cp.qty, cp.final_price
		FROM orders o
		JOIN cart_products cp ON cp.cart_id = o.cart_id
		JOIN products p ON p.id = cp.product_id
		WHERE o.id = ?
		ORDER BY p.title
	`, orderID)
	return out, err
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"gadgetshop/internal/domain"
)

type CartRepo struct{ db execer }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) WithTx(tx *sqlx.Tx) *CartRepo { return &CartRepo{db: tx} }

const cartCols = `id, COALESCE(owner_id,'') AS owner_id, for_anonymous, total_products, final_price, in_order, COALESCE(updated_at,'') AS updated_at`

// EnsureOpenForOwner returns the unlocked cart of a customer, creating an
// empty one when absent. The partial unique index on open carts makes the
// insert a no-op for a concurrent loser.
func (r *CartRepo) EnsureOpenForOwner(ctx context.Context, customerID string) (domain.Cart, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO carts(id, owner_id, for_anonymous) VALUES(?, ?, 0)
	`, uuid.NewString(), customerID); err != nil {
		return domain.Cart{}, mapErr(err)
	}
	var c domain.Cart
	err := get(ctx, r.db, &c, `SELECT `+cartCols+` FROM carts WHERE owner_id = ? AND in_order = 0`, customerID)
	return c, err
}

// EnsureOpenAnonymous returns the anonymous placeholder cart, creating it when absent.
func (r *CartRepo) EnsureOpenAnonymous(ctx context.Context) (domain.Cart, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO carts(id, owner_id, for_anonymous) VALUES(?, NULL, 1)
	`, uuid.NewString()); err != nil {
		return domain.Cart{}, mapErr(err)
	}
	var c domain.Cart
	err := get(ctx, r.db, &c, `SELECT `+cartCols+` FROM carts WHERE for_anonymous = 1 AND in_order = 0`)
	return c, err
}

func (r *CartRepo) ByID(ctx context.Context, id string) (domain.Cart, error) {
	var c domain.Cart
	err := get(ctx, r.db, &c, `SELECT `+cartCols+` FROM carts WHERE id = ?`, id)
	return c, err
}

const lineCols = `
    cp.id, cp.cart_id, COALESCE(cp.customer_id,'') AS customer_id, cp.product_kind, cp.product_id,
    cp.qty, cp.final_price, p.title, p.slug, COALESCE(p.image,'') AS image, p.price AS unit_price`

func (r *CartRepo) Lines(ctx context.Context, cartID string) ([]domain.CartProduct, error) {
	var out []domain.CartProduct
	err := sel(ctx, r.db, &out, `
		SELECT `+lineCols+`
		FROM cart_products cp JOIN products p ON p.id = cp.product_id
		WHERE cp.cart_id = ?
		ORDER BY p.title
	`, cartID)
	return out, err
}

func (r *CartRepo) Line(ctx context.Context, cartID string, ref domain.ProductRef) (domain.CartProduct, error) {
	var l domain.CartProduct
	err := get(ctx, r.db, &l, `
		SELECT `+lineCols+`
		FROM cart_products cp JOIN products p ON p.id = cp.product_id
		WHERE cp.cart_id = ? AND cp.product_kind = ? AND cp.product_id = ?
	`, cartID, ref.Kind, ref.ID)
	return l, err
}

// InsertLine adds a qty 1 line unless the cart already holds the product.
// It reports whether a row was created.
func (r *CartRepo) InsertLine(ctx context.Context, cartID, customerID string, ref domain.ProductRef, price decimal.Decimal) (bool, error) {
	n, err := affected(r.db.ExecContext(ctx, `
		INSERT INTO cart_products(id, cart_id, customer_id, product_kind, product_id, qty, final_price)
		VALUES(?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(cart_id, product_kind, product_id) DO NOTHING
	`, uuid.NewString(), cartID, nullIfEmpty(customerID), ref.Kind, ref.ID, price.StringFixed(2)))
	return n == 1, err
}

func (r *CartRepo) UpdateLine(ctx context.Context, lineID string, qty int, finalPrice decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE cart_products SET qty = ?, final_price = ? WHERE id = ?`,
		qty, finalPrice.StringFixed(2), lineID)
	return mapErr(err)
}

func (r *CartRepo) DeleteLine(ctx context.Context, lineID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_products WHERE id = ?`, lineID)
	return mapErr(err)
}

// Recalc recomputes the cached totals of a cart from all of its lines.
func (r *CartRepo) Recalc(ctx context.Context, cartID string) (domain.Cart, error) {
	var prices []decimal.Decimal
	if err := sel(ctx, r.db, &prices, `SELECT final_price FROM cart_products WHERE cart_id = ?`, cartID); err != nil {
		return domain.Cart{}, err
	}
	total := decimal.Zero
	for _, p := range prices {
		total = total.Add(p)
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE carts SET final_price = ?, total_products = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, total.StringFixed(2), len(prices), cartID); err != nil {
		return domain.Cart{}, mapErr(err)
	}
	return r.ByID(ctx, cartID)
}

// Lock marks an open cart as promoted to an order. It reports false when the
// cart was already locked.
func (r *CartRepo) Lock(ctx context.Context, cartID string) (bool, error) {
	n, err := affected(r.db.ExecContext(ctx, `
		UPDATE carts SET in_order = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND in_order = 0
	`, cartID))
	return n == 1, err
}

// DeleteOpenForOwner drops the unlocked cart of a customer; its lines cascade.
func (r *CartRepo) DeleteOpenForOwner(ctx context.Context, customerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE owner_id = ? AND in_order = 0`, customerID)
	return mapErr(err)
}

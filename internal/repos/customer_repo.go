package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
)

type CustomerRepo struct{ db execer }

func NewCustomerRepo(db *sqlx.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) WithTx(tx *sqlx.Tx) *CustomerRepo { return &CustomerRepo{db: tx} }

const customerCols = `id, COALESCE(user_id,'') AS user_id, phone, address`

// EnsureForUser returns the customer of userID, creating it when absent.
// Concurrent callers converge on the same row through the unique user_id.
func (r *CustomerRepo) EnsureForUser(ctx context.Context, userID string) (domain.Customer, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers(id, user_id) VALUES(?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, uuid.NewString(), userID); err != nil {
		return domain.Customer{}, mapErr(err)
	}
	return r.ByUser(ctx, userID)
}

func (r *CustomerRepo) ByUser(ctx context.Context, userID string) (domain.Customer, error) {
	var c domain.Customer
	err := get(ctx, r.db, &c, `SELECT `+customerCols+` FROM customers WHERE user_id = ?`, userID)
	return c, err
}

func (r *CustomerRepo) ByID(ctx context.Context, id string) (domain.Customer, error) {
	var c domain.Customer
	err := get(ctx, r.db, &c, `SELECT `+customerCols+` FROM customers WHERE id = ?`, id)
	return c, err
}

func (r *CustomerRepo) UpdateContact(ctx context.Context, id, phone, address string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE customers SET phone = ?, address = ? WHERE id = ?`, phone, address, id)
	return mapErr(err)
}

// CustomerRow is a customer joined with the account it belongs to, if any.
type CustomerRow struct {
	domain.Customer
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

func (r *CustomerRepo) Page(ctx context.Context, limit, offset int) ([]CustomerRow, error) {
	var out []CustomerRow
	err := sel(ctx, r.db, &out, `
		SELECT c.id, COALESCE(c.user_id,'') AS user_id, c.phone, c.address,
		       COALESCE(u.email,'') AS email, COALESCE(u.first_name,'') AS first_name, COALESCE(u.last_name,'') AS last_name
		FROM customers c
		LEFT JOIN users u ON u.id = c.user_id
		ORDER BY email, c.id
		LIMIT ? OFFSET ?
	`, limit, offset)
	return out, err
}

func (r *CustomerRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM customers`)
	return n, err
}

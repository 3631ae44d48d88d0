package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
)

type CategoryRepo struct{ db execer }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) WithTx(tx *sqlx.Tx) *CategoryRepo { return &CategoryRepo{db: tx} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := sel(ctx, r.db, &out, `SELECT id, name, slug, COALESCE(created_at,'') AS created_at FROM categories ORDER BY name`)
	return out, err
}

// kindCount is one (category, variant kind) aggregate.
type kindCount struct {
	CategoryID string `db:"category_id"`
	Kind       string `db:"kind"`
	N          int    `db:"n"`
}

// WithCounts returns every category with the number of products filed under
// it. Products are counted per variant kind and the per-kind counts are summed.
func (r *CategoryRepo) WithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	cats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var groups []kindCount
	if err := sel(ctx, r.db, &groups, `
		SELECT category_id, kind, COUNT(*) AS n
		FROM products
		GROUP BY category_id, kind
	`); err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(cats))
	for _, g := range groups {
		totals[g.CategoryID] += g.N
	}
	out := make([]domain.CategoryCount, 0, len(cats))
	for _, c := range cats {
		out = append(out, domain.CategoryCount{Category: c, Count: totals[c.ID]})
	}
	return out, nil
}

func (r *CategoryRepo) BySlug(ctx context.Context, slug string) (domain.Category, error) {
	var c domain.Category
	err := get(ctx, r.db, &c, `SELECT id, name, slug, COALESCE(created_at,'') AS created_at FROM categories WHERE slug = ?`, slug)
	return c, err
}

func (r *CategoryRepo) ByID(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := get(ctx, r.db, &c, `SELECT id, name, slug, COALESCE(created_at,'') AS created_at FROM categories WHERE id = ?`, id)
	return c, err
}

func (r *CategoryRepo) Create(ctx context.Context, name, slug string) (domain.Category, error) {
	c := domain.Category{ID: uuid.NewString(), Name: name, Slug: slug}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO categories(id, name, slug) VALUES(?, ?, ?)`, c.ID, c.Name, c.Slug); err != nil {
		return domain.Category{}, mapErr(err)
	}
	return r.ByID(ctx, c.ID)
}

func (r *CategoryRepo) Update(ctx context.Context, id, name, slug string) error {
	n, err := affected(r.db.ExecContext(ctx, `UPDATE categories SET name = ?, slug = ? WHERE id = ?`, name, slug, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM categories`)
	return n, err
}

func (r *CategoryRepo) Page(ctx context.Context, limit, offset int) ([]domain.Category, error) {
	var out []domain.Category
	err := sel(ctx, r.db, &out, `
		SELECT id, name, slug, COALESCE(created_at,'') AS created_at
		FROM categories ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}

package repos

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
)

type ProductRepo struct{ db execer }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) WithTx(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

const productCols = `
    p.id, p.kind, p.category_id, p.title, COALESCE(p.description,'') AS description,
    COALESCE(p.image,'') AS image, p.price, p.slug, COALESCE(p.created_at,'') AS created_at`

func (r *ProductRepo) ByKindSlug(ctx context.Context, kind domain.Kind, slug string) (domain.Product, error) {
	var p domain.Product
	if err := get(ctx, r.db, &p, `SELECT `+productCols+` FROM products p WHERE p.kind = ? AND p.slug = ?`, kind, slug); err != nil {
		return domain.Product{}, err
	}
	return p, r.loadSpec(ctx, &p)
}

func (r *ProductRepo) ByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	if err := get(ctx, r.db, &p, `SELECT `+productCols+` FROM products p WHERE p.id = ?`, id); err != nil {
		return domain.Product{}, err
	}
	return p, r.loadSpec(ctx, &p)
}

// ByRef fetches a product only if it is of the referenced variant.
func (r *ProductRepo) ByRef(ctx context.Context, ref domain.ProductRef) (domain.Product, error) {
	var p domain.Product
	if err := get(ctx, r.db, &p, `SELECT `+productCols+` FROM products p WHERE p.id = ? AND p.kind = ?`, ref.ID, ref.Kind); err != nil {
		return domain.Product{}, err
	}
	return p, r.loadSpec(ctx, &p)
}

func (r *ProductRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE slug = ?`, slug); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Latest returns the newest products across the given kinds.
func (r *ProductRepo) Latest(ctx context.Context, kinds []domain.Kind, limit int) ([]domain.Product, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM products p
		WHERE p.kind IN (?)
		ORDER BY p.created_at DESC, p.title
		LIMIT ?`, kinds, limit)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	err = sel(ctx, r.db, &out, query, args...)
	return out, err
}

// kindSearch builds the WHERE clause for a per-kind listing; q matches the
// title or the screen attributes of the typed variants.
func kindSearch(kind domain.Kind, q string) (string, []any) {
	where := `p.kind = ?`
	args := []any{kind}
	if q == "" {
		return where, args
	}
	like := "%" + strings.ToLower(q) + "%"
	switch kind {
	case domain.KindNotebook:
		where += ` AND (LOWER(p.title) LIKE ? OR EXISTS (SELECT 1 FROM notebooks n WHERE n.product_id = p.id AND (LOWER(n.diagonal) LIKE ? OR LOWER(n.display_type) LIKE ?)))`
		args = append(args, like, like, like)
	case domain.KindSmartphone:
		where += ` AND (LOWER(p.title) LIKE ? OR EXISTS (SELECT 1 FROM smartphones s WHERE s.product_id = p.id AND (LOWER(s.diagonal) LIKE ? OR LOWER(s.display_type) LIKE ?)))`
		args = append(args, like, like, like)
	default:
		where += ` AND LOWER(p.title) LIKE ?`
		args = append(args, like)
	}
	return where, args
}

func (r *ProductRepo) ListByKind(ctx context.Context, kind domain.Kind, q string, limit, offset int) ([]domain.Product, error) {
	where, args := kindSearch(kind, q)
	args = append(args, limit, offset)
	var out []domain.Product
	if err := sel(ctx, r.db, &out, `SELECT `+productCols+` FROM products p WHERE `+where+`
		ORDER BY p.created_at DESC, p.title LIMIT ? OFFSET ?`, args...); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadSpec(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ProductRepo) CountByKind(ctx context.Context, kind domain.Kind, q string) (int, error) {
	where, args := kindSearch(kind, q)
	var n int
	err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM products p WHERE `+where, args...)
	return n, err
}

// ListByCategory lists the products of a category. Each filter entry maps a
// feature id to the value the product must carry for it.
func (r *ProductRepo) ListByCategory(ctx context.Context, catID string, filters map[string]string, limit, offset int) ([]domain.Product, error) {
	where := `p.category_id = ?`
	args := []any{catID}
	ids := make([]string, 0, len(filters))
	for id := range filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		where += ` AND EXISTS (SELECT 1 FROM product_features pf WHERE pf.product_id = p.id AND pf.feature_id = ? AND pf.value = ?)`
		args = append(args, id, filters[id])
	}
	args = append(args, limit, offset)
	var out []domain.Product
	err := sel(ctx, r.db, &out, `SELECT `+productCols+` FROM products p WHERE `+where+`
		ORDER BY p.created_at DESC, p.title LIMIT ? OFFSET ?`, args...)
	return out, err
}

func (r *ProductRepo) Search(ctx context.Context, q string, limit, offset int) ([]domain.Product, error) {
	like := "%" + strings.ToLower(q) + "%"
	var out []domain.Product
	err := sel(ctx, r.db, &out, `SELECT `+productCols+` FROM products p
		WHERE LOWER(p.title) LIKE ? OR LOWER(COALESCE(p.description,'')) LIKE ?
		ORDER BY p.created_at DESC, p.title
		LIMIT ? OFFSET ?`, like, like, limit, offset)
	return out, err
}

func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	var out []domain.Product
	err := sel(ctx, r.db, &out, `SELECT `+productCols+` FROM products p
		ORDER BY p.kind, p.title LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}

// Create inserts the shared product row and, for typed variants, its attribute row.
// Callers run it inside a transaction.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, kind, category_id, title, description, image, price, slug)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Kind, p.CategoryID, p.Title, nullIfEmpty(p.Description), nullIfEmpty(p.Image), p.Price.StringFixed(2), p.Slug); err != nil {
		return mapErr(err)
	}
	switch {
	case p.Notebook != nil:
		n := p.Notebook
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO notebooks(product_id, diagonal, display_type, processor_freq, ram, video, time_without_charge)
			VALUES(?, ?, ?, ?, ?, ?, ?)
		`, p.ID, n.Diagonal, n.DisplayType, n.ProcessorFreq, n.RAM, n.Video, n.TimeWithoutCharge)
		return mapErr(err)
	case p.Smartphone != nil:
		s := p.Smartphone
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO smartphones(product_id, diagonal, display_type, resolution, accum_volume, ram, sd, sd_volume_max, main_cam_mp, front_cam_mp)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, s.Diagonal, s.DisplayType, s.Resolution, s.AccumVolume, s.RAM, s.SD, s.SDVolumeMax, s.MainCamMP, s.FrontCamMP)
		return mapErr(err)
	}
	return nil
}

func (r *ProductRepo) loadSpec(ctx context.Context, p *domain.Product) error {
	switch p.Kind {
	case domain.KindNotebook:
		var n domain.NotebookSpec
		err := get(ctx, r.db, &n, `SELECT diagonal, display_type, processor_freq, ram, video, time_without_charge
			FROM notebooks WHERE product_id = ?`, p.ID)
		if err == nil {
			p.Notebook = &n
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	case domain.KindSmartphone:
		var s domain.SmartphoneSpec
		err := get(ctx, r.db, &s, `SELECT diagonal, display_type, resolution, accum_volume, ram, sd, sd_volume_max, main_cam_mp, front_cam_mp
			FROM smartphones WHERE product_id = ?`, p.ID)
		if err == nil {
			p.Smartphone = &s
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

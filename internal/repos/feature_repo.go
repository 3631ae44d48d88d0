package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
)

// FeatureRepo stores category features, their permitted values and the
// values assigned to products.
type FeatureRepo struct{ db execer }

func NewFeatureRepo(db *sqlx.DB) *FeatureRepo { return &FeatureRepo{db: db} }

func (r *FeatureRepo) WithTx(tx *sqlx.Tx) *FeatureRepo { return &FeatureRepo{db: tx} }

func (r *FeatureRepo) Create(ctx context.Context, f *domain.CategoryFeature) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_features(id, category_id, feature_name, filter_name, unit)
		VALUES(?, ?, ?, ?, ?)
	`, f.ID, f.CategoryID, f.FeatureName, f.FilterName, f.Unit)
	return mapErr(err)
}

func (r *FeatureRepo) ByID(ctx context.Context, id string) (domain.CategoryFeature, error) {
	var f domain.CategoryFeature
	err := get(ctx, r.db, &f, `SELECT id, category_id, feature_name, filter_name, unit FROM category_features WHERE id = ?`, id)
	return f, err
}

func (r *FeatureRepo) ByCategory(ctx context.Context, categoryID string) ([]domain.CategoryFeature, error) {
	var out []domain.CategoryFeature
	err := sel(ctx, r.db, &out, `
		SELECT id, category_id, feature_name, filter_name, unit
		FROM category_features WHERE category_id = ?
		ORDER BY feature_name`, categoryID)
	return out, err
}

func (r *FeatureRepo) AddValidator(ctx context.Context, featureID, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feature_validators(id, feature_id, value) VALUES(?, ?, ?)
		ON CONFLICT(feature_id, value) DO NOTHING
	`, uuid.NewString(), featureID, value)
	return mapErr(err)
}

func (r *FeatureRepo) Validators(ctx context.Context, featureID string) ([]string, error) {
	var out []string
	err := sel(ctx, r.db, &out, `SELECT value FROM feature_validators WHERE feature_id = ? ORDER BY value`, featureID)
	return out, err
}

func (r *FeatureRepo) SetProductValue(ctx context.Context, productID, featureID, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_features(product_id, feature_id, value) VALUES(?, ?, ?)
		ON CONFLICT(product_id, feature_id) DO UPDATE SET value = excluded.value
	`, productID, featureID, value)
	return mapErr(err)
}

func (r *FeatureRepo) ProductValues(ctx context.Context, productID string) ([]domain.ProductFeature, error) {
	var out []domain.ProductFeature
	err := sel(ctx, r.db, &out, `
		SELECT pf.product_id, pf.feature_id, f.feature_name, f.unit, pf.value
		FROM product_features pf
		JOIN category_features f ON f.id = pf.feature_id
		WHERE pf.product_id = ?
		ORDER BY f.feature_name`, productID)
	return out, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/validate"
)

// SpecService manages category features and the feature values of products.
type SpecService struct {
	Tx       *repos.TxRunner
	Cats     *repos.CategoryRepo
	Prods    *repos.ProductRepo
	Features *repos.FeatureRepo
}

func NewSpecService(tx *repos.TxRunner, cats *repos.CategoryRepo, prods *repos.ProductRepo, features *repos.FeatureRepo) *SpecService {
	return &SpecService{Tx: tx, Cats: cats, Prods: prods, Features: features}
}

func (s *SpecService) CreateFeature(ctx context.Context, categoryID, name, filterName, unit string) (domain.CategoryFeature, error) {
	name, ok := validate.Name(name)
	if !ok {
		return domain.CategoryFeature{}, domain.Invalid("feature_name", "is required")
	}
	filterName, ok = validate.Slug(filterName)
	if !ok {
		return domain.CategoryFeature{}, domain.Invalid("filter_name", "use lowercase letters, digits, - and _")
	}
	if _, err := s.Cats.ByID(ctx, categoryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CategoryFeature{}, domain.Invalid("category", "unknown category")
		}
		return domain.CategoryFeature{}, err
	}
	f := domain.CategoryFeature{CategoryID: categoryID, FeatureName: name, FilterName: filterName, Unit: strings.TrimSpace(unit)}
	if err := s.Features.Create(ctx, &f); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.CategoryFeature{}, fmt.Errorf("feature %q: %w", name, domain.ErrConflict)
		}
		return domain.CategoryFeature{}, err
	}
	return f, nil
}

// AddValidValue registers a permitted value; once a feature has any, product
// values are restricted to them.
func (s *SpecService) AddValidValue(ctx context.Context, featureID, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Invalid("value", "is required")
	}
	if _, err := s.Features.ByID(ctx, featureID); err != nil {
		return fmt.Errorf("feature %s: %w", featureID, err)
	}
	return s.Features.AddValidator(ctx, featureID, value)
}

// SetProductFeature assigns a feature value to a product of the feature's category.
func (s *SpecService) SetProductFeature(ctx context.Context, productID, featureID, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Invalid("value", "is required")
	}
	return s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		feats := s.Features.WithTx(tx)
		p, err := s.Prods.WithTx(tx).ByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %s: %w", productID, err)
		}
		f, err := feats.ByID(ctx, featureID)
		if err != nil {
			return fmt.Errorf("feature %s: %w", featureID, err)
		}
		if f.CategoryID != p.CategoryID {
			return domain.Invalid("feature", "belongs to another category")
		}
		valid, err := feats.Validators(ctx, f.ID)
		if err != nil {
			return err
		}
		if len(valid) > 0 && !slices.Contains(valid, value) {
			return domain.Invalid("value", fmt.Sprintf("must be one of %s", strings.Join(valid, ", ")))
		}
		return feats.SetProductValue(ctx, p.ID, f.ID, value)
	})
}

func (s *SpecService) CategoryFeatures(ctx context.Context, categoryID string) ([]domain.CategoryFeature, error) {
	return s.Features.ByCategory(ctx, categoryID)
}

func (s *SpecService) ProductFeatures(ctx context.Context, productID string) ([]domain.ProductFeature, error) {
	return s.Features.ProductValues(ctx, productID)
}

func (s *SpecService) ValidValues(ctx context.Context, featureID string) ([]string, error) {
	return s.Features.Validators(ctx, featureID)
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
)

type CatalogService struct {
	Tx       *repos.TxRunner
	Cats     *repos.CategoryRepo
	Prods    *repos.ProductRepo
	Features *repos.FeatureRepo
}

func NewCatalogService(tx *repos.TxRunner, cats *repos.CategoryRepo, prods *repos.ProductRepo, features *repos.FeatureRepo) *CatalogService {
	return &CatalogService{Tx: tx, Cats: cats, Prods: prods, Features: features}
}

// HomeKinds are the variants shown in the latest-products block of the home page.
var HomeKinds = []domain.Kind{domain.KindNotebook, domain.KindSmartphone}

func (s *CatalogService) CategoriesWithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	return s.Cats.WithCounts(ctx)
}

func (s *CatalogService) Latest(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.Prods.Latest(ctx, HomeKinds, limit)
}

// CategoryPage is a category with its feature filters and matching products.
type CategoryPage struct {
	Category domain.Category
	Features []domain.CategoryFeature
	Active   map[string]string // filter_name -> value
	Products []domain.Product
}

// Category lists the products of a category. query holds raw query
// parameters; those named after a feature's filter name narrow the list.
func (s *CatalogService) Category(ctx context.Context, slug string, query map[string]string, page, pageSize int) (CategoryPage, error) {
	cat, err := s.Cats.BySlug(ctx, slug)
	if err != nil {
		return CategoryPage{}, fmt.Errorf("category %q: %w", slug, err)
	}
	feats, err := s.Features.ByCategory(ctx, cat.ID)
	if err != nil {
		return CategoryPage{}, err
	}
	filters := map[string]string{}
	active := map[string]string{}
	for _, f := range feats {
		if v, ok := query[f.FilterName]; ok && v != "" {
			filters[f.ID] = v
			active[f.FilterName] = v
		}
	}
	limit, offset := paginate(page, pageSize)
	prods, err := s.Prods.ListByCategory(ctx, cat.ID, filters, limit, offset)
	if err != nil {
		return CategoryPage{}, err
	}
	return CategoryPage{Category: cat, Features: feats, Active: active, Products: prods}, nil
}

// ProductDetail is a product with the feature values of its category.
type ProductDetail struct {
	Product  domain.Product
	Category domain.Category
	Features []domain.ProductFeature
}

func (s *CatalogService) Product(ctx context.Context, kind, slug string) (ProductDetail, error) {
	k, ok := domain.ParseKind(kind)
	if !ok {
		return ProductDetail{}, fmt.Errorf("kind %q: %w", kind, domain.ErrNotFound)
	}
	p, err := s.Prods.ByKindSlug(ctx, k, slug)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("product %s/%s: %w", kind, slug, err)
	}
	cat, err := s.Cats.ByID(ctx, p.CategoryID)
	if err != nil {
		return ProductDetail{}, err
	}
	feats, err := s.Features.ProductValues(ctx, p.ID)
	if err != nil {
		return ProductDetail{}, err
	}
	return ProductDetail{Product: p, Category: cat, Features: feats}, nil
}

func (s *CatalogService) ProductByID(ctx context.Context, kind domain.Kind, id string) (domain.Product, error) {
	p, err := s.Prods.ByRef(ctx, domain.ProductRef{Kind: kind, ID: id})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return p, nil
}

func (s *CatalogService) ListByKind(ctx context.Context, kind domain.Kind, q string, page, pageSize int) ([]domain.Product, int, error) {
	total, err := s.Prods.CountByKind(ctx, kind, q)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paginate(page, pageSize)
	items, err := s.Prods.ListByKind(ctx, kind, q, limit, offset)
	return items, total, err
}

func (s *CatalogService) Search(ctx context.Context, q string, page, pageSize int) ([]domain.Product, error) {
	limit, offset := paginate(page, pageSize)
	return s.Prods.Search(ctx, q, limit, offset)
}

func (s *CatalogService) Products(ctx context.Context, page, pageSize int) ([]domain.Product, error) {
	limit, offset := paginate(page, pageSize)
	return s.Prods.List(ctx, limit, offset)
}

func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) CategoryPage(ctx context.Context, page, pageSize int) ([]domain.Category, int, error) {
	total, err := s.Cats.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paginate(page, pageSize)
	items, err := s.Cats.Page(ctx, limit, offset)
	return items, total, err
}

func (s *CatalogService) CategoryByID(ctx context.Context, id string) (domain.Category, error) {
	return s.Cats.ByID(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, slug string) (domain.Category, error) {
	c, err := s.Cats.Create(ctx, name, slug)
	if errors.Is(err, domain.ErrConflict) {
		return domain.Category{}, fmt.Errorf("category slug %q: %w", slug, domain.ErrConflict)
	}
	return c, err
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id, name, slug string) (domain.Category, error) {
	if err := s.Cats.Update(ctx, id, name, slug); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Category{}, fmt.Errorf("category slug %q: %w", slug, domain.ErrConflict)
		}
		return domain.Category{}, err
	}
	return s.Cats.ByID(ctx, id)
}

// CreateProduct files a new product under a category allowed for its kind.
// A slug taken by any variant is rejected before anything is written.
func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) error {
	if _, ok := domain.ParseKind(string(p.Kind)); !ok {
		return domain.Invalid("kind", "unknown product kind")
	}
	if p.Price.IsNegative() {
		return domain.Invalid("price", "must not be negative")
	}
	switch p.Kind {
	case domain.KindNotebook:
		p.Smartphone = nil
		if p.Notebook == nil {
			p.Notebook = &domain.NotebookSpec{}
		}
	case domain.KindSmartphone:
		p.Notebook = nil
		if p.Smartphone == nil {
			p.Smartphone = &domain.SmartphoneSpec{}
		}
	default:
		p.Notebook, p.Smartphone = nil, nil
	}
	return s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		cats, prods := s.Cats.WithTx(tx), s.Prods.WithTx(tx)
		cat, err := cats.ByID(ctx, p.CategoryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Invalid("category", "unknown category")
			}
			return err
		}
		if !p.Kind.AllowsCategory(cat.Slug) {
			return domain.Invalid("category", fmt.Sprintf("%s products cannot be filed under %q", p.Kind, cat.Slug))
		}
		taken, err := prods.SlugExists(ctx, p.Slug)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("product slug %q: %w", p.Slug, domain.ErrConflict)
		}
		return prods.Create(ctx, p)
	})
}

func paginate(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 12
	}
	return pageSize, (page - 1) * pageSize
}

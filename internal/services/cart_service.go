package services

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
)

// CartService resolves the active cart of a visitor and applies line-item
// mutations. Every mutation ends with a full recomputation of the cart totals.
type CartService struct {
	Tx        *repos.TxRunner
	Carts     *repos.CartRepo
	Customers *repos.CustomerRepo
	Prods     *repos.ProductRepo
}

func NewCartService(tx *repos.TxRunner, carts *repos.CartRepo, customers *repos.CustomerRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Tx: tx, Carts: carts, Customers: customers, Prods: prods}
}

// Resolve returns the single open cart for userID, creating the customer and
// cart on first use. An empty userID resolves to the anonymous placeholder cart.
func (s *CartService) Resolve(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return s.Carts.EnsureOpenAnonymous(ctx)
	}
	cust, err := s.Customers.EnsureForUser(ctx, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("resolve customer: %w", err)
	}
	cart, err := s.Carts.EnsureOpenForOwner(ctx, cust.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("resolve cart: %w", err)
	}
	return cart, nil
}

// View returns the cart with its lines loaded.
func (s *CartService) View(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	fresh, err := s.Carts.ByID(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	fresh.Items, err = s.Carts.Lines(ctx, cart.ID)
	return fresh, err
}

// Add puts one unit of a product into the cart. Adding a product that is
// already in the cart leaves the existing line untouched.
func (s *CartService) Add(ctx context.Context, cart domain.Cart, kind, slug string) (domain.Cart, error) {
	var out domain.Cart
	err := s.mutate(ctx, cart, kind, slug, func(carts *repos.CartRepo, open domain.Cart, p domain.Product) error {
		if _, err := carts.InsertLine(ctx, open.ID, open.OwnerID, p.Ref(), p.Price); err != nil {
			return err
		}
		var err error
		out, err = carts.Recalc(ctx, open.ID)
		return err
	})
	return out, err
}

// Remove deletes the line of a product. A product that is not in the cart
// yields domain.ErrNotFound and the totals stay as they were.
func (s *CartService) Remove(ctx context.Context, cart domain.Cart, kind, slug string) (domain.Cart, error) {
	var out domain.Cart
	err := s.mutate(ctx, cart, kind, slug, func(carts *repos.CartRepo, open domain.Cart, p domain.Product) error {
		line, err := carts.Line(ctx, open.ID, p.Ref())
		if err != nil {
			return fmt.Errorf("cart line %s/%s: %w", kind, slug, err)
		}
		if err := carts.DeleteLine(ctx, line.ID); err != nil {
			return err
		}
		out, err = carts.Recalc(ctx, open.ID)
		return err
	})
	return out, err
}

// ChangeQty sets the quantity of a line and reprices it at the current product price.
func (s *CartService) ChangeQty(ctx context.Context, cart domain.Cart, kind, slug string, qty int) (domain.Cart, error) {
	if qty < 1 {
		return domain.Cart{}, domain.Invalid("qty", "must be at least 1")
	}
	var out domain.Cart
	err := s.mutate(ctx, cart, kind, slug, func(carts *repos.CartRepo, open domain.Cart, p domain.Product) error {
		line, err := carts.Line(ctx, open.ID, p.Ref())
		if err != nil {
			return fmt.Errorf("cart line %s/%s: %w", kind, slug, err)
		}
		if err := carts.UpdateLine(ctx, line.ID, qty, p.Price.Mul(decimal.NewFromInt(int64(qty)))); err != nil {
			return err
		}
		out, err = carts.Recalc(ctx, open.ID)
		return err
	})
	return out, err
}

// Recalc recomputes the cached totals of a cart from its lines.
func (s *CartService) Recalc(ctx context.Context, cartID string) (domain.Cart, error) {
	var out domain.Cart
	err := s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		out, err = s.Carts.WithTx(tx).Recalc(ctx, cartID)
		return err
	})
	return out, err
}

type lineOp func(carts *repos.CartRepo, open domain.Cart, p domain.Product) error

// mutate runs op in one transaction against the current state of an open cart.
func (s *CartService) mutate(ctx context.Context, cart domain.Cart, kind, slug string, op lineOp) error {
	k, ok := domain.ParseKind(kind)
	if !ok {
		return fmt.Errorf("kind %q: %w", kind, domain.ErrNotFound)
	}
	return s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		carts := s.Carts.WithTx(tx)
		open, err := carts.ByID(ctx, cart.ID)
		if err != nil {
			return err
		}
		if open.InOrder {
			return fmt.Errorf("cart %s is already ordered: %w", open.ID, domain.ErrConflict)
		}
		p, err := s.Prods.WithTx(tx).ByKindSlug(ctx, k, slug)
		if err != nil {
			return fmt.Errorf("product %s/%s: %w", kind, slug, err)
		}
		return op(carts, open, p)
	})
}

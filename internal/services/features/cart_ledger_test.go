package features

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/services"
)

type ledgerTestContext struct {
	db    *sqlx.DB
	carts *repos.CartRepo
	svc   *services.CartService
	cart  domain.Cart
	err   error
}

func (c *ledgerTestContext) reset() error {
	if c.db != nil {
		_ = c.db.Close()
	}
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		return err
	}
	c.db = db
	c.carts = repos.NewCartRepo(db)
	c.svc = services.NewCartService(repos.NewTxRunner(db), c.carts, repos.NewCustomerRepo(db), repos.NewProductRepo(db))
	c.cart = domain.Cart{}
	c.err = nil
	return nil
}

func (c *ledgerTestContext) aSignedInCustomerWithAnEmptyCart() error {
	cart, err := c.svc.Resolve(context.Background(), "u-alice")
	if err != nil {
		return err
	}
	c.cart = cart
	return nil
}

func (c *ledgerTestContext) iAdd(kind, slug string) error {
	_, c.err = c.svc.Add(context.Background(), c.cart, kind, slug)
	return c.err
}

func (c *ledgerTestContext) iRemove(kind, slug string) error {
	_, c.err = c.svc.Remove(context.Background(), c.cart, kind, slug)
	return nil
}

func (c *ledgerTestContext) iSetTheQuantity(kind, slug string, qty int) error {
	_, c.err = c.svc.ChangeQty(context.Background(), c.cart, kind, slug, qty)
	return nil
}

func (c *ledgerTestContext) theOperationFailsWith(msg string) error {
	var want error
	switch msg {
	case "not found":
		want = domain.ErrNotFound
	case "validation failed":
		want = domain.ErrValidation
	default:
		return fmt.Errorf("unknown failure %q", msg)
	}
	if !errors.Is(c.err, want) {
		return fmt.Errorf("expected %q, got %v", msg, c.err)
	}
	return nil
}

func (c *ledgerTestContext) current() (domain.Cart, error) {
	return c.carts.ByID(context.Background(), c.cart.ID)
}

func (c *ledgerTestContext) theCartTotalIs(total string) error {
	cart, err := c.current()
	if err != nil {
		return err
	}
	if got := cart.FinalPrice.StringFixed(2); got != total {
		return fmt.Errorf("cart total %s, want %s", got, total)
	}
	return nil
}

func (c *ledgerTestContext) theCartHasLines(n int) error {
	cart, err := c.current()
	if err != nil {
		return err
	}
	lines, err := c.carts.Lines(context.Background(), cart.ID)
	if err != nil {
		return err
	}
	if cart.TotalProducts != n || len(lines) != n {
		return fmt.Errorf("cart has %d cached / %d stored lines, want %d", cart.TotalProducts, len(lines), n)
	}
	return nil
}

func (c *ledgerTestContext) everyLineTotalEqualsQuantityTimesUnitPrice() error {
	lines, err := c.carts.Lines(context.Background(), c.cart.ID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		want := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
		if !l.FinalPrice.Equal(want) {
			return fmt.Errorf("line %s: %s != %d x %s", l.Slug, l.FinalPrice, l.Qty, l.UnitPrice)
		}
	}
	return nil
}

func (c *ledgerTestContext) theQuantityIs(kind, slug string, qty int) error {
	lines, err := c.carts.Lines(context.Background(), c.cart.ID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if string(l.ProductKind) == kind && l.Slug == slug {
			if l.Qty != qty {
				return fmt.Errorf("qty %d, want %d", l.Qty, qty)
			}
			return nil
		}
	}
	return fmt.Errorf("%s %s not in cart", kind, slug)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.db != nil {
			_ = tc.db.Close()
			tc.db = nil
		}
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a signed-in customer with an empty cart$`, tc.aSignedInCustomerWithAnEmptyCart)

	// When steps
	ctx.Step(`^I add the (\w+) "([^"]*)"$`, tc.iAdd)
	ctx.Step(`^I remove the (\w+) "([^"]*)"$`, tc.iRemove)
	ctx.Step(`^I set the quantity of (\w+) "([^"]*)" to (-?\d+)$`, tc.iSetTheQuantity)

	// Then steps
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^the cart total is "([^"]*)"$`, tc.theCartTotalIs)
	ctx.Step(`^the cart has (\d+) lines$`, tc.theCartHasLines)
	ctx.Step(`^every line total equals quantity times unit price$`, tc.everyLineTotalEqualsQuantityTimesUnitPrice)
	ctx.Step(`^the quantity of (\w+) "([^"]*)" is (\d+)$`, tc.theQuantityIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"cart_ledger.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/payments"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/services"
)

const (
	notebookSlug   = "honor_magic_book_15_2021"
	smartphoneSlug = "xiaomi_redmi_9"
	seededUser     = "u-alice"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type env struct {
	db        *sqlx.DB
	carts     *repos.CartRepo
	customers *repos.CustomerRepo
	orders    *repos.OrderRepo
	users     *repos.UserRepo
	cats      *repos.CategoryRepo
	gw        *fakeGateway

	cart    *services.CartService
	order   *services.OrderService
	catalog *services.CatalogService
	spec    *services.SpecService
	auth    *services.AuthService
}

func newEnv(t *testing.T) *env { return newEnvDSN(t, ":memory:") }

func newEnvDSN(t *testing.T, dsn string) *env {
	t.Helper()
	db, err := repos.OpenDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tx := repos.NewTxRunner(db)
	e := &env{
		db:        db,
		carts:     repos.NewCartRepo(db),
		customers: repos.NewCustomerRepo(db),
		orders:    repos.NewOrderRepo(db),
		users:     repos.NewUserRepo(db),
		cats:      repos.NewCategoryRepo(db),
		gw:        newFakeGateway(),
	}
	prods := repos.NewProductRepo(db)
	features := repos.NewFeatureRepo(db)

	e.cart = services.NewCartService(tx, e.carts, e.customers, prods)
	e.order = services.NewOrderService(tx, e.carts, e.customers, e.orders, e.users, e.gw, "rub")
	e.order.Now = func() time.Time { return fixedNow }
	e.catalog = services.NewCatalogService(tx, e.cats, prods, features)
	e.spec = services.NewSpecService(tx, e.cats, prods, features)
	e.auth = services.NewAuthService(tx, e.users, e.customers, e.carts)
	return e
}

// newUser creates an account that has never touched a cart.
func (e *env) newUser(t *testing.T, email string) string {
	t.Helper()
	u := &domain.User{Email: email, FirstName: "Ivan", LastName: "Petrov", Hash: "x", Role: domain.RoleUser}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

// fillCart resolves the user's cart and adds both seeded products, the
// smartphone with qty 2.
func (e *env) fillCart(t *testing.T, userID string) domain.Cart {
	t.Helper()
	ctx := context.Background()
	cart, err := e.cart.Resolve(ctx, userID)
	require.NoError(t, err)
	_, err = e.cart.Add(ctx, cart, "notebook", notebookSlug)
	require.NoError(t, err)
	_, err = e.cart.Add(ctx, cart, "smartphone", smartphoneSlug)
	require.NoError(t, err)
	cart, err = e.cart.ChangeQty(ctx, cart, "smartphone", smartphoneSlug, 2)
	require.NoError(t, err)
	return cart
}

func (e *env) countOrders(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM orders`))
	return n
}

func decimalOf(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

func validForm() services.OrderForm {
	return services.OrderForm{
		FirstName:   "Ivan",
		LastName:    "Petrov",
		Phone:       "+7 999 123-45-67",
		Fulfillment: "pickup",
		OrderDate:   "2024-05-11",
		Comment:     "call before",
	}
}

type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]payments.Intent
	err     error
}

func newFakeGateway() *fakeGateway { return &fakeGateway{intents: map[string]payments.Intent{}} }

func (f *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string, meta map[string]string) (payments.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payments.Intent{}, f.err
	}
	id := fmt.Sprintf("pi_%d", len(f.intents)+1)
	in := payments.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method", Amount: amount, Currency: currency, Metadata: meta}
	f.intents[id] = in
	return in, nil
}

func (f *fakeGateway) GetIntent(_ context.Context, id string) (payments.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payments.Intent{}, f.err
	}
	in, ok := f.intents[id]
	if !ok {
		return payments.Intent{}, fmt.Errorf("%w: no such intent %s", payments.ErrGateway, id)
	}
	return in, nil
}

// retarget points an existing intent at another cart, as a tampered gateway record would.
func (f *fakeGateway) retarget(id, cartID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := f.intents[id]
	in.Metadata = map[string]string{"cart_id": cartID}
	f.intents[id] = in
}

func (f *fakeGateway) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := f.intents[id]
	in.Status = payments.StatusSucceeded
	f.intents[id] = in
}

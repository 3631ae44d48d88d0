package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gadgetshop/internal/config"
	"gadgetshop/internal/http/handlers"
	applog "gadgetshop/internal/log"
	"gadgetshop/internal/payments"
	"gadgetshop/internal/repos"
)

const (
	notebookPath   = "notebook/honor_magic_book_15_2021"
	smartphonePath = "smartphone/xiaomi_redmi_9"
)

type testApp struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
	csrf string
}

// newTestApp builds the shop the way main does, on an in-memory database.
func newTestApp(t *testing.T, gw payments.Gateway) *testApp {
	t.Helper()
	cfg := config.Config{DBDSN: ":memory:", MediaDir: t.TempDir(), Currency: "rub", JWTSecret: "test-secret"}
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	deps := handlers.NewDeps(db, cfg, gw)
	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{Views: engine, ErrorHandler: handlers.ErrorHandler, BodyLimit: 4 << 20})
	app.Use(requestid.New())
	app.Use(handlers.AttachUser(deps.Auth))
	app.Use(handlers.CSRF(false))
	app.Use(handlers.ExposeCSRF)
	handlers.Register(app, deps)
	app.Use(handlers.NotFound)

	return &testApp{app: app, db: db, deps: deps}
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (a *testApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

// token fetches a CSRF token once per app.
func (a *testApp) token(t *testing.T) string {
	t.Helper()
	if a.csrf == "" {
		resp := a.do(t, httptest.NewRequest("GET", "/login", nil))
		a.csrf = extractCookie(resp, "csrf_")
		if a.csrf == "" {
			t.Fatal("csrf token missing")
		}
	}
	return a.csrf
}

// session binds a fresh session id to a seeded or registered user.
func (a *testApp) session(t *testing.T, userID string) string {
	t.Helper()
	sid := "sid-" + userID
	if err := repos.NewUserRepo(a.db).BindSession(context.Background(), sid, userID); err != nil {
		t.Fatalf("bind session: %v", err)
	}
	return sid
}

func (a *testApp) get(t *testing.T, path, sid string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return a.do(t, req)
}

func (a *testApp) postForm(t *testing.T, path, sid string, form url.Values) *http.Response {
	t.Helper()
	tok := a.token(t)
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", tok)
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return a.do(t, req)
}

func (a *testApp) fillCart(t *testing.T, sid string) {
	t.Helper()
	for _, p := range []string{notebookPath, smartphonePath} {
		if resp := a.get(t, "/add-to-cart/"+p+"/", sid); resp.StatusCode != http.StatusFound {
			t.Fatalf("add %s: expected 302, got %d", p, resp.StatusCode)
		}
	}
	resp := a.postForm(t, "/change-qty/"+smartphonePath+"/", sid, url.Values{"qty": {"2"}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("change qty: expected 302, got %d", resp.StatusCode)
	}
}

// openCart returns the id of the user's open cart.
func (a *testApp) openCart(t *testing.T, userID string) string {
	t.Helper()
	var id string
	err := a.db.Get(&id, `SELECT c.id FROM carts c JOIN customers cu ON cu.id = c.owner_id
		WHERE cu.user_id = ? AND c.in_order = 0`, userID)
	if err != nil {
		t.Fatalf("open cart of %s: %v", userID, err)
	}
	return id
}

func (a *testApp) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := a.db.Get(&n, query, args...); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

// observeLogs routes the application logger into memory for the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	prev := applog.L()
	applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(prev) })
	return logs
}

func orderDate() string { return time.Now().AddDate(0, 0, 1).Format(time.DateOnly) }

type fakeGateway struct {
	intents map[string]payments.Intent
	err     error
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string, _ map[string]string) (payments.Intent, error) {
	if g.err != nil {
		return payments.Intent{}, g.err
	}
	return payments.Intent{ID: "pi_new", ClientSecret: "pi_new_secret", Status: "requires_payment_method", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (payments.Intent, error) {
	if g.err != nil {
		return payments.Intent{}, g.err
	}
	in, ok := g.intents[id]
	if !ok {
		return payments.Intent{}, payments.ErrGateway
	}
	return in, nil
}

package handlers_test

import (
	"net/http"
	"net/url"
	"testing"
)

// /admin requires the ADMIN role
func TestAdminGuardRequiresAdmin(t *testing.T) {
	a := newTestApp(t, nil)

	// Anonymous -> redirect
	resp := a.get(t, "/admin/", "")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}

	// Logged-in non-admin -> 403
	if resp := a.get(t, "/admin/", a.session(t, "u-alice")); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden for non-admin, got %d", resp.StatusCode)
	}

	// Admin -> 200
	if resp := a.get(t, "/admin/", a.session(t, "u-admin")); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminOrderStatusTransitions(t *testing.T) {
	a := newTestApp(t, nil)
	user := a.session(t, "u-alice")
	admin := a.session(t, "u-admin")
	a.fillCart(t, user)
	a.postForm(t, "/make-order/", user, url.Values{
		"first_name": {"Alice"}, "last_name": {"Smith"}, "phone": {"+15550100"},
		"buying_type": {"pickup"}, "order_date": {orderDate()},
	})
	var id string
	if err := a.db.Get(&id, `SELECT id FROM orders`); err != nil {
		t.Fatalf("order missing: %v", err)
	}

	// new -> ready skips a step
	resp := a.postForm(t, "/admin/orders/"+id+"/status", admin, url.Values{"status": {"ready"}})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for skipped status, got %d", resp.StatusCode)
	}
	resp = a.postForm(t, "/admin/orders/"+id+"/status", admin, url.Values{"status": {"in_progress"}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM orders WHERE id = ? AND status = 'in_progress'`, id); n != 1 {
		t.Fatal("status not updated")
	}
	// not an admin
	resp = a.postForm(t, "/admin/orders/"+id+"/status", user, url.Values{"status": {"ready"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}
}

func TestAdminExportsOrdersAsXLSX(t *testing.T) {
	a := newTestApp(t, nil)
	resp := a.get(t, "/admin/orders/export.xlsx", a.session(t, "u-admin"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}
	b := body(t, resp)
	if len(b) < 4 || b[:2] != "PK" {
		t.Fatal("export is not a zip container")
	}
}

func TestAdminCreatesCategoryAndProduct(t *testing.T) {
	a := newTestApp(t, nil)
	admin := a.session(t, "u-admin")

	resp := a.postForm(t, "/admin/categories", admin, url.Values{"name": {"Headphones"}, "slug": {"headphones"}})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/admin/categories" {
		t.Fatalf("create category: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp = a.postForm(t, "/admin/categories", admin, url.Values{"name": {"Headphones"}, "slug": {"headphones"}})
	if resp.Header.Get("Location") != "/admin/categories?err=conflict" {
		t.Fatalf("duplicate slug not reported: %s", resp.Header.Get("Location"))
	}

	form := url.Values{
		"kind": {"smartphone"}, "category_id": {"cat-smartphones"}, "title": {"Pixel 8"},
		"slug": {"pixel_8"}, "price": {"799.99"}, "diagonal": {"6.2"}, "sd": {"on"}, "sd_volume_max": {"1 TB"},
	}
	resp = a.postForm(t, "/admin/products", admin, form)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("create product: expected 302, got %d", resp.StatusCode)
	}
	if got := a.get(t, "/products/smartphone/pixel_8/", ""); got.StatusCode != http.StatusOK {
		t.Fatalf("new product page: %d", got.StatusCode)
	}

	// a notebook cannot go into the smartphones category
	form.Set("kind", "notebook")
	form.Set("slug", "pixel_book")
	resp = a.postForm(t, "/admin/products", admin, form)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong category, got %d", resp.StatusCode)
	}
}

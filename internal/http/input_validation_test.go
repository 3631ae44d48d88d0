package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"gadgetshop/internal/http/handlers"
)

func TestSearchRejectsBadQuery(t *testing.T) {
	a := newTestApp(t, nil)

	resp := a.get(t, "/search?q="+url.QueryEscape("<script>alert(1)</script>"), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if s := body(t, resp); strings.Contains(s, "<script>alert") {
		t.Fatal("query echoed back unescaped")
	}

	resp = a.get(t, "/search?q=redmi", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body(t, resp), "Xiaomi Redmi 9") {
		t.Fatal("valid search should find the smartphone")
	}
	if resp := a.get(t, "/search", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("empty search: expected 200, got %d", resp.StatusCode)
	}
}

func TestCategoryAndProductLookups(t *testing.T) {
	a := newTestApp(t, nil)

	if resp := a.get(t, "/category/notebooks/", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("category: expected 200, got %d", resp.StatusCode)
	}
	for _, path := range []string{
		"/category/Bad%20Slug/",
		"/category/cameras/",
		"/products/notebook/no_such_thing/",
		"/products/smartphone/honor_magic_book_15_2021/",
		"/products/toaster/xiaomi_redmi_9/",
	} {
		if resp := a.get(t, path, ""); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	resp := a.get(t, "/products/"+notebookPath+"/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("product: expected 200, got %d", resp.StatusCode)
	}
	if s := body(t, resp); !strings.Contains(s, "HONOR MagicBook 15 2021") || !strings.Contains(s, "2166.00") {
		t.Fatal("product page is missing title or price")
	}
}

func TestMediaTraversalBlocked(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "products"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "products", "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := fiber.New()
	app.Get("/media/*", handlers.Media(dir))

	resp, err := app.Test(httptest.NewRequest("GET", "/media/products/a.jpg", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stored file should be served: %v %v", err, resp)
	}
	for _, path := range []string{"/media/..%2f..%2fgo.mod", "/media/products/%2e%2e/%2e%2e/secret"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

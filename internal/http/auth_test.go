package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// seeded passwords are stored as bcrypt hashes, never in plaintext
func TestPasswordsSeededAreHashed(t *testing.T) {
	a := newTestApp(t, nil)
	var hashes []string
	if err := a.db.Select(&hashes, `SELECT password_hash FROM users`); err != nil {
		t.Fatalf("select hashes: %v", err)
	}
	if len(hashes) == 0 {
		t.Fatal("no users seeded")
	}
	for _, h := range hashes {
		if strings.Contains(h, "Passw0rd!") {
			t.Fatalf("hash contains plaintext password")
		}
		if !strings.HasPrefix(h, "$2") {
			t.Fatalf("unexpected hash format: %s", h)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")); err != nil {
			t.Fatalf("seed hash does not validate known password: %v", err)
		}
	}
}

func TestLoginSuccessFailAndThrottle(t *testing.T) {
	a := newTestApp(t, nil)
	login := func(pw string) *http.Response {
		return a.postForm(t, "/login", "", url.Values{"email": {"alice@gadgetshop.test"}, "password": {pw}})
	}

	// bad password -> 401
	if resp := login("Wrongpass1!"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad creds, got %d", resp.StatusCode)
	}

	// good password -> redirect with a session cookie that identifies alice
	resp := login("Passw0rd!")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect on success, got %d", resp.StatusCode)
	}
	sid := extractCookie(resp, "sid")
	if sid == "" {
		t.Fatal("no session cookie after login")
	}
	if got := a.get(t, "/orders", sid); got.StatusCode != http.StatusOK {
		t.Fatalf("expected logged-in order history, got %d", got.StatusCode)
	}

	// the login route allows five attempts per window
	for i := 0; i < 3; i++ {
		login("Wrongpass1!")
	}
	if resp := login("Wrongpass1!"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after throttle, got %d", resp.StatusCode)
	}
}

func TestRegisterCreatesAccountAndCustomer(t *testing.T) {
	a := newTestApp(t, nil)
	form := url.Values{
		"email":            {"bob@gadgetshop.test"},
		"first_name":       {"Bob"},
		"last_name":        {"Stone"},
		"password":         {"Secr3t!pw"},
		"confirm_password": {"Secr3t!pw"},
		"phone":            {"+7 900 000-00-00"},
		"address":          {"Main st 1"},
	}
	resp := a.postForm(t, "/register", "", form)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect after registration, got %d: %s", resp.StatusCode, body(t, resp))
	}
	if extractCookie(resp, "sid") == "" {
		t.Fatal("registration should log the user in")
	}
	n := a.count(t, `SELECT COUNT(*) FROM customers c JOIN users u ON u.id = c.user_id
		WHERE u.email = ? AND c.phone = ? AND c.address = ?`, "bob@gadgetshop.test", "+7 900 000-00-00", "Main st 1")
	if n != 1 {
		t.Fatalf("expected one customer with contact details, got %d", n)
	}

	// same email again
	resp = a.postForm(t, "/register", "", form)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), "already registered") {
		t.Fatal("duplicate email message missing")
	}
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	a := newTestApp(t, nil)
	resp := a.postForm(t, "/register", "", url.Values{
		"email": {"carol@gadgetshop.test"}, "first_name": {"Carol"},
		"password": {"Secr3t!pw"}, "confirm_password": {"Secr3t!px"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM users WHERE email = ?`, "carol@gadgetshop.test"); n != 0 {
		t.Fatalf("user created despite invalid form")
	}
}

func TestRegisterRejectsOverlongAddress(t *testing.T) {
	a := newTestApp(t, nil)
	resp := a.postForm(t, "/register", "", url.Values{
		"email": {"dave@gadgetshop.test"}, "first_name": {"Dave"},
		"password": {"Secr3t!pw"}, "confirm_password": {"Secr3t!pw"},
		"address": {strings.Repeat("a", 256)},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM users WHERE email = ?`, "dave@gadgetshop.test"); n != 0 {
		t.Fatalf("user created despite overlong address")
	}
}

func TestLogoutEndsSession(t *testing.T) {
	a := newTestApp(t, nil)
	sid := a.session(t, "u-alice")
	if resp := a.postForm(t, "/logout", sid, nil); resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect on logout, got %d", resp.StatusCode)
	}
	resp := a.get(t, "/orders", sid)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("session still valid after logout: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

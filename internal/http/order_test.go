package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"gadgetshop/internal/payments"
)

func validOrderForm() url.Values {
	return url.Values{
		"first_name":  {"Alice"},
		"last_name":   {"Smith"},
		"phone":       {"+15550100"},
		"address":     {"Main st 1"},
		"buying_type": {"delivery"},
		"order_date":  {orderDate()},
		"comment":     {"ring twice"},
	}
}

func TestMakeOrderPromotesCart(t *testing.T) {
	a := newTestApp(t, nil)
	sid := a.session(t, "u-alice")
	a.fillCart(t, sid)

	resp := a.postForm(t, "/make-order/", sid, validOrderForm())
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
	if n := a.count(t, `SELECT COUNT(*) FROM orders WHERE status = 'new' AND total = '3166.00' AND fulfillment = 'delivery'`); n != 1 {
		t.Fatal("order not stored with cart total")
	}
	if n := a.count(t, `SELECT COUNT(*) FROM carts c JOIN orders o ON o.cart_id = c.id WHERE c.in_order = 1`); n != 1 {
		t.Fatal("ordered cart not locked")
	}

	// the next visit gets a fresh empty cart and the order shows in the history
	page := a.get(t, "/cart/", sid)
	if !strings.Contains(body(t, page), "Your cart is empty") {
		t.Fatal("expected a fresh empty cart after ordering")
	}
	hist := a.get(t, "/orders", sid)
	if b := body(t, hist); !strings.Contains(b, "3166.00") || !strings.Contains(b, "New order") {
		t.Fatal("order missing from history")
	}
}

func TestMakeOrderInvalidFormKeepsCartOpen(t *testing.T) {
	a := newTestApp(t, nil)
	sid := a.session(t, "u-alice")
	a.fillCart(t, sid)

	form := validOrderForm()
	form.Set("buying_type", "teleport")
	resp := a.postForm(t, "/make-order/", sid, form)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/checkout/?err=buying_type" {
		t.Fatalf("expected redirect back to checkout, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	form = validOrderForm()
	form.Set("order_date", "2000-01-01")
	resp = a.postForm(t, "/make-order/", sid, form)
	if resp.Header.Get("Location") != "/checkout/?err=order_date" {
		t.Fatalf("past date not rejected: %s", resp.Header.Get("Location"))
	}

	if n := a.count(t, `SELECT COUNT(*) FROM orders`); n != 0 {
		t.Fatalf("invalid form created %d orders", n)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM carts WHERE in_order = 0 AND final_price = '3166.00'`); n != 1 {
		t.Fatal("cart should stay open")
	}
}

func TestMakeOrderEmptyCart(t *testing.T) {
	a := newTestApp(t, nil)
	sid := a.session(t, "u-alice")
	resp := a.postForm(t, "/make-order/", sid, validOrderForm())
	if resp.Header.Get("Location") != "/checkout/?err=cart" {
		t.Fatalf("expected redirect with cart error, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestCheckoutWithoutPaymentGateway(t *testing.T) {
	a := newTestApp(t, nil)
	sid := a.session(t, "u-alice")
	a.fillCart(t, sid)

	resp := a.get(t, "/checkout/", sid)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", resp.StatusCode)
	}
	b := body(t, resp)
	if !strings.Contains(b, "3166.00") || strings.Contains(b, "payment-element") {
		t.Fatal("checkout should show the order form without online payment")
	}

	pay := a.postForm(t, "/payed-online-order/", sid, url.Values{"payment_intent": {"pi_1"}})
	if pay.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 with payments disabled, got %d", pay.StatusCode)
	}
	var out map[string]any
	decodeJSON(t, pay, &out)
	if out["status"] != "error" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestPayedOnlineOrder(t *testing.T) {
	gw := &fakeGateway{intents: map[string]payments.Intent{
		"pi_ok":      {ID: "pi_ok", Status: payments.StatusSucceeded, Amount: 316600, Currency: "rub"},
		"pi_short":   {ID: "pi_short", Status: payments.StatusSucceeded, Amount: 100, Currency: "rub"},
		"pi_pending": {ID: "pi_pending", Status: "processing", Amount: 316600, Currency: "rub"},
	}}
	a := newTestApp(t, gw)
	sid := a.session(t, "u-alice")
	a.fillCart(t, sid)
	cartID := a.openCart(t, "u-alice")
	for id, in := range gw.intents {
		in.Metadata = map[string]string{"cart_id": cartID}
		gw.intents[id] = in
	}

	if resp := a.get(t, "/checkout/", sid); !strings.Contains(body(t, resp), "pi_new_secret") {
		t.Fatal("checkout should carry the intent client secret")
	}

	for _, id := range []string{"pi_short", "pi_pending"} {
		resp := a.postForm(t, "/payed-online-order/", sid, url.Values{"payment_intent": {id}})
		if resp.StatusCode != http.StatusPaymentRequired {
			t.Fatalf("%s: expected 402, got %d", id, resp.StatusCode)
		}
	}
	if n := a.count(t, `SELECT COUNT(*) FROM orders`); n != 0 {
		t.Fatal("rejected payment created an order")
	}

	resp := a.postForm(t, "/payed-online-order/", sid, url.Values{"payment_intent": {"pi_ok"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	decodeJSON(t, resp, &out)
	if out["status"] != "paid" {
		t.Fatalf("unexpected body %v", out)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM orders WHERE status = 'paid' AND fulfillment = 'pickup' AND total = '3166.00' AND payment_intent_id = 'pi_ok'`); n != 1 {
		t.Fatal("paid order not stored")
	}

	// the same payment cannot settle the next cart
	a.fillCart(t, sid)
	resp = a.postForm(t, "/payed-online-order/", sid, url.Values{"payment_intent": {"pi_ok"}})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("replayed intent: expected 402, got %d", resp.StatusCode)
	}
	if n := a.count(t, `SELECT COUNT(*) FROM orders`); n != 1 {
		t.Fatalf("replayed intent created another order: %d orders", n)
	}
}

func TestOrderPageIsPrivate(t *testing.T) {
	a := newTestApp(t, nil)
	alice := a.session(t, "u-alice")
	a.fillCart(t, alice)
	a.postForm(t, "/make-order/", alice, validOrderForm())
	var id string
	if err := a.db.Get(&id, `SELECT id FROM orders`); err != nil {
		t.Fatalf("order missing: %v", err)
	}

	if resp := a.get(t, "/orders/"+id, alice); resp.StatusCode != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", resp.StatusCode)
	}
	if resp := a.get(t, "/orders/"+id, a.session(t, "u-admin")); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", resp.StatusCode)
	}

	// a second customer
	a.postForm(t, "/register", "", url.Values{
		"email": {"eve@gadgetshop.test"}, "first_name": {"Eve"},
		"password": {"Secr3t!pw"}, "confirm_password": {"Secr3t!pw"},
	})
	var eveID string
	if err := a.db.Get(&eveID, `SELECT id FROM users WHERE email = 'eve@gadgetshop.test'`); err != nil {
		t.Fatalf("eve missing: %v", err)
	}
	logs := observeLogs(t)
	if resp := a.get(t, "/orders/"+id, a.session(t, eveID)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stranger: expected 404, got %d", resp.StatusCode)
	}
	if logs.FilterMessage("access.denied.order").Len() != 1 {
		t.Fatal("expected access.denied.order log")
	}
}

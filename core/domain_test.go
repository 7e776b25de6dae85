package core

import "testing"

func TestParseOrderEvent(t *testing.T) {
	body := []byte(`{
		"admin_graphql_api_id": "gid://shopify/Order/1042",
		"contact_email": "client@example.com",
		"name": "#1042",
		"line_items": [{"quantity": 2}, {"quantity": 1}],
		"note_attributes": [
			{"name": "artwork 1", "value": "https://cdn.example.com/art/ord-A.png"},
			{"name": "artwork 2", "value": ""},
			{"name": "gift note", "value": "obrigado!"}
		],
		"tags": "VIP, notification",
		"customer_locale": "pt-PT",
		"financial_status": "paid"
	}`)

	snapshot, err := ParseOrderEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if snapshot.ID != "gid://shopify/Order/1042" {
		t.Fatalf("unexpected order id %q", snapshot.ID)
	}
	if snapshot.Number != "#1042" || snapshot.Email != "client@example.com" {
		t.Fatalf("unexpected labels %q %q", snapshot.Number, snapshot.Email)
	}
	if snapshot.LineItemCount != 3 {
		t.Fatalf("expected summed quantity 3, got %d", snapshot.LineItemCount)
	}
	if snapshot.Locale != LocalePT {
		t.Fatalf("expected normalized locale pt, got %q", snapshot.Locale)
	}
	if !snapshot.IsPaid() {
		t.Fatalf("expected paid snapshot")
	}
	if len(snapshot.Attachments) != 3 {
		t.Fatalf("expected one slot per note attribute, got %d", len(snapshot.Attachments))
	}
	if snapshot.Attachments[0].FileRef == "" {
		t.Fatalf("expected url note attribute to resolve as file ref")
	}
	// Non-URL values are artifact slots without an upload, never file refs.
	if snapshot.Attachments[1].FileRef != "" || snapshot.Attachments[2].FileRef != "" {
		t.Fatalf("expected non-url values to stay pending")
	}
}

func TestParseOrderEvent_RequiresOrderID(t *testing.T) {
	if _, err := ParseOrderEvent([]byte(`{"contact_email":"a@b.c"}`)); err == nil {
		t.Fatalf("expected missing admin_graphql_api_id to fail")
	}
	if _, err := ParseOrderEvent(nil); err == nil {
		t.Fatalf("expected empty body to fail")
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"pt-PT": LocalePT,
		"pt_BR": LocalePT,
		"en-GB": LocaleEN,
		"EN":    LocaleEN,
		"es":    LocaleES,
		"fr-FR": LocalePT,
		"":      LocalePT,
	}
	for input, want := range cases {
		if got := NormalizeLocale(input); got != want {
			t.Fatalf("NormalizeLocale(%q) = %q, want %q", input, got, want)
		}
	}
}

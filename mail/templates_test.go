package mail

import (
	"strings"
	"testing"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

func TestLocaleTemplateStoreRendersArtwork(t *testing.T) {
	store := NewLocaleTemplateStore()

	rendered, err := store.Resolve("en-GB", core.TemplateKindArtwork, core.TemplateData{
		OrderNumber: "#1042",
		ItemName:    "Front design",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(rendered.Subject, "#1042") {
		t.Fatalf("expected order number in subject, got %q", rendered.Subject)
	}
	if !strings.Contains(rendered.Text, "Front design") {
		t.Fatalf("expected item name in body, got %q", rendered.Text)
	}
	if rendered.HTML == "" {
		t.Fatal("expected html body")
	}
}

func TestLocaleTemplateStoreFallsBackToPortuguese(t *testing.T) {
	store := NewLocaleTemplateStore()

	rendered, err := store.Resolve("fr-FR", core.TemplateKindReminder, core.TemplateData{OrderNumber: "#7"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(rendered.Subject, "Encomenda #7") {
		t.Fatalf("expected portuguese fallback, got %q", rendered.Subject)
	}
}

func TestLocaleTemplateStoreSpanish(t *testing.T) {
	store := NewLocaleTemplateStore()

	rendered, err := store.Resolve("es-MX", core.TemplateKindReminder, core.TemplateData{OrderNumber: "#9"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(rendered.Subject, "Pedido #9") {
		t.Fatalf("expected spanish rendering, got %q", rendered.Subject)
	}
}

func TestLocaleTemplateStoreUnknownKind(t *testing.T) {
	store := NewLocaleTemplateStore()
	if _, err := store.Resolve("pt", "newsletter", core.TemplateData{}); err == nil {
		t.Fatal("expected unknown template kind to fail")
	}
}

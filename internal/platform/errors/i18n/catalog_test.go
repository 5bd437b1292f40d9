package i18n

import (
	"strings"
	"testing"
)

func TestGetCatalogBaseLocale(t *testing.T) {
	c := GetCatalog("")
	if c.Locale() != "en-US" {
		t.Fatalf("locale = %q, want en-US", c.Locale())
	}
	if msg := c.Format("NOT_FOUND", nil); msg == "NOT_FOUND" {
		t.Fatalf("expected a rendered message, got raw code %q", msg)
	}
}

func TestGetCatalogFallsBackForUnknownLocale(t *testing.T) {
	c := GetCatalog("zz-ZZ")
	if c.Locale() != "en-US" {
		t.Fatalf("locale = %q, want en-US fallback", c.Locale())
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	c := GetCatalog("en-US")
	msg := c.Format("CREDITS_INSUFFICIENT", map[string]string{"cost": "40", "balance": "15"})
	if !strings.Contains(msg, "40") || !strings.Contains(msg, "15") {
		t.Fatalf("message %q does not include metadata values", msg)
	}
}

func TestFormatMissingMetadataRendersEmpty(t *testing.T) {
	c := GetCatalog("en-US")
	msg := c.Format("SESSION_FULL", nil)
	if strings.Contains(msg, "{{") {
		t.Fatalf("message %q leaked template syntax", msg)
	}
}

func TestFormatUnknownCodeReturnsCode(t *testing.T) {
	c := GetCatalog("en-US")
	if msg := c.Format("NO_SUCH_CODE", nil); msg != "NO_SUCH_CODE" {
		t.Fatalf("message = %q, want raw code", msg)
	}
}

func TestSpanishCatalog(t *testing.T) {
	c := GetCatalog("es-ES")
	if c.Locale() != "es-ES" {
		t.Fatalf("locale = %q, want es-ES", c.Locale())
	}
	msg := c.Format("CREDITS_INSUFFICIENT", map[string]string{"cost": "40", "balance": "15"})
	if !strings.Contains(msg, "créditos") {
		t.Fatalf("message %q is not the Spanish translation", msg)
	}
}

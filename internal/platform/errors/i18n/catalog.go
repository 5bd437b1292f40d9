// Package i18n renders localized, user-facing messages for domain error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/ytchou/focus-squad/internal/platform/i18n/catalog"
)

// Code is a machine-readable error code (string form to avoid an import cycle
// with the errors package).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

// GetCatalog returns the catalog for the given locale.
// Falls back to en-US if the locale is not found.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}

	catalogsMu.RLock()
	cached, ok := catalogs[requested]
	catalogsMu.RUnlock()
	if ok {
		return cached
	}

	resolvedLocale, messages := i18ncatalog.Default().NamespaceMessages(requested, "errors")

	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[resolvedLocale]; ok {
		catalogs[requested] = existing
		return existing
	}
	built := &Catalog{locale: resolvedLocale, messages: messages}
	catalogs[resolvedLocale] = built
	catalogs[requested] = built
	return built
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so template
// variables without metadata render as empty rather than failing.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	parsed, err := template.New(code).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	var rendered bytes.Buffer
	if err := parsed.Execute(&rendered, metadata); err != nil {
		return tmpl
	}
	return rendered.String()
}

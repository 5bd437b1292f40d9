// Package catalog loads embedded locale message catalogs and registers them
// with x/text so user-facing strings resolve per request language.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// LocaleCatalog stores all messages for one locale, grouped by namespace.
type LocaleCatalog struct {
	Locale     string
	Namespaces map[string]map[string]string
}

// Bundle contains all locale catalogs loaded from an fs.FS.
type Bundle struct {
	locales map[string]*LocaleCatalog
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = LoadFromFS(embeddedCatalogFS)
		if defaultErr == nil {
			defaultBundle.Register()
		}
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("load embedded locale catalogs: %v", defaultErr))
	}
	return defaultBundle
}

// LoadFromFS loads catalog files from the provided filesystem.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*LocaleCatalog{}}
	for _, filePath := range paths {
		data, err := fs.ReadFile(catalogFS, filePath)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", filePath, err)
		}
		var parsed catalogFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", filePath, err)
		}
		if err := bundle.addFile(filePath, parsed); err != nil {
			return nil, err
		}
	}

	if _, ok := bundle.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

func (b *Bundle) addFile(filePath string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(filePath))
	namespaceFromPath := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))

	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		locale = localeFromPath
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s declares locale %q but lives under %q", filePath, locale, localeFromPath)
	}
	namespace := strings.TrimSpace(file.Namespace)
	if namespace == "" {
		namespace = namespaceFromPath
	}

	lc, ok := b.locales[locale]
	if !ok {
		lc = &LocaleCatalog{Locale: locale, Namespaces: map[string]map[string]string{}}
		b.locales[locale] = lc
	}
	if _, exists := lc.Namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s redefines namespace %q for locale %q", filePath, namespace, locale)
	}
	lc.Namespaces[namespace] = file.Messages
	return nil
}

// HasLocale reports whether the bundle defines the given locale.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.locales[locale]
	return ok
}

// NamespaceMessages returns the locale's messages for a namespace, falling
// back to the base locale for keys the requested locale does not translate.
// The returned locale is the one actually resolved.
func (b *Bundle) NamespaceMessages(locale, namespace string) (string, map[string]string) {
	resolved := strings.TrimSpace(locale)
	if resolved == "" {
		resolved = BaseLocale
	}
	lc, ok := b.locales[resolved]
	if !ok {
		resolved = BaseLocale
		lc = b.locales[resolved]
	}

	base := b.locales[BaseLocale].Namespaces[namespace]
	merged := make(map[string]string, len(base))
	for key, msg := range base {
		merged[key] = msg
	}
	for key, msg := range lc.Namespaces[namespace] {
		merged[key] = msg
	}
	return resolved, merged
}

// Register registers all catalog messages with x/text/message using
// namespace-qualified keys ("errors.SESSION_FULL").
func (b *Bundle) Register() {
	for locale, lc := range b.locales {
		tag, err := language.Parse(locale)
		if err != nil {
			continue
		}
		for namespace, messages := range lc.Namespaces {
			for key, msg := range messages {
				_ = message.SetString(tag, namespace+"."+key, msg)
			}
		}
	}
}

// Printer returns an x/text printer for the locale, falling back to the base.
func (b *Bundle) Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.MustParse(BaseLocale)
	}
	return message.NewPrinter(tag)
}

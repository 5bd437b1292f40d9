// Package catalog loads the embedded decor item manifest.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var rawCatalog []byte

// Kind classifies where a decor item can live in a room.
type Kind string

// Supported decor kinds.
const (
	KindFloor Kind = "floor"
	KindWall  Kind = "wall"
	KindDesk  Kind = "desk"
	KindPet   Kind = "pet"
)

// IsValid reports whether the kind is one of the supported values.
func (k Kind) IsValid() bool {
	switch k {
	case KindFloor, KindWall, KindDesk, KindPet:
		return true
	default:
		return false
	}
}

// Item is one purchasable decor item.
type Item struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Kind   Kind   `yaml:"kind"`
	Cost   int    `yaml:"cost"`
	Sprite string `yaml:"sprite"`
}

type manifest struct {
	Items []Item `yaml:"items"`
}

// Catalog is an immutable set of decor items keyed by id.
type Catalog struct {
	items []Item
	byID  map[string]Item
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(rawCatalog)
	})
	return defaultCatalog, defaultErr
}

// Parse decodes and validates a catalog manifest.
func Parse(raw []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(m.Items) == 0 {
		return nil, fmt.Errorf("catalog has no items")
	}

	byID := make(map[string]Item, len(m.Items))
	for _, item := range m.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item missing id")
		}
		if _, ok := byID[item.ID]; ok {
			return nil, fmt.Errorf("duplicate catalog item %q", item.ID)
		}
		if !item.Kind.IsValid() {
			return nil, fmt.Errorf("catalog item %q has unknown kind %q", item.ID, item.Kind)
		}
		if item.Cost < 0 {
			return nil, fmt.Errorf("catalog item %q has negative cost", item.ID)
		}
		byID[item.ID] = item
	}
	return &Catalog{items: m.Items, byID: byID}, nil
}

// Items returns all catalog items in manifest order.
func (c *Catalog) Items() []Item {
	items := make([]Item, len(c.items))
	copy(items, c.items)
	return items
}

// Lookup finds an item by id.
func (c *Catalog) Lookup(itemID string) (Item, bool) {
	item, ok := c.byID[itemID]
	return item, ok
}

package catalog

import "testing"

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if len(c.Items()) == 0 {
		t.Fatal("catalog is empty")
	}
	item, ok := c.Lookup("rug_teal")
	if !ok {
		t.Fatal("rug_teal missing")
	}
	if item.Kind != KindFloor || item.Cost <= 0 {
		t.Fatalf("item = %+v, want floor kind with positive cost", item)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Fatal("lookup of unknown id succeeded")
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`
items:
  - id: ghost_chair
    name: Ghost Chair
    kind: ceiling
    cost: 5
    sprite: ghost_chair.png
`))
	if err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
items:
  - id: rug
    name: Rug A
    kind: floor
    cost: 5
    sprite: a.png
  - id: rug
    name: Rug B
    kind: floor
    cost: 5
    sprite: b.png
`))
	if err == nil {
		t.Fatal("duplicate id accepted")
	}
}

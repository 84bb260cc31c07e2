package loader

import "testing"

func threeAppCatalog(t *testing.T) *Catalog {
	t.Helper()
	img := BuildImage([]App{
		{Name: "alpha", Data: make([]byte, 10)},
		{Name: "beta", Data: make([]byte, 15)},
		{Name: "gamma", Data: make([]byte, 15)},
	})
	c, err := ParseImage(img)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCatalogThreePrograms(t *testing.T) {
	c := threeAppCatalog(t)

	if exp, got := 3, c.NumApp(); exp != got {
		t.Fatalf("expected %d programs; got %d", exp, got)
	}

	start, end, err := c.AppBounds(1)
	if err != nil {
		t.Fatal(err)
	}
	if start != 10 || end != 25 {
		t.Fatalf("expected bounds (10, 25); got (%d, %d)", start, end)
	}

	name, err := c.AppName(1)
	if err != nil {
		t.Fatal(err)
	}
	if name != "beta" {
		t.Fatalf("expected name beta; got %s", name)
	}
}

func TestCatalogBoundsInvariant(t *testing.T) {
	c := threeAppCatalog(t)

	var prevEnd uint64
	for i := 0; i < c.NumApp(); i++ {
		start, end, err := c.AppBounds(i)
		if err != nil {
			t.Fatal(err)
		}
		if start >= end {
			t.Fatalf("program %d: start %d not below end %d", i, start, end)
		}
		if start < prevEnd {
			t.Fatalf("program %d overlaps its predecessor", i)
		}
		prevEnd = end
	}
}

func TestCatalogLookupMiss(t *testing.T) {
	c := threeAppCatalog(t)

	if _, _, err := c.AppBounds(c.NumApp()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
	if _, err := c.AppName(c.NumApp()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
	if _, err := c.Lookup("delta"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestCatalogLookupByName(t *testing.T) {
	c := threeAppCatalog(t)

	i, err := c.Lookup("gamma")
	if err != nil {
		t.Fatal(err)
	}
	if i != 2 {
		t.Fatalf("expected index 2; got %d", i)
	}
}

func TestAppData(t *testing.T) {
	img := BuildImage([]App{
		{Name: "one", Data: []byte{1, 2, 3}},
		{Name: "two", Data: []byte{4, 5}},
	})
	c, err := ParseImage(img)
	if err != nil {
		t.Fatal(err)
	}

	data, err := c.AppData(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0] != 4 || data[1] != 5 {
		t.Fatalf("expected bytes [4 5]; got %v", data)
	}
}

func TestParseImageRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{1, 2, 3},
		BuildImage(nil), // zero programs
	}
	for i, img := range cases {
		if _, err := ParseImage(img); err != errBadImage {
			t.Fatalf("case %d: expected errBadImage; got %v", i, err)
		}
	}

	// offsets out of order
	img := BuildImage([]App{{Name: "a", Data: []byte{1}}})
	img[8] = 200 // offsets[0] no longer 0
	if _, err := ParseImage(img); err != errBadImage {
		t.Fatalf("expected errBadImage; got %v", err)
	}

	// count word so large the offset-table arithmetic would wrap
	img = BuildImage([]App{{Name: "a", Data: []byte{1}}})
	for i := 0; i < 8; i++ {
		img[i] = 0xff
	}
	if _, err := ParseImage(img); err != errBadImage {
		t.Fatalf("expected errBadImage for a wrapping count; got %v", err)
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if c.NumApp() == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for i := 0; i < c.NumApp(); i++ {
		name, err := c.AppName(i)
		if err != nil {
			t.Fatal(err)
		}
		if j, err := c.Lookup(name); err != nil || j != i {
			t.Fatalf("lookup %s: expected index %d; got %d, %v", name, i, j, err)
		}
	}
}

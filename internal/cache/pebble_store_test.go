package cache

import "testing"

func TestPebbleStore_SaveLookupRange(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, ok, err := st.Lookup("missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := st.Save("Blue Widget", Entry{SKU: "W-1", Hits: 3, UpdatedAt: 99}); err != nil {
		t.Fatalf("save: %v", err)
	}
	e, ok, err := st.Lookup("Blue Widget")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if e.SKU != "W-1" || e.Hits != 3 || e.UpdatedAt != 99 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	if err := st.Save("Red Gadget", Entry{SKU: "G-2", UpdatedAt: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	seen := map[string]string{}
	if err := st.Range(func(desc string, e Entry) error {
		seen[desc] = e.SKU
		return nil
	}); err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(seen) != 2 || seen["Blue Widget"] != "W-1" || seen["Red Gadget"] != "G-2" {
		t.Fatalf("unexpected range: %v", seen)
	}
}

func TestBadgerStore_SaveLookup(t *testing.T) {
	dir := t.TempDir()
	st, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("badger open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Save("Blue Widget", Entry{SKU: "W-1", UpdatedAt: 42}); err != nil {
		t.Fatalf("save: %v", err)
	}
	e, ok, err := st.Lookup("Blue Widget")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if e.SKU != "W-1" || e.UpdatedAt != 42 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if _, ok, err := st.Lookup("missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
}

package odoo

import (
	"context"
	"fmt"
)

// Snapshot is the target system's existing state, read once per run and
// immutable afterwards. Later writes to the ERP do not invalidate it
// mid-run.
type Snapshot struct {
	Orders   map[string]struct{}
	Contacts map[string]struct{}
	SKUs     map[string]struct{}
}

func (s *Snapshot) ValidSKU(sku string) bool {
	_, ok := s.SKUs[sku]
	return ok
}

func (s *Snapshot) HasContact(name string) bool {
	_, ok := s.Contacts[name]
	return ok
}

// LoadSnapshot reads existing order keys, contact names and valid catalog
// references in three batched calls.
func (c *Client) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Orders:   make(map[string]struct{}),
		Contacts: make(map[string]struct{}),
		SKUs:     make(map[string]struct{}),
	}

	var orders []struct {
		Name charField `json:"name"`
	}
	err := c.executeKw(ctx, "sale.order", "search_read",
		[]any{[]any{}},
		map[string]any{"fields": []string{"name"}},
		&orders)
	if err != nil {
		return nil, fmt.Errorf("load existing orders: %w", err)
	}
	for _, o := range orders {
		if o.Name != "" {
			snap.Orders[string(o.Name)] = struct{}{}
		}
	}

	var contacts []struct {
		Name charField `json:"name"`
	}
	err = c.executeKw(ctx, "res.partner", "search_read",
		[]any{[]any{[]any{"type", "=", "contact"}}},
		map[string]any{"fields": []string{"name"}},
		&contacts)
	if err != nil {
		return nil, fmt.Errorf("load existing contacts: %w", err)
	}
	for _, p := range contacts {
		if p.Name != "" {
			snap.Contacts[string(p.Name)] = struct{}{}
		}
	}

	var products []struct {
		DefaultCode charField `json:"default_code"`
	}
	err = c.executeKw(ctx, "product.template", "search_read",
		[]any{[]any{}},
		map[string]any{"fields": []string{"default_code"}, "limit": 10000},
		&products)
	if err != nil {
		return nil, fmt.Errorf("load catalog references: %w", err)
	}
	for _, p := range products {
		if p.DefaultCode != "" {
			snap.SKUs[string(p.DefaultCode)] = struct{}{}
		}
	}

	return snap, nil
}

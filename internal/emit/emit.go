// Package emit builds the two idempotent import batches from the resolved
// working set. The positional header convention (order metadata only on the
// first line of each order) is re-encoded here, at the serialization
// boundary, and nowhere else.
package emit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"ordersync/internal/export"
	"ordersync/internal/model"
)

// ErrEmptyBatch reports that the resolved working set is empty. It is an
// expected terminal state, not a failure; the caller reports the breakdown
// of where every order went.
var ErrEmptyBatch = errors.New("no resolved orders to emit")

var orderHeader = []string{
	"Order Reference", "Customer", "Invoice Address", "Delivery Address",
	"Order Date", "OrderLines/Quantity", "OrderLines/Price_unit", "Order Lines/Product",
}

var contactHeader = []string{
	"Name", "Street", "City", "Zip", "State", "Country", "Phone",
	"Is a company", "Address type",
}

// OrderBatch serializes the resolved orders, one row per line. Header
// fields are present only on each order's first line; invoiceParty is the
// marketplace contact billed for every order.
func OrderBatch(keys []string, byOrder map[string][]*model.OrderLine, invoiceParty string) ([][]string, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyBatch
	}
	rows := [][]string{orderHeader}
	for _, key := range keys {
		for i, l := range byOrder[key] {
			if i == 0 {
				rows = append(rows, []string{
					l.Meta.OrderKey,
					l.Meta.Customer,
					invoiceParty,
					l.Meta.Customer,
					cleanDate(l.Meta.PaidAt),
					l.Qty,
					l.UnitPrice,
					l.SKU,
				})
				continue
			}
			rows = append(rows, []string{"", "", "", "", "", l.Qty, l.UnitPrice, l.SKU})
		}
	}
	return rows, nil
}

// cleanDate strips the timezone offsets the platform appends to paid
// timestamps; the ERP import rejects them.
func cleanDate(s string) string {
	s = strings.ReplaceAll(s, " -0500", "")
	s = strings.ReplaceAll(s, " -0400", "")
	return s
}

// ContactBatch builds one row per distinct customer among the given raw
// rows, deduplicated within the batch by exact name and against the target
// system's existing contacts. Customers already present are omitted.
func ContactBatch(t *export.Table, rows []int, existing map[string]struct{}) [][]string {
	out := [][]string{contactHeader}
	seen := make(map[string]struct{})
	for _, r := range rows {
		name := t.Field(r, export.ColCustomer)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := existing[name]; ok {
			continue
		}
		out = append(out, []string{
			name,
			t.Field(r, export.ColStreet),
			t.Field(r, export.ColCity),
			t.Field(r, export.ColZip),
			t.Field(r, export.ColProvince),
			t.Field(r, export.ColCountry),
			t.Field(r, export.ColPhone),
			"0",
			"Contact",
		})
	}
	return out
}

// WriteCSV writes one batch to disk.
func WriteCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

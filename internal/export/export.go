// Package export is the durable input source: the platform's order export
// as a CSV table. Unknown columns are carried verbatim so the unresolved
// subset can be written back without losing information.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ordersync/internal/model"
)

// Export column names, as produced by the platform.
const (
	ColOrderKey        = "Name"
	ColCustomer        = "Billing Name"
	ColPaidAt          = "Paid at"
	ColQty             = "Lineitem quantity"
	ColUnitPrice       = "Lineitem price"
	ColSKU             = "Lineitem sku"
	ColDescription     = "Lineitem name"
	ColFinancialStatus = "Financial Status"
	ColFulfilledAt     = "Fulfilled at"
	ColRefundedAmount  = "Refunded Amount"

	ColEmail    = "Email"
	ColStreet   = "Billing Street"
	ColCity     = "Billing City"
	ColZip      = "Billing Zip"
	ColProvince = "Billing Province"
	ColCountry  = "Billing Country"
	ColPhone    = "Billing Phone"
)

// Table is a raw CSV export held in memory with all original columns.
type Table struct {
	Header []string
	Rows   [][]string
	cols   map[string]int
}

// Read parses a CSV export. Short rows are padded so Field lookups stay
// in bounds.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty export: missing header row")
	}
	t := &Table{Header: records[0], cols: make(map[string]int, len(records[0]))}
	for i, name := range t.Header {
		t.cols[name] = i
	}
	for _, rec := range records[1:] {
		if len(rec) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, rec)
			rec = padded
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Field returns the named column of a row, or "" when the export does not
// carry that column.
func (t *Table) Field(row int, col string) string {
	i, ok := t.cols[col]
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

func (t *Table) Len() int { return len(t.Rows) }

// Lines maps the table to raw order lines for normalization. The order key
// column is required; everything else degrades to empty fields.
func (t *Table) Lines() ([]model.RawLine, error) {
	if _, ok := t.cols[ColOrderKey]; !ok {
		return nil, fmt.Errorf("export is missing the %q column", ColOrderKey)
	}
	raw := make([]model.RawLine, 0, len(t.Rows))
	for i := range t.Rows {
		raw = append(raw, model.RawLine{
			Row:             i,
			OrderKey:        t.Field(i, ColOrderKey),
			Customer:        t.Field(i, ColCustomer),
			PaidAt:          t.Field(i, ColPaidAt),
			Description:     t.Field(i, ColDescription),
			SKU:             t.Field(i, ColSKU),
			Qty:             t.Field(i, ColQty),
			UnitPrice:       t.Field(i, ColUnitPrice),
			FinancialStatus: t.Field(i, ColFinancialStatus),
			FulfilledAt:     t.Field(i, ColFulfilledAt),
			RefundedAmount:  t.Field(i, ColRefundedAmount),
		})
	}
	return raw, nil
}

// Subset returns a table with the same header and exactly the given rows,
// carried verbatim.
func (t *Table) Subset(rows []int) *Table {
	sub := &Table{Header: t.Header, cols: t.cols}
	for _, r := range rows {
		sub.Rows = append(sub.Rows, t.Rows[r])
	}
	return sub
}

func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces path with the table contents. The write goes through a
// temp file in the same directory and a rename, so a crash mid-write never
// corrupts the previous contents.
func WriteFile(path string, t *Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*.csv")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if err := t.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

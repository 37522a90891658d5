package model

import (
	"errors"
	"fmt"
)

// ErrMalformedInput reports an export where a continuation row appears
// before any order header row has established order context.
var ErrMalformedInput = errors.New("malformed export: continuation row before first order header")

// RawLine is one row of the platform export after column mapping but before
// normalization. Header fields (OrderKey, Customer, PaidAt and the order
// status columns) are populated only on the first row of each order.
type RawLine struct {
	Row             int // index into the raw export table
	OrderKey        string
	Customer        string
	PaidAt          string
	Description     string
	SKU             string
	Qty             string
	UnitPrice       string
	FinancialStatus string
	FulfilledAt     string
	RefundedAmount  string
}

// OrderMeta is the order-level metadata shared by all lines of one order.
// It is read from the order's header row; the status fields are consumed by
// the classifier.
type OrderMeta struct {
	OrderKey        string
	Customer        string
	PaidAt          string
	FinancialStatus string
	FulfilledAt     string
	RefundedAmount  string
}

// OrderLine is one normalized order line. All fields except SKU are
// immutable after normalization; the resolution engine rewrites SKU in
// place. Blanking of continuation-row header fields happens only at the
// output serialization boundary, never here.
type OrderLine struct {
	Meta        *OrderMeta
	Header      bool // first line of the order in the export
	Description string
	SKU         string
	Qty         string
	UnitPrice   string
	Row         int
}

// Normalize flattens the raw export into one OrderLine per row, forward
// filling order metadata from the most recent header row. Pure transform.
func Normalize(raw []RawLine) ([]*OrderLine, error) {
	var lines []*OrderLine
	var cur *OrderMeta
	for _, r := range raw {
		header := r.OrderKey != ""
		if header {
			cur = &OrderMeta{
				OrderKey:        r.OrderKey,
				Customer:        r.Customer,
				PaidAt:          r.PaidAt,
				FinancialStatus: r.FinancialStatus,
				FulfilledAt:     r.FulfilledAt,
				RefundedAmount:  r.RefundedAmount,
			}
		}
		if cur == nil {
			return nil, fmt.Errorf("row %d: %w", r.Row, ErrMalformedInput)
		}
		lines = append(lines, &OrderLine{
			Meta:        cur,
			Header:      header,
			Description: r.Description,
			SKU:         r.SKU,
			Qty:         r.Qty,
			UnitPrice:   r.UnitPrice,
			Row:         r.Row,
		})
	}
	return lines, nil
}

// Group returns the distinct order keys in first-seen order and the lines of
// each order.
func Group(lines []*OrderLine) ([]string, map[string][]*OrderLine) {
	var keys []string
	byOrder := make(map[string][]*OrderLine)
	for _, l := range lines {
		k := l.Meta.OrderKey
		if _, ok := byOrder[k]; !ok {
			keys = append(keys, k)
		}
		byOrder[k] = append(byOrder[k], l)
	}
	return keys, byOrder
}

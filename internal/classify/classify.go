// Package classify partitions orders into disjoint import categories.
package classify

import (
	"fmt"
	"strconv"
	"strings"

	"ordersync/internal/model"
)

type Category int

const (
	Ready Category = iota
	NeedsResolution
	AlreadyImported
	Excluded
)

func (c Category) String() string {
	switch c {
	case Ready:
		return "READY"
	case NeedsResolution:
		return "NEEDS_RESOLUTION"
	case AlreadyImported:
		return "ALREADY_IMPORTED"
	case Excluded:
		return "EXCLUDED"
	}
	return "UNKNOWN"
}

// Decision is the category assigned to one order, with the exclusion reason
// when the category is Excluded.
type Decision struct {
	Category Category
	Reason   string
}

// Result maps every order key of the run to exactly one decision.
type Result map[string]Decision

// Classify assigns each order exactly one category, evaluated against the
// order's header metadata in fixed priority:
//
//  1. already present in the target system (idempotent re-run protection,
//     supersedes every exclusion reason)
//  2. refunded amount parses to a positive number
//  3. financial status not "paid" (case-insensitive)
//  4. fulfillment timestamp present
//  5. any line with a missing or catalog-unknown reference => NeedsResolution
//  6. otherwise Ready
//
// existingOrders and validSKU come from the immutable run snapshot of the
// target system; lines with an empty description are not reference-checked
// (they carry no product).
func Classify(lines []*model.OrderLine, existingOrders map[string]struct{}, validSKU func(string) bool) Result {
	keys, byOrder := model.Group(lines)
	res := make(Result, len(keys))
	for _, key := range keys {
		res[key] = classifyOrder(byOrder[key], existingOrders, validSKU)
	}
	return res
}

func classifyOrder(lines []*model.OrderLine, existingOrders map[string]struct{}, validSKU func(string) bool) Decision {
	meta := lines[0].Meta

	if _, ok := existingOrders[meta.OrderKey]; ok {
		return Decision{Category: AlreadyImported}
	}
	if amt, err := strconv.ParseFloat(strings.TrimSpace(meta.RefundedAmount), 64); err == nil && amt > 0 {
		return Decision{Category: Excluded, Reason: fmt.Sprintf("Refunded ($%s)", strings.TrimSpace(meta.RefundedAmount))}
	}
	if !strings.EqualFold(meta.FinancialStatus, "paid") {
		return Decision{Category: Excluded, Reason: fmt.Sprintf("Not paid (status: %s)", meta.FinancialStatus)}
	}
	if meta.FulfilledAt != "" {
		return Decision{Category: Excluded, Reason: "Already fulfilled"}
	}
	for _, l := range lines {
		if l.Description == "" {
			continue
		}
		if l.SKU == "" || !validSKU(l.SKU) {
			return Decision{Category: NeedsResolution}
		}
	}
	return Decision{Category: Ready}
}

// Counts tallies a result per category.
func (r Result) Counts() map[Category]int {
	c := make(map[Category]int, 4)
	for _, d := range r {
		c[d.Category]++
	}
	return c
}

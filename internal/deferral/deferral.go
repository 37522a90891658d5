// Package deferral decides which raw rows survive into the output batches
// and which go back to the durable input source for the next run.
package deferral

import (
	"fmt"
	"io"
	"sort"
	"time"

	"ordersync/internal/classify"
	"ordersync/internal/model"
)

// Outcome partitions every raw row of the input. The three slices are
// disjoint and together cover the whole input: no row is silently lost.
type Outcome struct {
	ResolvedRows   []int // rows of orders going to the output batches
	UnresolvedRows []int // rows written back to the input source
	DroppedRows    []int // excluded and already-imported rows, consumed by this run
}

// Partition assigns each line's raw row by the owning order's fate. An
// order with any unresolved line defers whole, including its resolved lines.
func Partition(lines []*model.OrderLine, cls classify.Result, unresolved map[string]struct{}) Outcome {
	var out Outcome
	for _, l := range lines {
		key := l.Meta.OrderKey
		switch cls[key].Category {
		case classify.Excluded, classify.AlreadyImported:
			out.DroppedRows = append(out.DroppedRows, l.Row)
		default:
			if _, ok := unresolved[key]; ok {
				out.UnresolvedRows = append(out.UnresolvedRows, l.Row)
			} else {
				out.ResolvedRows = append(out.ResolvedRows, l.Row)
			}
		}
	}
	return out
}

// WriteDiagnostic emits the human-readable failed-orders artifact: one
// section per unresolved order with its unresolved lines and remediation
// steps.
func WriteDiagnostic(w io.Writer, byOrder map[string][]*model.OrderLine, unresolvedKeys []string, skipMarker string, now time.Time) error {
	const rule = "================================================================================"
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FAILED ORDERS - Unresolved SKU Issues")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	keys := append([]string(nil), unresolvedKeys...)
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "\nOrder: %s\n", key)
		fmt.Fprintln(w, "----------------------------------------")
		for _, l := range byOrder[key] {
			if l.SKU != skipMarker {
				continue
			}
			fmt.Fprintf(w, "  Product: %s\n", l.Description)
			fmt.Fprintf(w, "  Quantity: %s\n", l.Qty)
			fmt.Fprintf(w, "  Price: $%s\n", l.UnitPrice)
			fmt.Fprintf(w, "  Issue: SKU missing or invalid\n\n")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TO RESOLVE:")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "1. Create missing products in the ERP OR update SKUs in the shop")
	fmt.Fprintln(w, "2. Run the import again")
	fmt.Fprintln(w, "3. The rewritten export contains exactly the unresolved orders")
	return nil
}

// Package report renders the optional operator-facing run workbook: where
// every order went and every correction applied. It is a presentation
// artifact only; the CSV batches remain the machine-readable outputs.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"ordersync/internal/corrections"
)

// OrderRow is one order's fate in the run.
type OrderRow struct {
	OrderKey    string
	Customer    string
	Disposition string
	Reason      string
}

const (
	ordersSheet      = "Orders"
	correctionsSheet = "Corrections"
)

// Write renders the workbook at path.
func Write(path string, orders []OrderRow, corrs []corrections.Correction) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	index, err := f.NewSheet(ordersSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	orderHeaders := []string{"Order", "Customer", "Disposition", "Reason"}
	for i, h := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ordersSheet, cell, h)
		f.SetCellStyle(ordersSheet, cell, cell, headerStyle)
	}
	for rowIdx, o := range orders {
		row := rowIdx + 2
		f.SetCellValue(ordersSheet, fmt.Sprintf("A%d", row), o.OrderKey)
		f.SetCellValue(ordersSheet, fmt.Sprintf("B%d", row), o.Customer)
		f.SetCellValue(ordersSheet, fmt.Sprintf("C%d", row), o.Disposition)
		f.SetCellValue(ordersSheet, fmt.Sprintf("D%d", row), o.Reason)
	}
	for i := range orderHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(ordersSheet, col, col, 20)
	}

	if _, err := f.NewSheet(correctionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	corrHeaders := []string{"Order", "Product Name", "Shopify SKU", "Corrected to Odoo SKU", "Action"}
	for i, h := range corrHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(correctionsSheet, cell, h)
		f.SetCellStyle(correctionsSheet, cell, cell, headerStyle)
	}
	for rowIdx, c := range corrs {
		row := rowIdx + 2
		f.SetCellValue(correctionsSheet, fmt.Sprintf("A%d", row), c.OrderKey)
		f.SetCellValue(correctionsSheet, fmt.Sprintf("B%d", row), c.Description)
		f.SetCellValue(correctionsSheet, fmt.Sprintf("C%d", row), c.OriginalSKU)
		f.SetCellValue(correctionsSheet, fmt.Sprintf("D%d", row), c.ResolvedSKU)
		f.SetCellValue(correctionsSheet, fmt.Sprintf("E%d", row), c.Action)
	}
	for i := range corrHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(correctionsSheet, col, col, 24)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

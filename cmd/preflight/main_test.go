package main

import (
	"strings"
	"testing"

	"ordersync/internal/export"
	"ordersync/internal/odoo"
)

const scanCSV = `Name,Financial Status,Paid at,Fulfilled at,Billing Name,Lineitem quantity,Lineitem name,Lineitem price,Lineitem sku,Refunded Amount
#2001,paid,2026-02-01 10:00:00 -0500,,Ada Byron,1,Blue Widget,10.00,W-1,
#2002,paid,2026-02-02 11:00:00 -0500,,Grace Hopper,1,Gadget,7.50,BAD-9,
#2003,paid,2026-02-03 12:00:00 -0500,,Alan Turing,1,Blue Widget,10.00,W-1,
#2004,paid,2026-02-04 13:00:00 -0500,,Refund Me,1,Blue Widget,10.00,W-1,25.00
`

func scanTable(t *testing.T, csv string) *export.Table {
	t.Helper()
	tab, err := export.Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return tab
}

func scanSnapshot() *odoo.Snapshot {
	return &odoo.Snapshot{
		Orders:   map[string]struct{}{"#2003": {}},
		Contacts: map[string]struct{}{"Shopify": {}},
		SKUs:     map[string]struct{}{"W-1": {}},
	}
}

func TestScan_RecommendsInteractiveOnSKUIssues(t *testing.T) {
	var out strings.Builder
	code, err := scan(&out, Config{InputPath: "scan.csv", InvoiceParty: "Shopify"}, scanTable(t, scanCSV), scanSnapshot())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if code != exitAnomalies {
		t.Fatalf("want exit %d, got %d", exitAnomalies, code)
	}
	got := out.String()
	if !strings.Contains(got, ChoiceRunInteractive) {
		t.Fatalf("missing interactive recommendation:\n%s", got)
	}
	if !strings.Contains(got, "Gadget (unknown SKU BAD-9)") {
		t.Fatalf("issue listing missing:\n%s", got)
	}
	if !strings.Contains(got, "#2004 (Refunded ($25.00))") {
		t.Fatalf("excluded sample missing:\n%s", got)
	}
}

func TestScan_CleanExportExitsZero(t *testing.T) {
	clean := `Name,Financial Status,Paid at,Fulfilled at,Billing Name,Lineitem quantity,Lineitem name,Lineitem price,Lineitem sku,Refunded Amount
#2001,paid,2026-02-01 10:00:00 -0500,,Ada Byron,1,Blue Widget,10.00,W-1,
`
	var out strings.Builder
	code, err := scan(&out, Config{InputPath: "scan.csv", InvoiceParty: "Shopify"}, scanTable(t, clean), scanSnapshot())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if code != exitClean {
		t.Fatalf("want exit %d, got %d", exitClean, code)
	}
	if !strings.Contains(out.String(), ChoiceRunInteractive) {
		t.Fatalf("missing proceed recommendation:\n%s", out.String())
	}
}

func TestScan_DroppedOnlyAnomaliesRecommendAutoSkip(t *testing.T) {
	mixed := `Name,Financial Status,Paid at,Fulfilled at,Billing Name,Lineitem quantity,Lineitem name,Lineitem price,Lineitem sku,Refunded Amount
#2001,paid,2026-02-01 10:00:00 -0500,,Ada Byron,1,Blue Widget,10.00,W-1,
#2003,paid,2026-02-03 12:00:00 -0500,,Alan Turing,1,Blue Widget,10.00,W-1,
`
	var out strings.Builder
	code, err := scan(&out, Config{InputPath: "scan.csv", InvoiceParty: "Shopify"}, scanTable(t, mixed), scanSnapshot())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if code != exitAnomalies {
		t.Fatalf("want exit %d, got %d", exitAnomalies, code)
	}
	if !strings.Contains(out.String(), ChoiceRunSkipAll) {
		t.Fatalf("missing auto-skip recommendation:\n%s", out.String())
	}
}

func TestScan_NothingImportableRecommendsCancel(t *testing.T) {
	dead := `Name,Financial Status,Paid at,Fulfilled at,Billing Name,Lineitem quantity,Lineitem name,Lineitem price,Lineitem sku,Refunded Amount
#2003,paid,2026-02-03 12:00:00 -0500,,Alan Turing,1,Blue Widget,10.00,W-1,
#2004,paid,2026-02-04 13:00:00 -0500,,Refund Me,1,Blue Widget,10.00,W-1,25.00
`
	var out strings.Builder
	code, err := scan(&out, Config{InputPath: "scan.csv", InvoiceParty: "Shopify"}, scanTable(t, dead), scanSnapshot())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if code != exitAnomalies {
		t.Fatalf("want exit %d, got %d", exitAnomalies, code)
	}
	if !strings.Contains(out.String(), ChoiceCancel) {
		t.Fatalf("missing cancel recommendation:\n%s", out.String())
	}
}

func TestScan_MissingInvoicePartyWarns(t *testing.T) {
	snap := scanSnapshot()
	snap.Contacts = map[string]struct{}{}
	var out strings.Builder
	if _, err := scan(&out, Config{InputPath: "scan.csv", InvoiceParty: "Shopify"}, scanTable(t, scanCSV), snap); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out.String(), `invoice party "Shopify" not found`) {
		t.Fatalf("missing contact warning:\n%s", out.String())
	}
}

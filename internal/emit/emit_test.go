package emit

import (
	"errors"
	"strings"
	"testing"

	"ordersync/internal/export"
	"ordersync/internal/model"
)

func TestOrderBatch_PositionalHeaderEncoding(t *testing.T) {
	m1 := &model.OrderMeta{OrderKey: "#1001", Customer: "Ada Byron", PaidAt: "2026-01-02 10:00:00 -0500"}
	m2 := &model.OrderMeta{OrderKey: "#1002", Customer: "Grace Hopper", PaidAt: "2026-01-03 11:00:00 -0400"}
	byOrder := map[string][]*model.OrderLine{
		"#1001": {
			{Meta: m1, Header: true, Qty: "1", UnitPrice: "10.00", SKU: "W-1"},
			{Meta: m1, Qty: "2", UnitPrice: "5.00", SKU: "G-2"},
		},
		"#1002": {
			{Meta: m2, Header: true, Qty: "1", UnitPrice: "10.00", SKU: "W-1"},
		},
	}
	rows, err := OrderBatch([]string{"#1001", "#1002"}, byOrder, "Shopify")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("want header + 3 rows, got %d", len(rows))
	}
	first := rows[1]
	if first[0] != "#1001" || first[1] != "Ada Byron" || first[2] != "Shopify" || first[3] != "Ada Byron" {
		t.Fatalf("header line wrong: %v", first)
	}
	if first[4] != "2026-01-02 10:00:00" {
		t.Fatalf("timezone offset not stripped: %q", first[4])
	}
	cont := rows[2]
	for i := 0; i < 5; i++ {
		if cont[i] != "" {
			t.Fatalf("continuation field %d must be blank: %v", i, cont)
		}
	}
	if cont[5] != "2" || cont[7] != "G-2" {
		t.Fatalf("continuation line data wrong: %v", cont)
	}
	if rows[3][0] != "#1002" {
		t.Fatalf("second order header wrong: %v", rows[3])
	}
}

func TestOrderBatch_Empty(t *testing.T) {
	_, err := OrderBatch(nil, nil, "Shopify")
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("want ErrEmptyBatch, got %v", err)
	}
}

const contactsCSV = `Name,Billing Name,Billing Street,Billing City,Billing Zip,Billing Province,Billing Country,Billing Phone
#1,Ada Byron,1 Main St,Montreal,H1A 1A1,QC,CA,555-0001
,,,,,,,
#2,Ada Byron,1 Main St,Montreal,H1A 1A1,QC,CA,555-0001
#3,Grace Hopper,2 Side St,Laval,H2B 2B2,QC,CA,555-0002
#4,Existing Person,3 Old Rd,Quebec,H3C 3C3,QC,CA,555-0003
`

func TestContactBatch_Dedupe(t *testing.T) {
	tab, err := export.Read(strings.NewReader(contactsCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	existing := map[string]struct{}{"Existing Person": {}}
	rows := ContactBatch(tab, []int{0, 1, 2, 3, 4}, existing)
	if len(rows) != 3 {
		t.Fatalf("want header + 2 contacts, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "Ada Byron" || rows[2][0] != "Grace Hopper" {
		t.Fatalf("unexpected contacts: %v", rows)
	}
	if rows[1][7] != "0" || rows[1][8] != "Contact" {
		t.Fatalf("required fields missing: %v", rows[1])
	}
}

// Genexport writes a synthetic platform export for exercising the
// reconcile pass without real shop data.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

func main() {
	var count int
	var outputFile string
	var badSKURate float64
	flag.IntVar(&count, "count", 50, "number of orders to generate")
	flag.StringVar(&outputFile, "output", "orders_export.csv", "output file")
	flag.Float64Var(&badSKURate, "bad-sku-rate", 0.2, "fraction of lines with a missing or unknown SKU")
	flag.Parse()

	if err := generateExport(count, outputFile, badSKURate); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

var header = []string{
	"Name", "Email", "Financial Status", "Paid at", "Fulfilled at",
	"Billing Name", "Billing Street", "Billing City", "Billing Zip",
	"Billing Province", "Billing Country", "Billing Phone",
	"Lineitem quantity", "Lineitem name", "Lineitem price", "Lineitem sku",
	"Refunded Amount",
}

func generateExport(count int, outputFile string, badSKURate float64) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	customers := []string{"Ada Byron", "Grace Hopper", "Alan Turing", "Edsger Dijkstra", "Barbara Liskov"}
	products := []struct{ name, sku string }{
		{"Blue Widget", "W-1"},
		{"Green Widget", "W-2"},
		{"Gadget Deluxe", "G-1"},
		{"Gizmo", "G-2"},
		{"Contraption", "C-1"},
	}
	statuses := []string{"paid", "paid", "paid", "paid", "pending"}

	base := time.Now().UTC().Add(-30 * 24 * time.Hour)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < count; i++ {
		cust := customers[rng.Intn(len(customers))]
		paid := base.Add(time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05 -0500")
		status := statuses[rng.Intn(len(statuses))]
		refunded := ""
		if rng.Float64() < 0.05 {
			refunded = fmt.Sprintf("%.2f", 5+rng.Float64()*50)
		}
		nlines := 1 + rng.Intn(3)
		for j := 0; j < nlines; j++ {
			p := products[rng.Intn(len(products))]
			sku := p.sku
			if rng.Float64() < badSKURate {
				if rng.Intn(2) == 0 {
					sku = ""
				} else {
					sku = fmt.Sprintf("OLD-%d", rng.Intn(100))
				}
			}
			row := make([]string, len(header))
			if j == 0 {
				row[0] = fmt.Sprintf("#%d", 1000+i)
				row[1] = fmt.Sprintf("c%d@example.com", rng.Intn(100))
				row[2] = status
				row[3] = paid
				row[5] = cust
				row[6] = fmt.Sprintf("%d Main St", 1+rng.Intn(99))
				row[7] = "Montreal"
				row[8] = "H1A 1A1"
				row[9] = "QC"
				row[10] = "CA"
				row[11] = fmt.Sprintf("555-%04d", rng.Intn(10000))
				row[16] = refunded
			}
			row[12] = fmt.Sprintf("%d", 1+rng.Intn(4))
			row[13] = p.name
			row[14] = fmt.Sprintf("%.2f", 5+rng.Float64()*95)
			row[15] = sku
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write order %d: %w", i+1, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	log.Printf("generated %d orders to %s", count, outputFile)
	return nil
}

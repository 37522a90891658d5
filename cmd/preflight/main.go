// Preflight scans an export against the ERP without writing anything, so
// the operator knows how many prompts an interactive run will take before
// starting one. The scan ends with a proceed / auto-skip / cancel
// recommendation on a CHOICE: line, and the exit status encodes the
// finding (0 clean, 2 anomalies found) so wrapper scripts can branch.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"ordersync/internal/classify"
	"ordersync/internal/config"
	"ordersync/internal/export"
	"ordersync/internal/manifest"
	"ordersync/internal/model"
	"ordersync/internal/odoo"
)

const sampleLimit = 3

// Recommendations emitted on the CHOICE: line for wrapper scripts.
const (
	ChoiceRunInteractive = "CHOICE:RUN_INTERACTIVE"
	ChoiceRunSkipAll     = "CHOICE:RUN_SKIP_ALL"
	ChoiceCancel         = "CHOICE:CANCEL"
)

// Exit statuses: 0 clean, 2 anomalies found, 1 fatal.
const (
	exitClean     = 0
	exitAnomalies = 2
)

type Config struct {
	InputPath    string
	EnvFile      string
	InvoiceParty string
	ManifestDir  string
}

func main() {
	cfg := readFlags()
	code, err := run(cfg)
	if err != nil {
		log.Fatalf("preflight failed: %v", err)
	}
	os.Exit(code)
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.InputPath, "input", "orders_export.csv", "platform order export to scan")
	flag.StringVar(&cfg.EnvFile, "env", ".env", "dotenv file with ERP credentials")
	flag.StringVar(&cfg.InvoiceParty, "invoice-party", "Shopify", "contact billed for every imported order")
	flag.StringVar(&cfg.ManifestDir, "manifest-dir", "./out", "directory holding the last run manifest")
	flag.Parse()
	return cfg
}

func run(cfg Config) (int, error) {
	creds, err := config.Load(cfg.EnvFile)
	if err != nil {
		return 1, err
	}
	client := odoo.NewClient(odoo.Config{
		URL:      creds.URL,
		Database: creds.Database,
		Username: creds.Username,
		Password: creds.Password,
	})
	ctx := context.Background()
	if err := client.Authenticate(ctx); err != nil {
		return 1, err
	}
	snap, err := client.LoadSnapshot(ctx)
	if err != nil {
		return 1, err
	}

	table, err := export.ReadFile(cfg.InputPath)
	if err != nil {
		return 1, err
	}
	return scan(os.Stdout, cfg, table, snap)
}

// scan classifies the export against the snapshot, prints the breakdown and
// the recommendation, and returns the exit status.
func scan(w io.Writer, cfg Config, table *export.Table, snap *odoo.Snapshot) (int, error) {
	raw, err := table.Lines()
	if err != nil {
		return 1, err
	}
	lines, err := model.Normalize(raw)
	if err != nil {
		return 1, err
	}
	keys, byOrder := model.Group(lines)
	cls := classify.Classify(lines, snap.Orders, snap.ValidSKU)
	counts := cls.Counts()

	fmt.Fprintf(w, "Export: %s (%d rows, %d orders)\n\n", cfg.InputPath, len(lines), len(keys))
	fmt.Fprintf(w, "Ready to import:    %d\n", counts[classify.Ready])
	fmt.Fprintf(w, "Need resolution:    %d\n", counts[classify.NeedsResolution])
	fmt.Fprintf(w, "Already imported:   %d\n", counts[classify.AlreadyImported])
	fmt.Fprintf(w, "Excluded:           %d\n", counts[classify.Excluded])

	printSamples(w, keys, cls, classify.AlreadyImported, "Already imported")
	printSamples(w, keys, cls, classify.Excluded, "Excluded")
	issues := printIssues(w, keys, byOrder, cls, snap)

	if !snap.HasContact(cfg.InvoiceParty) {
		fmt.Fprintf(w, "\nWARNING: invoice party %q not found among ERP contacts; create it before importing.\n", cfg.InvoiceParty)
	}

	if cfg.ManifestDir != "" {
		m, err := manifest.NewFilesystemManifest(cfg.ManifestDir).ReadLatest()
		if err == nil {
			fmt.Fprintf(w, "\nLast run %s (%s): %d processed, %d deferred\n",
				m.RunID, time.Unix(m.CreatedAtEpochSecond, 0).Format("2006-01-02 15:04:05"),
				m.Processed, m.Unresolved)
		}
	}

	choice, code := recommend(counts, issues)
	fmt.Fprintf(w, "\n%s\n", recommendationText(choice))
	fmt.Fprintln(w, choice)
	return code, nil
}

// recommend maps the scan outcome to a wrapper recommendation. Anomalies
// (anything not READY) exit 2; a fully clean export exits 0.
func recommend(counts map[classify.Category]int, issues int) (string, int) {
	anomalies := counts[classify.NeedsResolution] + counts[classify.AlreadyImported] + counts[classify.Excluded]
	importable := counts[classify.Ready] + counts[classify.NeedsResolution]

	switch {
	case importable == 0:
		return ChoiceCancel, exitAnomalies
	case issues > 0:
		return ChoiceRunInteractive, exitAnomalies
	case anomalies > 0:
		// Dropped orders only; nothing will prompt, unattended is safe.
		return ChoiceRunSkipAll, exitAnomalies
	default:
		return ChoiceRunInteractive, exitClean
	}
}

func recommendationText(choice string) string {
	switch choice {
	case ChoiceCancel:
		return "Recommendation: cancel - nothing in this export can be imported."
	case ChoiceRunSkipAll:
		return "Recommendation: run with -auto-skip - anomalies found, but none need operator input."
	default:
		return "Recommendation: run interactive resolution."
	}
}

func printSamples(w io.Writer, keys []string, cls classify.Result, cat classify.Category, label string) {
	var samples []string
	for _, k := range keys {
		if cls[k].Category != cat {
			continue
		}
		if len(samples) < sampleLimit {
			s := k
			if r := cls[k].Reason; r != "" {
				s = fmt.Sprintf("%s (%s)", k, r)
			}
			samples = append(samples, s)
		}
	}
	if len(samples) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s, e.g.:\n", label)
	for _, s := range samples {
		fmt.Fprintf(w, "  %s\n", s)
	}
}

// printIssues lists the distinct product descriptions an interactive run
// will prompt for, so the operator can prepare catalog fixes up front.
// Returns the distinct issue count.
func printIssues(w io.Writer, keys []string, byOrder map[string][]*model.OrderLine, cls classify.Result, snap *odoo.Snapshot) int {
	seen := make(map[string]struct{})
	var issues []string
	for _, k := range keys {
		if cls[k].Category != classify.NeedsResolution {
			continue
		}
		for _, l := range byOrder[k] {
			if l.Description == "" {
				continue
			}
			if l.SKU != "" && snap.ValidSKU(l.SKU) {
				continue
			}
			if _, ok := seen[l.Description]; ok {
				continue
			}
			seen[l.Description] = struct{}{}
			if l.SKU == "" {
				issues = append(issues, fmt.Sprintf("%s (no SKU)", l.Description))
			} else {
				issues = append(issues, fmt.Sprintf("%s (unknown SKU %s)", l.Description, l.SKU))
			}
		}
	}
	if len(issues) == 0 {
		return 0
	}
	fmt.Fprintf(w, "\n%d distinct product(s) will prompt for resolution:\n", len(issues))
	for _, s := range issues {
		fmt.Fprintf(w, "  %s\n", s)
	}
	return len(issues)
}

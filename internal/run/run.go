// Package run drives one reconciliation pass end to end: read the export,
// classify, resolve, partition, and commit the output artifacts. All
// artifacts are written to a staging directory and moved into place only
// once the run reaches a terminal state, so an abort or crash leaves no
// partial output behind.
package run

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ordersync/internal/cache"
	"ordersync/internal/classify"
	"ordersync/internal/corrections"
	"ordersync/internal/deferral"
	"ordersync/internal/emit"
	"ordersync/internal/export"
	"ordersync/internal/manifest"
	"ordersync/internal/metrics"
	"ordersync/internal/model"
	"ordersync/internal/odoo"
	"ordersync/internal/report"
	"ordersync/internal/resolve"
)

// Output artifact names under the output directory.
const (
	OrdersFile      = "orders_import.csv"
	ContactsFile    = "contacts_import.csv"
	CorrectionsFile = "sku_corrections.csv"
	FailedFile      = "failed_orders.txt"
	ReportFile      = "run_report.xlsx"
)

// Options is the per-run configuration.
type Options struct {
	InputPath    string
	OutDir       string
	InvoiceParty string
	WriteReport  bool
	RunID        string // generated when empty
}

// Deps are the run's collaborators. Decider nil means unattended: every
// prompt is auto-skipped and the second-chance pass is not offered.
type Deps struct {
	Store       cache.Store
	Decider     resolve.Decider
	Snapshot    *odoo.Snapshot
	Corrections corrections.Writer // optional external sink
	Manifest    manifest.Publisher // optional
	Metrics     *metrics.Registry  // optional
	Logger      *log.Logger
	Now         func() time.Time // test seam
}

// Result summarizes where every order of the input went.
type Result struct {
	RunID           string
	TotalOrders     int
	Processed       int
	AlreadyImported int
	Excluded        int
	Unresolved      int
	Empty           bool
	Stats           resolve.Stats
}

// Run executes one reconciliation pass. On resolve.ErrAborted no artifact
// is written and the input file is untouched.
func Run(opts Options, deps Deps) (Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := now()

	table, err := export.ReadFile(opts.InputPath)
	if err != nil {
		return Result{}, err
	}
	raw, err := table.Lines()
	if err != nil {
		return Result{}, err
	}
	lines, err := model.Normalize(raw)
	if err != nil {
		return Result{}, err
	}
	keys, byOrder := model.Group(lines)
	logger.Printf("run %s: %d rows, %d orders", runID, len(lines), len(keys))

	snap := deps.Snapshot
	cls := classify.Classify(lines, snap.Orders, snap.ValidSKU)
	counts := cls.Counts()
	logger.Printf("run %s: %d ready, %d need resolution, %d already imported, %d excluded",
		runID, counts[classify.Ready], counts[classify.NeedsResolution],
		counts[classify.AlreadyImported], counts[classify.Excluded])

	// Only importable orders enter resolution.
	var work []*model.OrderLine
	for _, l := range lines {
		switch cls[l.Meta.OrderKey].Category {
		case classify.Ready, classify.NeedsResolution:
			work = append(work, l)
		}
	}

	decider := deps.Decider
	var second resolve.Decider
	if decider == nil {
		decider = resolve.AutoSkip{}
	} else {
		second = decider
	}
	rec := corrections.NewRecorder()
	engine := resolve.NewEngine(deps.Store, decider, rec, snap.ValidSKU)
	if err := engine.ResolveAll(work); err != nil {
		return Result{}, err
	}
	if err := engine.SecondChance(work, second); err != nil {
		return Result{}, err
	}

	unresolvedKeys := resolve.UnresolvedOrders(work)
	unresolved := make(map[string]struct{}, len(unresolvedKeys))
	for _, k := range unresolvedKeys {
		unresolved[k] = struct{}{}
	}
	outcome := deferral.Partition(lines, cls, unresolved)

	var processedKeys []string
	emitByOrder := make(map[string][]*model.OrderLine)
	for _, k := range keys {
		switch cls[k].Category {
		case classify.Ready, classify.NeedsResolution:
		default:
			continue
		}
		if _, ok := unresolved[k]; ok {
			continue
		}
		for _, l := range byOrder[k] {
			if l.Description == "" {
				continue
			}
			emitByOrder[k] = append(emitByOrder[k], l)
		}
		if len(emitByOrder[k]) > 0 {
			processedKeys = append(processedKeys, k)
		}
	}

	res := Result{
		RunID:           runID,
		TotalOrders:     len(keys),
		Processed:       len(processedKeys),
		AlreadyImported: counts[classify.AlreadyImported],
		Excluded:        counts[classify.Excluded],
		Unresolved:      len(unresolvedKeys),
		Empty:           len(processedKeys) == 0,
		Stats:           engine.Stats(),
	}

	if err := commit(opts, table, outcome, keys, processedKeys, emitByOrder, unresolvedKeys, byOrder, cls, rec, snap, now()); err != nil {
		return Result{}, err
	}

	if deps.Corrections != nil {
		if err := rec.Flush(deps.Corrections); err != nil {
			logger.Printf("run %s: corrections sink: %v", runID, err)
		}
	}
	if deps.Manifest != nil {
		err := deps.Manifest.PublishLatest(manifest.Manifest{
			RunID:           runID,
			TotalOrders:     res.TotalOrders,
			Processed:       res.Processed,
			AlreadyImported: res.AlreadyImported,
			Excluded:        res.Excluded,
			Unresolved:      res.Unresolved,
			Empty:           res.Empty,
		})
		if err != nil {
			logger.Printf("run %s: publish manifest: %v", runID, err)
		}
	}
	if m := deps.Metrics; m != nil {
		m.OrdersProcessed.Add(float64(res.Processed))
		m.OrdersImported.Add(float64(res.AlreadyImported))
		m.OrdersExcluded.Add(float64(res.Excluded))
		m.OrdersDeferred.Add(float64(res.Unresolved))
		m.LinesResolved.Add(float64(res.Stats.LinesResolved))
		m.LinesSkipped.Add(float64(res.Stats.LinesSkipped))
		m.CacheHits.Add(float64(res.Stats.CacheHits + res.Stats.StoreHits))
		m.Prompts.Add(float64(res.Stats.Prompts))
		m.UnresolvedGauge.Set(float64(res.Unresolved))
		m.RunDurationSec.Set(now().Sub(started).Seconds())
	}

	logger.Printf("run %s: %d processed, %d deferred, %d dropped rows", runID,
		res.Processed, res.Unresolved, len(outcome.DroppedRows))
	return res, nil
}

// commit stages every artifact, then moves the set into place and rewrites
// the input last. A failure before the first rename leaves the output
// directory and the input exactly as they were.
func commit(opts Options, table *export.Table, outcome deferral.Outcome,
	keys, processedKeys []string, emitByOrder map[string][]*model.OrderLine,
	unresolvedKeys []string, byOrder map[string][]*model.OrderLine,
	cls classify.Result, rec *corrections.Recorder, snap *odoo.Snapshot, now time.Time) error {

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("mkdir out dir: %w", err)
	}
	stage, err := os.MkdirTemp(opts.OutDir, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	var staged []string

	orderRows, err := emit.OrderBatch(processedKeys, emitByOrder, opts.InvoiceParty)
	if err != nil && !errors.Is(err, emit.ErrEmptyBatch) {
		return err
	}
	if err == nil {
		if err := emit.WriteCSV(filepath.Join(stage, OrdersFile), orderRows); err != nil {
			return err
		}
		staged = append(staged, OrdersFile)

		contactRows := emit.ContactBatch(table, outcome.ResolvedRows, snap.Contacts)
		if err := emit.WriteCSV(filepath.Join(stage, ContactsFile), contactRows); err != nil {
			return err
		}
		staged = append(staged, ContactsFile)
	}

	if rec.Len() > 0 {
		cw, err := corrections.NewCSVWriter(filepath.Join(stage, CorrectionsFile))
		if err != nil {
			return err
		}
		if err := rec.Flush(cw); err != nil {
			return err
		}
		staged = append(staged, CorrectionsFile)
	}

	if len(unresolvedKeys) > 0 {
		f, err := os.Create(filepath.Join(stage, FailedFile))
		if err != nil {
			return fmt.Errorf("create diagnostic: %w", err)
		}
		err = deferral.WriteDiagnostic(f, byOrder, unresolvedKeys, resolve.SkipMarker, now)
		f.Close()
		if err != nil {
			return err
		}
		staged = append(staged, FailedFile)
	}

	if opts.WriteReport {
		if err := report.Write(filepath.Join(stage, ReportFile), reportRows(keys, processedKeys, unresolvedKeys, byOrder, cls), rec.All()); err != nil {
			return err
		}
		staged = append(staged, ReportFile)
	}

	for _, name := range staged {
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(opts.OutDir, name)); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}

	// The rewritten input holds exactly the unresolved rows; dropped and
	// processed rows are consumed by this run.
	return export.WriteFile(opts.InputPath, table.Subset(outcome.UnresolvedRows))
}

func reportRows(keys, processedKeys, unresolvedKeys []string, byOrder map[string][]*model.OrderLine, cls classify.Result) []report.OrderRow {
	processed := make(map[string]struct{}, len(processedKeys))
	for _, k := range processedKeys {
		processed[k] = struct{}{}
	}
	deferred := make(map[string]struct{}, len(unresolvedKeys))
	for _, k := range unresolvedKeys {
		deferred[k] = struct{}{}
	}
	var rows []report.OrderRow
	for _, key := range keys {
		d := cls[key]
		row := report.OrderRow{OrderKey: key, Reason: d.Reason}
		if lines, ok := byOrder[key]; ok && len(lines) > 0 {
			row.Customer = lines[0].Meta.Customer
		}
		switch {
		case d.Category == classify.AlreadyImported:
			row.Disposition = "ALREADY_IMPORTED"
		case d.Category == classify.Excluded:
			row.Disposition = "EXCLUDED"
		default:
			if _, ok := deferred[key]; ok {
				row.Disposition = "DEFERRED"
			} else if _, ok := processed[key]; ok {
				row.Disposition = "PROCESSED"
			} else {
				row.Disposition = "EMPTY"
			}
		}
		rows = append(rows, row)
	}
	return rows
}

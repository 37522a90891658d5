// Package resolve maps order lines with missing or catalog-unknown product
// references to valid catalog references. The engine never blocks on an
// input stream: every decision it cannot make from the cache is handed to a
// Decider as an explicit request, and the terminal front-end is just one
// Decider implementation.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"ordersync/internal/cache"
	"ordersync/internal/corrections"
	"ordersync/internal/model"
)

// SkipMarker is written into a line's SKU when resolution was declined. An
// order with any marker left after the second-chance pass is deferred whole.
const SkipMarker = "__SKIP__"

// ErrAborted is returned when the operator cancels the run mid-resolution.
// The caller must not write any output artifact after seeing it.
var ErrAborted = errors.New("run aborted by operator")

// StockLevel is on-hand quantity at one location.
type StockLevel struct {
	Qty      int64
	Location string
}

// Candidate is one catalog match offered for selection.
type Candidate struct {
	SKU   string
	Name  string
	Stock []StockLevel
}

// Searcher is the external catalog lookup, ordered by the provider's
// relevance ranking.
type Searcher interface {
	Search(ctx context.Context, term string) ([]Candidate, error)
}

// Request asks a Decider to resolve one product description.
type Request struct {
	OrderKey    string
	Description string
	CurrentSKU  string // empty when the platform carried no reference
	SecondPass  bool   // true during the second-chance sweep
}

// Decision is the Decider's answer: a catalog reference, or a skip.
type Decision struct {
	SKU  string
	Skip bool
}

// Decider resolves requests. Implementations: the interactive terminal
// prompter, AutoSkip, scripted fakes in tests. A Decider signals operator
// cancellation by returning ErrAborted.
type Decider interface {
	Decide(req Request) (Decision, error)
}

// AutoSkip declines every request without prompting, for unattended runs.
type AutoSkip struct{}

func (AutoSkip) Decide(Request) (Decision, error) { return Decision{Skip: true}, nil }

// Stats counts what the engine did during one run. Prompts counts
// questions actually put to an operator; auto-skipped requests are not
// prompts.
type Stats struct {
	CacheHits     int
	StoreHits     int
	Prompts       int
	LinesResolved int
	LinesSkipped  int
}

func countsAsPrompt(d Decider) bool {
	_, auto := d.(AutoSkip)
	return !auto
}

// Engine resolves lines against a run-scoped overlay backed by the durable
// cache store. Skip decisions live only in the overlay, so a deferred
// product is offered again on the next run.
type Engine struct {
	store    cache.Store
	overlay  map[string]Decision
	decider  Decider
	rec      *corrections.Recorder
	validSKU func(string) bool
	stats    Stats
}

func NewEngine(store cache.Store, decider Decider, rec *corrections.Recorder, validSKU func(string) bool) *Engine {
	return &Engine{
		store:    store,
		overlay:  make(map[string]Decision),
		decider:  decider,
		rec:      rec,
		validSKU: validSKU,
	}
}

func (e *Engine) Stats() Stats { return e.stats }

// ResolveAll performs the first resolution sweep over the given lines.
// Lines whose reference is already valid are untouched; lines with an empty
// description carry no product and are never resolved.
func (e *Engine) ResolveAll(lines []*model.OrderLine) error {
	for _, l := range lines {
		if l.Description == "" {
			continue
		}
		if l.SKU != "" && e.validSKU(l.SKU) {
			continue
		}
		if err := e.resolveLine(l); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolveLine(l *model.OrderLine) error {
	if d, ok := e.overlay[l.Description]; ok {
		e.stats.CacheHits++
		e.apply(l, d)
		return nil
	}

	if ent, ok, err := e.store.Lookup(l.Description); err != nil {
		return fmt.Errorf("cache lookup %q: %w", l.Description, err)
	} else if ok && e.validSKU(ent.SKU) {
		d := Decision{SKU: ent.SKU}
		e.overlay[l.Description] = d
		e.stats.StoreHits++
		e.apply(l, d)
		ent.Hits++
		if err := e.store.Save(l.Description, ent); err != nil {
			return fmt.Errorf("cache save %q: %w", l.Description, err)
		}
		return nil
	}

	if countsAsPrompt(e.decider) {
		e.stats.Prompts++
	}
	d, err := e.decider.Decide(Request{
		OrderKey:    l.Meta.OrderKey,
		Description: l.Description,
		CurrentSKU:  l.SKU,
	})
	if err != nil {
		return err
	}
	e.overlay[l.Description] = d
	if !d.Skip {
		if err := e.save(l.Description, d.SKU); err != nil {
			return err
		}
	}
	e.apply(l, d)
	return nil
}

// SecondChance offers one retry per distinct skipped description and
// re-applies an accepted resolution to every line sharing it. A nil decider
// skips the pass (unattended runs).
func (e *Engine) SecondChance(lines []*model.OrderLine, decider Decider) error {
	if decider == nil {
		return nil
	}
	var descs []string
	seen := make(map[string]struct{})
	for _, l := range lines {
		if l.SKU != SkipMarker {
			continue
		}
		if _, ok := seen[l.Description]; ok {
			continue
		}
		seen[l.Description] = struct{}{}
		descs = append(descs, l.Description)
	}

	for _, desc := range descs {
		sample := firstSkipped(lines, desc)
		if countsAsPrompt(decider) {
			e.stats.Prompts++
		}
		d, err := decider.Decide(Request{
			OrderKey:    sample.Meta.OrderKey,
			Description: desc,
			SecondPass:  true,
		})
		if err != nil {
			return err
		}
		if d.Skip || d.SKU == "" {
			continue // already recorded as skipped in the first sweep
		}
		e.overlay[desc] = d
		if err := e.save(desc, d.SKU); err != nil {
			return err
		}
		for _, l := range lines {
			if l.Description == desc && l.SKU == SkipMarker {
				e.stats.LinesSkipped--
				e.apply(l, d)
			}
		}
	}
	return nil
}

func firstSkipped(lines []*model.OrderLine, desc string) *model.OrderLine {
	for _, l := range lines {
		if l.Description == desc && l.SKU == SkipMarker {
			return l
		}
	}
	return nil
}

func (e *Engine) apply(l *model.OrderLine, d Decision) {
	orig := l.SKU
	if orig == "" || orig == SkipMarker {
		orig = corrections.Missing
	}
	if d.Skip {
		l.SKU = SkipMarker
		e.stats.LinesSkipped++
		e.rec.Add(corrections.Correction{
			OrderKey:    l.Meta.OrderKey,
			Description: l.Description,
			OriginalSKU: orig,
			ResolvedSKU: corrections.Skipped,
			Action:      corrections.ActionSkipped,
		})
		return
	}
	l.SKU = d.SKU
	e.stats.LinesResolved++
	e.rec.Add(corrections.Correction{
		OrderKey:    l.Meta.OrderKey,
		Description: l.Description,
		OriginalSKU: orig,
		ResolvedSKU: d.SKU,
		Action:      corrections.ActionUpdateSKU,
	})
}

func (e *Engine) save(desc, sku string) error {
	ent, ok, err := e.store.Lookup(desc)
	if err != nil {
		return fmt.Errorf("cache lookup %q: %w", desc, err)
	}
	if !ok {
		ent = cache.Entry{}
	}
	ent.SKU = sku
	ent.Hits++
	ent.UpdatedAt = 0 // let the store stamp it
	if err := e.store.Save(desc, ent); err != nil {
		return fmt.Errorf("cache save %q: %w", desc, err)
	}
	return nil
}

// UnresolvedOrders returns the keys of orders left with at least one
// skip-marked line, in first-seen order. These orders are deferred whole.
func UnresolvedOrders(lines []*model.OrderLine) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, l := range lines {
		if l.SKU != SkipMarker {
			continue
		}
		k := l.Meta.OrderKey
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

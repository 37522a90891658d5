package resolve

import (
	"errors"
	"testing"

	"ordersync/internal/cache"
	"ordersync/internal/corrections"
	"ordersync/internal/model"
)

// scriptedDecider answers by description and records every request.
type scriptedDecider struct {
	answers map[string]Decision
	err     error
	calls   []Request
}

func (d *scriptedDecider) Decide(req Request) (Decision, error) {
	d.calls = append(d.calls, req)
	if d.err != nil {
		return Decision{}, d.err
	}
	a, ok := d.answers[req.Description]
	if !ok {
		return Decision{Skip: true}, nil
	}
	return a, nil
}

func validIn(set ...string) func(string) bool {
	m := make(map[string]struct{}, len(set))
	for _, s := range set {
		m[s] = struct{}{}
	}
	return func(sku string) bool { _, ok := m[sku]; return ok }
}

func line(meta *model.OrderMeta, desc, sku string) *model.OrderLine {
	return &model.OrderLine{Meta: meta, Description: desc, SKU: sku}
}

func TestResolveAll_CacheConsistency(t *testing.T) {
	m1 := &model.OrderMeta{OrderKey: "#1"}
	m2 := &model.OrderMeta{OrderKey: "#2"}
	lines := []*model.OrderLine{
		line(m1, "Blue Widget", ""),
		line(m1, "Good Item", "G-1"), // valid, untouched
		line(m2, "Blue Widget", "STALE"),
	}
	dec := &scriptedDecider{answers: map[string]Decision{"Blue Widget": {SKU: "W-1"}}}
	rec := corrections.NewRecorder()
	e := NewEngine(cache.NewMemoryStore(), dec, rec, validIn("G-1", "W-1"))

	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(dec.calls) != 1 {
		t.Fatalf("same description must prompt once, got %d prompts", len(dec.calls))
	}
	if lines[0].SKU != "W-1" || lines[2].SKU != "W-1" {
		t.Fatalf("resolution not applied to both lines: %q %q", lines[0].SKU, lines[2].SKU)
	}
	if lines[1].SKU != "G-1" {
		t.Fatalf("valid line must be untouched: %q", lines[1].SKU)
	}
	// every application is individually audited, cache hits included
	if rec.Len() != 2 {
		t.Fatalf("want 2 corrections, got %d", rec.Len())
	}
	all := rec.All()
	if all[0].OriginalSKU != corrections.Missing || all[1].OriginalSKU != "STALE" {
		t.Fatalf("original references wrong: %+v", all)
	}
	st := e.Stats()
	if st.CacheHits != 1 || st.Prompts != 1 || st.LinesResolved != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestResolveAll_DurableStoreHitDoesNotPrompt(t *testing.T) {
	store := cache.NewMemoryStore()
	if err := store.Save("Blue Widget", cache.Entry{SKU: "W-1", Hits: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := &model.OrderMeta{OrderKey: "#1"}
	lines := []*model.OrderLine{line(m, "Blue Widget", "")}
	dec := &scriptedDecider{}
	rec := corrections.NewRecorder()
	e := NewEngine(store, dec, rec, validIn("W-1"))

	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(dec.calls) != 0 {
		t.Fatalf("durable hit must not prompt")
	}
	if lines[0].SKU != "W-1" || rec.Len() != 1 {
		t.Fatalf("hit not applied/audited: sku=%q recs=%d", lines[0].SKU, rec.Len())
	}
	ent, _, _ := store.Lookup("Blue Widget")
	if ent.Hits != 2 {
		t.Fatalf("hit counter not bumped: %+v", ent)
	}
}

func TestResolveAll_StaleStoreEntryFallsThrough(t *testing.T) {
	store := cache.NewMemoryStore()
	// W-OLD is no longer a valid catalog reference
	if err := store.Save("Blue Widget", cache.Entry{SKU: "W-OLD"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := &model.OrderMeta{OrderKey: "#1"}
	lines := []*model.OrderLine{line(m, "Blue Widget", "")}
	dec := &scriptedDecider{answers: map[string]Decision{"Blue Widget": {SKU: "W-1"}}}
	e := NewEngine(store, dec, corrections.NewRecorder(), validIn("W-1"))

	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(dec.calls) != 1 || lines[0].SKU != "W-1" {
		t.Fatalf("stale entry should re-prompt: calls=%d sku=%q", len(dec.calls), lines[0].SKU)
	}
}

func TestResolveAll_SkipMarksLine(t *testing.T) {
	m := &model.OrderMeta{OrderKey: "#1"}
	lines := []*model.OrderLine{
		line(m, "Odd Thing", "BAD"),
		line(m, "Odd Thing", ""),
	}
	dec := &scriptedDecider{} // defaults to skip
	rec := corrections.NewRecorder()
	e := NewEngine(cache.NewMemoryStore(), dec, rec, validIn())

	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lines[0].SKU != SkipMarker || lines[1].SKU != SkipMarker {
		t.Fatalf("skip marker not applied: %q %q", lines[0].SKU, lines[1].SKU)
	}
	if len(dec.calls) != 1 {
		t.Fatalf("skip must be cached too, got %d prompts", len(dec.calls))
	}
	all := rec.All()
	if len(all) != 2 || all[0].ResolvedSKU != corrections.Skipped || all[0].Action != corrections.ActionSkipped {
		t.Fatalf("skip corrections wrong: %+v", all)
	}
	// skip decisions must not be persisted to the durable store
	if _, ok, _ := e.store.Lookup("Odd Thing"); ok {
		t.Fatalf("skip marker leaked into durable store")
	}
}

func TestResolveAll_AutoSkipNeverResolves(t *testing.T) {
	m := &model.OrderMeta{OrderKey: "#B1"}
	lines := []*model.OrderLine{line(m, "Mystery Box", "NOPE")}
	e := NewEngine(cache.NewMemoryStore(), AutoSkip{}, corrections.NewRecorder(), validIn())
	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lines[0].SKU != SkipMarker {
		t.Fatalf("auto-skip should mark line: %q", lines[0].SKU)
	}
	st := e.Stats()
	if st.Prompts != 0 {
		t.Fatalf("unattended run issued no prompts, stats say %d", st.Prompts)
	}
	if st.LinesSkipped != 1 {
		t.Fatalf("skip not counted: %+v", st)
	}
}

func TestResolveAll_AbortPropagates(t *testing.T) {
	m := &model.OrderMeta{OrderKey: "#1"}
	lines := []*model.OrderLine{line(m, "Blue Widget", "")}
	dec := &scriptedDecider{err: ErrAborted}
	e := NewEngine(cache.NewMemoryStore(), dec, corrections.NewRecorder(), validIn())
	if err := e.ResolveAll(lines); !errors.Is(err, ErrAborted) {
		t.Fatalf("want ErrAborted, got %v", err)
	}
}

func TestSecondChance_ReappliesToAllLines(t *testing.T) {
	m1 := &model.OrderMeta{OrderKey: "#1"}
	m2 := &model.OrderMeta{OrderKey: "#2"}
	lines := []*model.OrderLine{
		line(m1, "Odd Thing", ""),
		line(m2, "Odd Thing", ""),
		line(m2, "Other Thing", ""),
	}
	first := &scriptedDecider{} // skips everything
	rec := corrections.NewRecorder()
	e := NewEngine(cache.NewMemoryStore(), first, rec, validIn("T-9"))
	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	second := &scriptedDecider{answers: map[string]Decision{"Odd Thing": {SKU: "T-9"}}}
	if err := e.SecondChance(lines, second); err != nil {
		t.Fatalf("second chance: %v", err)
	}
	// one retry per distinct description, not per line
	if len(second.calls) != 2 {
		t.Fatalf("want 2 retries, got %d", len(second.calls))
	}
	for _, c := range second.calls {
		if !c.SecondPass {
			t.Fatalf("second pass flag missing: %+v", c)
		}
	}
	if lines[0].SKU != "T-9" || lines[1].SKU != "T-9" {
		t.Fatalf("resolution not re-applied to all lines: %q %q", lines[0].SKU, lines[1].SKU)
	}
	if lines[2].SKU != SkipMarker {
		t.Fatalf("declined retry should stay skipped: %q", lines[2].SKU)
	}
	if got := UnresolvedOrders(lines); len(got) != 1 || got[0] != "#2" {
		t.Fatalf("unresolved orders: %v", got)
	}
}

func TestSecondChance_NilDeciderSkipsPass(t *testing.T) {
	m := &model.OrderMeta{OrderKey: "#1"}
	lines := []*model.OrderLine{line(m, "Odd Thing", "")}
	e := NewEngine(cache.NewMemoryStore(), AutoSkip{}, corrections.NewRecorder(), validIn())
	if err := e.ResolveAll(lines); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := e.SecondChance(lines, nil); err != nil {
		t.Fatalf("nil decider: %v", err)
	}
	if lines[0].SKU != SkipMarker {
		t.Fatalf("line should remain skipped")
	}
}

func TestUnresolvedOrders_OrderAtomicity(t *testing.T) {
	m := &model.OrderMeta{OrderKey: "#A1"}
	lines := []*model.OrderLine{
		{Meta: m, Description: "Good", SKU: "X"},
		{Meta: m, Description: "Bad", SKU: SkipMarker},
	}
	got := UnresolvedOrders(lines)
	if len(got) != 1 || got[0] != "#A1" {
		t.Fatalf("order with one skipped line must be unresolved whole: %v", got)
	}
}

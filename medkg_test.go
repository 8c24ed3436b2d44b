package medkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

const scenarioText = "患者确诊高血压，表现为头痛，建议氨氯地平治疗"

// memGraph is a GraphStore that only records triples.
type memGraph struct {
	triples []store.TripleInput
	failAt  int // AddTriple fails on this call (1-based); 0 never fails
	closed  bool
}

func (m *memGraph) AddTriple(_ context.Context, t store.TripleInput) error {
	if m.failAt > 0 && len(m.triples)+1 == m.failAt {
		return errors.New("write rejected")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	m.triples = append(m.triples, t)
	return nil
}

func (m *memGraph) AddEntity(context.Context, store.Entity) (int64, error) { return 1, nil }
func (m *memGraph) GetEntity(context.Context, string, string) (*store.Entity, error) {
	return nil, store.ErrEntityNotFound
}
func (m *memGraph) QueryByEntity(context.Context, string, int) ([]store.Edge, error) {
	return []store.Edge{}, nil
}
func (m *memGraph) QueryPath(context.Context, string, string, int) ([]store.Path, error) {
	return []store.Path{}, nil
}
func (m *memGraph) Statistics(context.Context) (*store.Statistics, error) {
	return &store.Statistics{Entities: map[string]int{}, Relations: map[string]int{}}, nil
}
func (m *memGraph) Clear(context.Context) error { m.triples = nil; return nil }
func (m *memGraph) Backend() string             { return "memory" }
func (m *memGraph) Close() error                { m.closed = true; return nil }

// flakyDetector fails or panics on marked texts and finds nothing otherwise.
// A failure degrades to the rule mentions; a panic fails the item.
type flakyDetector struct{}

func (flakyDetector) Source() extraction.Source { return extraction.SourceModel }

func (flakyDetector) Detect(_ context.Context, text string) ([]extraction.Mention, error) {
	switch {
	case strings.Contains(text, "fail"):
		return nil, fmt.Errorf("%w: tagger timeout", extraction.ErrDetectorFailed)
	case strings.Contains(text, "boom"):
		panic("tagger crashed")
	}
	return nil, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memGraph) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	gs := &memGraph{}
	e, err := New(context.Background(), cfg, append([]Option{WithGraphStore(gs)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, gs
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "postgres"
	_, err := New(context.Background(), cfg, WithGraphStore(&memGraph{}))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewWithoutTagger(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.HasTagger() {
		t.Error("tagger reported without one configured")
	}
}

func TestExtract(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Extract(context.Background(), scenarioText, "病例")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Triples) != 2 {
		t.Fatalf("triples = %+v", res.Triples)
	}
	if res.Triples[1].Relation != extraction.RelTreatedBy || res.Triples[1].Source != "病例" {
		t.Errorf("triple 1 = %+v", res.Triples[1])
	}

	if _, err := e.Extract(context.Background(), "  \n", ""); !errors.Is(err, extraction.ErrEmptyText) {
		t.Errorf("blank text err = %v", err)
	}
}

func TestExtractBatchKeepsOrder(t *testing.T) {
	e, _ := newTestEngine(t, WithModelDetector(flakyDetector{}))

	texts := []string{
		"高血压表现为头痛",
		"fail 糖尿病",
		"boom",
		"二甲双胍可导致乏力",
		scenarioText,
		"",
	}
	items := e.ExtractBatch(context.Background(), texts, "")
	if len(items) != len(texts) {
		t.Fatalf("got %d items", len(items))
	}
	for i, it := range items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
	}

	tests := []struct {
		idx     int
		ok      bool
		triples int
	}{
		{0, true, 1},
		{1, true, 0},
		{2, false, 0},
		{3, true, 1},
		{4, true, 2},
		{5, true, 0},
	}
	for _, tt := range tests {
		it := items[tt.idx]
		if it.OK() != tt.ok {
			t.Errorf("item %d ok = %v (%q)", tt.idx, it.OK(), it.Error)
			continue
		}
		if tt.ok && len(it.Result.Triples) != tt.triples {
			t.Errorf("item %d triples = %d, want %d", tt.idx, len(it.Result.Triples), tt.triples)
		}
	}
	if !strings.HasPrefix(items[2].Error, "panic:") {
		t.Errorf("panic marker = %q", items[2].Error)
	}
}

func TestExtractBatchCancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := e.ExtractBatch(ctx, []string{scenarioText, scenarioText}, "")
	for i, it := range items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
}

func TestStoreTriples(t *testing.T) {
	e, gs := newTestEngine(t)
	res, err := e.Extract(context.Background(), scenarioText, "")
	if err != nil {
		t.Fatal(err)
	}

	n, err := e.StoreTriples(context.Background(), res.Triples)
	if err != nil || n != 2 {
		t.Fatalf("StoreTriples = %d, %v", n, err)
	}
	props := gs.triples[0].Properties
	if props["confidence"] != 0.7 || props["source"] != "text" {
		t.Errorf("properties = %v", props)
	}

	gs.failAt = 4
	n, err = e.StoreTriples(context.Background(), res.Triples)
	if err == nil || n != 1 {
		t.Errorf("StoreTriples after failure = %d, %v", n, err)
	}
}

func TestStoreTriplesValidatesBeforeWriting(t *testing.T) {
	e, gs := newTestEngine(t)
	triples := []extraction.Triple{
		{Head: "高血压", HeadType: extraction.EntityDisease, Relation: extraction.RelHasSymptom,
			Tail: "头痛", TailType: extraction.EntitySymptom, Confidence: 0.7, Source: "text"},
		{Head: "高血压", HeadType: "疾病", Relation: extraction.RelTreatedBy,
			Tail: "氨氯地平", TailType: extraction.EntityDrug, Confidence: 0.7, Source: "text"},
	}

	n, err := e.StoreTriples(context.Background(), triples)
	if !errors.Is(err, store.ErrInvalidLabel) {
		t.Fatalf("err = %v, want ErrInvalidLabel", err)
	}
	if n != 0 || len(gs.triples) != 0 {
		t.Errorf("stored %d (graph has %d) after a rejected batch", n, len(gs.triples))
	}
}

func TestExtractFileWithoutStore(t *testing.T) {
	e, gs := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "note.txt")
	content := scenarioText + "。\n二甲双胍可导致乏力。\n" + scenarioText + "。"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := e.ExtractFile(context.Background(), path, FileOptions{})
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	// The repeated sentence is dropped by the splitter.
	if res.Sentences != 2 || len(res.Triples) != 3 {
		t.Errorf("sentences = %d, triples = %d", res.Sentences, len(res.Triples))
	}
	if res.Triples[0].Source != "note.txt" {
		t.Errorf("source = %q", res.Triples[0].Source)
	}
	if res.Stored != 0 || len(gs.triples) != 0 {
		t.Error("triples stored without FileOptions.Store")
	}
}

func TestExtractFileStoresThroughGraph(t *testing.T) {
	e, gs := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte(scenarioText), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := e.ExtractFile(context.Background(), path, FileOptions{Store: true, Source: "ward-3"})
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if res.Stored != 2 || len(gs.triples) != 2 || res.DocumentID != 0 {
		t.Errorf("result = %+v", res)
	}
	if gs.triples[0].Properties["source"] != "ward-3" {
		t.Errorf("properties = %v", gs.triples[0].Properties)
	}
}

func TestExtractFileUnsupported(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "scan.tiff"), FileOptions{})
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("err = %v, want ErrUnsupportedDocument", err)
	}
}

func TestExtractFileMissing(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "gone.txt"), FileOptions{})
	if !errors.Is(err, ErrParsingFailed) {
		t.Errorf("err = %v, want ErrParsingFailed", err)
	}
}

func TestBackendOnlyOperations(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Similar(context.Background(), "高血压", 3); !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("Similar err = %v", err)
	}
	if _, err := e.Documents(context.Background()); !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("Documents err = %v", err)
	}
}

func TestGenerateDemo(t *testing.T) {
	e, gs := newTestEngine(t)

	paths, rep, err := e.GenerateDemo(context.Background(), false)
	if err != nil {
		t.Fatalf("GenerateDemo: %v", err)
	}
	if rep != nil || len(gs.triples) != 0 {
		t.Error("demo data loaded without load flag")
	}
	if _, err := os.Stat(paths.Triples); err != nil {
		t.Errorf("triples file: %v", err)
	}

	_, rep, err = e.GenerateDemo(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(gs.triples) != 40 || rep.Failed != 0 {
		t.Errorf("loaded %d triples, report %+v", len(gs.triples), rep)
	}

	// The written CSV imports cleanly.
	gs.triples = nil
	rep, err = e.ImportTriplesFile(context.Background(), paths.Triples)
	if err != nil {
		t.Fatalf("ImportTriplesFile: %v", err)
	}
	if rep.Imported != 40 || rep.Failed != 0 {
		t.Errorf("import report = %+v", rep)
	}
}

func TestCloseClosesStore(t *testing.T) {
	cfg := DefaultConfig()
	gs := &memGraph{}
	e, err := New(context.Background(), cfg, WithGraphStore(gs))
	if err != nil {
		t.Fatal(err)
	}
	e.Close()
	if !gs.closed {
		t.Error("store not closed")
	}
}

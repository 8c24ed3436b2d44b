//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTriples(t *testing.T, s *Store, triples ...TripleInput) {
	t.Helper()
	for _, tr := range triples {
		if err := s.AddTriple(context.Background(), tr); err != nil {
			t.Fatalf("AddTriple(%+v): %v", tr, err)
		}
	}
}

func triple(head, headType, rel, tail, tailType string) TripleInput {
	return TripleInput{Head: head, HeadType: headType, Relation: rel, Tail: tail, TailType: tailType}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	if s.Backend() != "sqlite" {
		t.Errorf("Backend() = %q", s.Backend())
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kg.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	addTriples(t, s, triple("高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"))
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	st, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalRelations != 1 || st.TotalEntities != 2 {
		t.Errorf("after reopen: %+v", st)
	}
}

// ---------------------------------------------------------------------------
// Triples and entities
// ---------------------------------------------------------------------------

func TestAddTripleReusesEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := triple("肺癌", "DISEASE", "TREATED_BY", "吉非替尼", "DRUG")
	tr.Properties = map[string]any{"confidence": 0.7, "source": "text"}
	addTriples(t, s, tr, tr)

	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.Entities["DISEASE"] != 1 || st.Entities["DRUG"] != 1 {
		t.Errorf("entities = %v, want one of each", st.Entities)
	}
	// Relationships are never deduplicated.
	if st.Relations["TREATED_BY"] != 2 || st.TotalRelations != 2 {
		t.Errorf("relations = %v", st.Relations)
	}
}

func TestAddTriplesIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good := triple("高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM")
	bad := triple("高血压", "疾病", "TREATED_BY", "氨氯地平", "DRUG")
	err := s.AddTriples(ctx, []TripleInput{good, bad})
	if !errors.Is(err, ErrInvalidLabel) || !strings.Contains(err.Error(), "triple 1") {
		t.Fatalf("err = %v, want ErrInvalidLabel on triple 1", err)
	}
	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.TotalEntities != 0 || st.TotalRelations != 0 {
		t.Errorf("rejected batch wrote rows: %+v", st)
	}

	if err := s.AddTriples(ctx, []TripleInput{good, good}); err != nil {
		t.Fatalf("AddTriples: %v", err)
	}
	if st, _ = s.Statistics(ctx); st.Relations["HAS_SYMPTOM"] != 2 || st.TotalEntities != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestAddTripleSameNameDifferentType(t *testing.T) {
	s := newTestStore(t)
	addTriples(t, s,
		triple("肺", "ANATOMY", "COMPLICATION", "肺", "DISEASE"),
	)
	st, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalEntities != 2 {
		t.Errorf("expected two distinct entities, got %+v", st)
	}
}

func TestAddTripleRejectsBadLabels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   TripleInput
	}{
		{"head type injection", triple("a", "DISEASE`) DETACH DELETE n //", "R", "b", "DRUG")},
		{"relation with space", triple("a", "DISEASE", "TREATED BY", "b", "DRUG")},
		{"empty tail type", triple("a", "DISEASE", "R", "b", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AddTriple(ctx, tt.in); !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("err = %v, want ErrInvalidLabel", err)
			}
		})
	}

	if err := s.AddTriple(ctx, triple(" ", "DISEASE", "R", "b", "DRUG")); err == nil {
		t.Error("expected error for blank head")
	}

	st, _ := s.Statistics(ctx)
	if st.TotalEntities != 0 {
		t.Errorf("rejected triples left %d entities", st.TotalEntities)
	}
}

func TestAddEntityMergesProperties(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.AddEntity(ctx, Entity{Name: "糖尿病", Type: "DISEASE",
		Properties: map[string]any{"icd10": "E11"}})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	id2, err := s.AddEntity(ctx, Entity{Name: "糖尿病", Type: "DISEASE",
		Properties: map[string]any{"department": "内分泌科"}})
	if err != nil {
		t.Fatalf("AddEntity update: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert changed id: %d -> %d", id1, id2)
	}

	e, err := s.GetEntity(ctx, "DISEASE", "糖尿病")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if e.Properties["icd10"] != "E11" || e.Properties["department"] != "内分泌科" {
		t.Errorf("properties = %v", e.Properties)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity(context.Background(), "DRUG", "不存在")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("err = %v, want ErrEntityNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func seedGraph(t *testing.T, s *Store) {
	t.Helper()
	addTriples(t, s,
		triple("高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"),
		triple("高血压", "DISEASE", "TREATED_BY", "氨氯地平", "DRUG"),
		triple("偏头痛", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"),
		triple("偏头痛", "DISEASE", "TREATED_BY", "布洛芬", "DRUG"),
		triple("糖尿病", "DISEASE", "TREATED_BY", "二甲双胍", "DRUG"),
	)
}

func TestQueryByEntityDepth(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	tests := []struct {
		depth int
		want  int
	}{
		{1, 2}, // 高血压's own edges
		{2, 3}, // + 偏头痛-头痛
		{3, 4}, // + 偏头痛-布洛芬
	}
	for _, tt := range tests {
		edges, err := s.QueryByEntity(ctx, "高血压", tt.depth)
		if err != nil {
			t.Fatalf("depth %d: %v", tt.depth, err)
		}
		if len(edges) != tt.want {
			t.Errorf("depth %d: got %d edges, want %d: %+v", tt.depth, len(edges), tt.want, edges)
		}
	}
}

func TestQueryByEntityBothDirections(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)

	edges, err := s.QueryByEntity(context.Background(), "头痛", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
	for _, e := range edges {
		if e.Tail != "头痛" || e.Relation != "HAS_SYMPTOM" {
			t.Errorf("edge direction not preserved: %+v", e)
		}
	}
}

func TestQueryByEntityUnknownAndInvalidDepth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	edges, err := s.QueryByEntity(ctx, "不存在", 1)
	if err != nil {
		t.Fatal(err)
	}
	if edges == nil || len(edges) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", edges)
	}

	for _, d := range []int{0, MaxQueryDepth + 1} {
		if _, err := s.QueryByEntity(ctx, "x", d); !errors.Is(err, ErrInvalidDepth) {
			t.Errorf("depth %d: err = %v, want ErrInvalidDepth", d, err)
		}
	}
}

func TestQueryByEntityKeepsProperties(t *testing.T) {
	s := newTestStore(t)
	tr := triple("肺癌", "DISEASE", "TREATED_BY", "吉非替尼", "DRUG")
	tr.Properties = map[string]any{"confidence": 0.7, "source": "指南"}
	addTriples(t, s, tr)

	edges, err := s.QueryByEntity(context.Background(), "肺癌", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges", len(edges))
	}
	if edges[0].Properties["source"] != "指南" || edges[0].Properties["confidence"] != 0.7 {
		t.Errorf("properties = %v", edges[0].Properties)
	}
}

func TestQueryPath(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	paths, err := s.QueryPath(ctx, "氨氯地平", "布洛芬", 5)
	if err != nil {
		t.Fatalf("QueryPath: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	p := paths[0]
	if p.Len() != 4 {
		t.Errorf("path length = %d, want 4", p.Len())
	}
	wantNodes := []string{"氨氯地平", "高血压", "头痛", "偏头痛", "布洛芬"}
	for i, n := range p.Nodes {
		if n.Name != wantNodes[i] {
			t.Errorf("node %d = %q, want %q", i, n.Name, wantNodes[i])
		}
	}

	short, err := s.QueryPath(ctx, "氨氯地平", "布洛芬", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(short) != 0 {
		t.Errorf("max depth 3 should find nothing, got %d", len(short))
	}
}

func TestQueryPathShortestFirstAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Twelve parallel TREATED_BY edges plus one two-hop route.
	for i := 0; i < 12; i++ {
		addTriples(t, s, triple("肺癌", "DISEASE", "TREATED_BY", "吉非替尼", "DRUG"))
	}
	addTriples(t, s,
		triple("肺癌", "DISEASE", "HAS_SYMPTOM", "咳嗽", "SYMPTOM"),
		triple("吉非替尼", "DRUG", "RELIEVES", "咳嗽", "SYMPTOM"),
	)

	paths, err := s.QueryPath(ctx, "肺癌", "吉非替尼", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != MaxPaths {
		t.Fatalf("got %d paths, want %d", len(paths), MaxPaths)
	}
	for _, p := range paths {
		if p.Len() != 1 {
			t.Errorf("expected the one-hop paths first, got length %d", p.Len())
		}
	}
}

func TestQueryPathUnknownEndpoints(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	paths, err := s.QueryPath(context.Background(), "高血压", "不存在", 3)
	if err != nil {
		t.Fatal(err)
	}
	if paths == nil || len(paths) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", paths)
	}
	if _, err := s.QueryPath(context.Background(), "a", "b", 6); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("err = %v, want ErrInvalidDepth", err)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err := s.DBStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entities != 0 || stats.Relationships != 0 || stats.Vectors != 0 {
		t.Errorf("after clear: %+v", stats)
	}
	// The store is usable after clearing.
	addTriples(t, s, triple("冠心病", "DISEASE", "HAS_SYMPTOM", "胸痛", "SYMPTOM"))
}

// ---------------------------------------------------------------------------
// Name vectors
// ---------------------------------------------------------------------------

func TestSimilarEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, e := range []Entity{
		{Name: "2型糖尿病", Type: "DISEASE"},
		{Name: "糖尿病", Type: "DISEASE"},
		{Name: "高血压", Type: "DISEASE"},
		{Name: "阿司匹林", Type: "DRUG"},
	} {
		if _, err := s.AddEntity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SimilarEntities(ctx, "糖尿病", 2)
	if err != nil {
		t.Fatalf("SimilarEntities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Name != "糖尿病" {
		t.Errorf("nearest = %q, want exact match first", got[0].Name)
	}
	if got[0].Score < 0.99 {
		t.Errorf("exact match score = %f", got[0].Score)
	}
	if got[1].Name != "2型糖尿病" {
		t.Errorf("second = %q, want 2型糖尿病", got[1].Name)
	}
}

func TestDBStatsCountsVectors(t *testing.T) {
	s := newTestStore(t)
	seedGraph(t, s)
	stats, err := s.DBStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entities != 7 || stats.Vectors != 7 || stats.Relationships != 5 {
		t.Errorf("stats = %+v", stats)
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, Document{
		Path: "/data/guide.pdf", Filename: "guide.pdf", Format: "pdf", ContentHash: "h1",
	})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	triples := []TripleInput{
		triple("高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"),
		triple("高血压", "DISEASE", "TREATED_BY", "氨氯地平", "DRUG"),
	}
	if err := s.AddDocumentTriples(ctx, id, triples); err != nil {
		t.Fatalf("AddDocumentTriples: %v", err)
	}
	if err := s.UpdateDocumentStatus(ctx, id, StatusCompleted, 3, len(triples)); err != nil {
		t.Fatal(err)
	}

	// Re-processing replaces the document's triples instead of duplicating them.
	if err := s.AddDocumentTriples(ctx, id, triples[:1]); err != nil {
		t.Fatal(err)
	}
	st, _ := s.Statistics(ctx)
	if st.TotalRelations != 1 {
		t.Errorf("relations after re-processing = %d, want 1", st.TotalRelations)
	}

	doc, err := s.GetDocumentByPath(ctx, "/data/guide.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != id || doc.Status != StatusCompleted || doc.Triples != 2 || doc.Sentences != 3 {
		t.Errorf("doc = %+v", doc)
	}

	again, err := s.UpsertDocument(ctx, Document{
		Path: "/data/guide.pdf", Filename: "guide.pdf", Format: "pdf", ContentHash: "h2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Errorf("upsert changed id: %d -> %d", id, again)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ContentHash != "h2" || docs[0].Status != StatusPending {
		t.Errorf("docs = %+v", docs)
	}
}

func TestGetDocumentByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocumentByPath(context.Background(), "/nope.txt")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestAddDocumentTriplesValidatesFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.UpsertDocument(ctx, Document{Path: "a.txt", Filename: "a.txt", Format: "txt", ContentHash: "x"})
	if err != nil {
		t.Fatal(err)
	}
	err = s.AddDocumentTriples(ctx, id, []TripleInput{
		triple("高血压", "DISEASE", "HAS_SYMPTOM", "头痛", "SYMPTOM"),
		triple("x", "bad type", "R", "y", "DRUG"),
	})
	if !errors.Is(err, ErrInvalidLabel) {
		t.Fatalf("err = %v, want ErrInvalidLabel", err)
	}
	st, _ := s.Statistics(ctx)
	if st.TotalRelations != 0 {
		t.Errorf("partial write: %d relations", st.TotalRelations)
	}
}

package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

// maxReportedErrors caps Report.Errors; failures beyond it are only counted.
const maxReportedErrors = 20

// Report summarizes one import run.
type Report struct {
	BatchID  string   `json:"batch_id"`
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func newReport() *Report {
	return &Report{BatchID: uuid.NewString()}
}

func (r *Report) fail(msg string) {
	r.Failed++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// TripleProperties is the relationship property set stored for a triple.
func TripleProperties(t extraction.Triple) map[string]any {
	return map[string]any{
		"confidence": t.Confidence,
		"source":     t.Source,
	}
}

// TripleInput converts an extracted triple to a store insert.
func TripleInput(t extraction.Triple) store.TripleInput {
	return store.TripleInput{
		Head:       t.Head,
		HeadType:   string(t.HeadType),
		Relation:   string(t.Relation),
		Tail:       t.Tail,
		TailType:   string(t.TailType),
		Properties: TripleProperties(t),
	}
}

// ImportTriples reads a CSV or JSONL triple file and adds every triple to
// gs. Malformed rows and rejected triples are logged, counted and skipped;
// only an unreadable input or a cancelled context stops the run.
func ImportTriples(ctx context.Context, gs store.GraphStore, r io.Reader, format string) (*Report, error) {
	tr, err := extraction.NewTripleReader(r, format)
	if err != nil {
		return nil, err
	}
	rep := newReport()
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		t, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *extraction.RowError
		if errors.As(err, &rowErr) {
			slog.Warn("import: skipping row", "batch", rep.BatchID, "error", err)
			rep.fail(err.Error())
			continue
		}
		if err != nil {
			return rep, err
		}

		in := TripleInput(t)
		in.Properties["import_batch"] = rep.BatchID
		if err := gs.AddTriple(ctx, in); err != nil {
			slog.Warn("import: triple failed", "batch", rep.BatchID,
				"head", t.Head, "relation", t.Relation, "tail", t.Tail, "error", err)
			rep.fail(fmt.Sprintf("%s -%s-> %s: %v", t.Head, t.Relation, t.Tail, err))
			continue
		}
		rep.Imported++
		if rep.Imported%10 == 0 {
			slog.Debug("import: progress", "batch", rep.BatchID, "imported", rep.Imported)
		}
	}
	slog.Info("import: triples done", "batch", rep.BatchID,
		"imported", rep.Imported, "failed", rep.Failed, "backend", gs.Backend())
	return rep, nil
}

// ImportEntities reads a dataset JSON document and upserts its entities
// with their attributes. Relations in the document are not imported.
func ImportEntities(ctx context.Context, gs store.GraphStore, r io.Reader) (*Report, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return ImportDataset(ctx, gs, &ds, false)
}

// ImportDataset upserts the entities of ds and, when withRelations is set,
// adds its relations too.
func ImportDataset(ctx context.Context, gs store.GraphStore, ds *Dataset, withRelations bool) (*Report, error) {
	rep := newReport()
	for _, e := range ds.Entities {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		_, err := gs.AddEntity(ctx, store.Entity{
			Name:       e.EntityName(),
			Type:       string(e.EntityType()),
			Properties: e.Properties(),
		})
		if err != nil {
			slog.Warn("import: entity failed", "batch", rep.BatchID, "name", e.EntityName(), "error", err)
			rep.fail(fmt.Sprintf("%s: %v", e.EntityName(), err))
			continue
		}
		rep.Imported++
	}

	if withRelations {
		for _, t := range ds.Relations {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			in := TripleInput(t)
			in.Properties["import_batch"] = rep.BatchID
			if err := gs.AddTriple(ctx, in); err != nil {
				slog.Warn("import: triple failed", "batch", rep.BatchID, "head", t.Head, "error", err)
				rep.fail(fmt.Sprintf("%s -%s-> %s: %v", t.Head, t.Relation, t.Tail, err))
				continue
			}
			rep.Imported++
		}
	}
	slog.Info("import: dataset done", "batch", rep.BatchID,
		"imported", rep.Imported, "failed", rep.Failed)
	return rep, nil
}

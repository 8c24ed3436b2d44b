// Package medkg extracts medical knowledge triples from Chinese clinical
// text and maintains them in a graph store.
package medkg

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/chunker"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/demo"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/llm"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/parser"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

// Version is reported by the API root and the CLI.
const Version = "0.1.0"

// Engine ties the extraction pipeline to a graph store. It is safe for
// concurrent use.
type Engine struct {
	cfg     Config
	lexicon *extraction.Lexicon
	gen     *extraction.Generator
	graph   store.GraphStore
	parsers *parser.Registry
	chunkr  *chunker.Chunker
}

// Option customises engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	graph   store.GraphStore
	model   extraction.Detector
	lexicon *extraction.Lexicon
}

// WithGraphStore uses gs instead of opening the configured backend. The
// engine takes ownership and closes it.
func WithGraphStore(gs store.GraphStore) Option {
	return func(o *engineOptions) { o.graph = gs }
}

// WithModelDetector installs a model detector in place of the configured
// LLM tagger.
func WithModelDetector(d extraction.Detector) Option {
	return func(o *engineOptions) { o.model = d }
}

// WithLexicon overrides the built-in or configured lexicon.
func WithLexicon(lex *extraction.Lexicon) Option {
	return func(o *engineOptions) { o.lexicon = lex }
}

// New builds an engine from cfg. A tagger that cannot be constructed is
// logged and skipped; extraction then runs on rules alone.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	lex := o.lexicon
	if lex == nil {
		var err error
		if lex, err = loadLexicon(cfg.Lexicon); err != nil {
			return nil, err
		}
	}

	model := o.model
	if model == nil && cfg.Tagger.Enabled {
		chat, err := llm.NewProvider(cfg.Tagger.LLM)
		if err != nil {
			slog.Warn("engine: tagger unavailable", "provider", cfg.Tagger.LLM.Provider, "error", err)
		} else {
			model = extraction.NewTaggerDetector(chat, cfg.Tagger.LLM.Model)
		}
	}

	gs := o.graph
	if gs == nil {
		var err error
		if gs, err = openGraphStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	recognizer := extraction.NewRecognizer(extraction.NewDictionaryDetector(lex), model)
	gen := extraction.NewGenerator(recognizer, extraction.NewRelationExtractor(lex)).
		WithOptions(extraction.ExtractOptions{
			UseRules: cfg.Extraction.UseRules,
			UseModel: cfg.Extraction.UseModel,
		})

	slog.Info("engine: ready", "backend", gs.Backend(), "terms", lex.TermCount(),
		"tagger", recognizer.HasModel(), "concurrency", cfg.Extraction.Concurrency)

	return &Engine{
		cfg:     cfg,
		lexicon: lex,
		gen:     gen,
		graph:   gs,
		parsers: parser.NewRegistry(),
		chunkr:  chunker.New(chunker.Config{MaxRunes: cfg.Extraction.MaxSentenceRunes}),
	}, nil
}

func loadLexicon(cfg LexiconConfig) (*extraction.Lexicon, error) {
	if cfg.Path == "" {
		return extraction.DefaultLexicon(), nil
	}
	lex, err := extraction.LoadLexicon(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: lexicon: %v", ErrInvalidConfig, err)
	}
	return lex, nil
}

func openGraphStore(ctx context.Context, cfg Config) (store.GraphStore, error) {
	switch cfg.Store.Backend {
	case "neo4j":
		gs, err := store.NewNeo4jStore(ctx, cfg.Store.Neo4j)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return gs, nil
	default:
		gs, err := store.New(cfg.ResolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return gs, nil
	}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// GraphStore returns the underlying store.
func (e *Engine) GraphStore() store.GraphStore { return e.graph }

// HasTagger reports whether a model detector is configured.
func (e *Engine) HasTagger() bool { return e.gen.Recognizer().HasModel() }

// Close releases the graph store.
func (e *Engine) Close() error {
	return e.graph.Close()
}

// --- Extraction ---

// Extract runs the pipeline over one text. Blank input is rejected with
// extraction.ErrEmptyText.
func (e *Engine) Extract(ctx context.Context, text, source string) (*extraction.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, extraction.ErrEmptyText
	}
	return e.gen.GenerateFromText(ctx, text, source)
}

// ExtractBatch processes texts on a bounded worker pool. Items come back in
// input order; a failed item carries an error marker and the rest of the
// batch is unaffected.
func (e *Engine) ExtractBatch(ctx context.Context, texts []string, source string) []extraction.BatchItem {
	items := make([]extraction.BatchItem, len(texts))
	if len(texts) == 0 {
		return items
	}

	var (
		wg    sync.WaitGroup
		sem   = make(chan struct{}, e.cfg.Extraction.Concurrency)
		start = time.Now()
	)
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				items[i] = extraction.BatchItem{Index: i, Error: ctx.Err().Error()}
				return
			}
			items[i] = e.gen.GenerateItem(ctx, i, text, source)
		}(i, text)
	}
	wg.Wait()

	failed := 0
	for _, it := range items {
		if !it.OK() {
			failed++
		}
	}
	slog.Debug("engine: batch done", "items", len(items), "failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return items
}

// FileOptions controls ExtractFile.
type FileOptions struct {
	Source string // triple source label; defaults to the file name
	Store  bool   // persist extracted triples
	Force  bool   // re-process a stored document whose content is unchanged
}

// FileResult reports what ExtractFile did with one document.
type FileResult struct {
	Path       string                 `json:"path"`
	Format     string                 `json:"format"`
	DocumentID int64                  `json:"document_id,omitempty"`
	Sentences  int                    `json:"sentences"`
	Failed     int                    `json:"failed"`
	Stored     int                    `json:"stored"`
	Skipped    bool                   `json:"skipped,omitempty"`
	Items      []extraction.BatchItem `json:"items,omitempty"`
	Triples    []extraction.Triple    `json:"triples"`
}

// documentStore is implemented by backends that track processed documents.
type documentStore interface {
	GetDocumentByPath(ctx context.Context, path string) (*store.Document, error)
	UpsertDocument(ctx context.Context, doc store.Document) (int64, error)
	AddDocumentTriples(ctx context.Context, docID int64, triples []store.TripleInput) error
	UpdateDocumentStatus(ctx context.Context, id int64, status string, sentences, triples int) error
	ListDocuments(ctx context.Context) ([]store.Document, error)
}

// ExtractFile parses a txt, pdf or xlsx document, splits it into sentences
// and runs the batch pipeline. With opts.Store the triples are persisted;
// backends that track documents replace the triples of an earlier run and
// skip unchanged files.
func (e *Engine) ExtractFile(ctx context.Context, path string, opts FileOptions) (*FileResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	format := parser.FormatOf(absPath)
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDocument, filepath.Ext(absPath))
	}
	source := opts.Source
	if source == "" {
		source = filepath.Base(absPath)
	}
	res := &FileResult{Path: absPath, Format: format}

	docs, tracked := e.graph.(documentStore)
	var hash string
	if opts.Store && tracked {
		if hash, err = fileHash(absPath); err != nil {
			return nil, fmt.Errorf("hashing file: %w", err)
		}
		existing, err := docs.GetDocumentByPath(ctx, absPath)
		switch {
		case err == nil && !opts.Force && existing.ContentHash == hash && existing.Status == store.StatusCompleted:
			slog.Info("extract: document unchanged, skipping", "file", res.Path, "doc_id", existing.ID)
			res.DocumentID = existing.ID
			res.Sentences = existing.Sentences
			res.Stored = existing.Triples
			res.Skipped = true
			res.Triples = []extraction.Triple{}
			return res, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("looking up document: %w", err)
		}
		res.DocumentID, err = docs.UpsertDocument(ctx, store.Document{
			Path:        absPath,
			Filename:    filepath.Base(absPath),
			Format:      format,
			ContentHash: hash,
			Status:      store.StatusPending,
		})
		if err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}
	}

	parseStart := time.Now()
	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		e.markFailed(ctx, res)
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	segs := e.chunkr.Chunk(parsed.Sections)
	res.Sentences = len(segs)
	slog.Info("extract: document parsed", "file", filepath.Base(absPath), "format", format,
		"sections", len(parsed.Sections), "sentences", len(segs),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	res.Items = e.ExtractBatch(ctx, chunker.Texts(segs), source)
	res.Triples = []extraction.Triple{}
	for _, it := range res.Items {
		if !it.OK() {
			res.Failed++
			continue
		}
		res.Triples = append(res.Triples, it.Result.Triples...)
	}
	if err := ctx.Err(); err != nil {
		e.markFailed(ctx, res)
		return nil, err
	}

	if opts.Store {
		if tracked {
			inputs := make([]store.TripleInput, len(res.Triples))
			for i, t := range res.Triples {
				inputs[i] = demo.TripleInput(t)
			}
			if err := docs.AddDocumentTriples(ctx, res.DocumentID, inputs); err != nil {
				e.markFailed(ctx, res)
				return nil, fmt.Errorf("storing triples: %w", err)
			}
			res.Stored = len(inputs)
			if err := docs.UpdateDocumentStatus(ctx, res.DocumentID, store.StatusCompleted, res.Sentences, res.Stored); err != nil {
				return nil, fmt.Errorf("updating document: %w", err)
			}
		} else {
			n, err := e.StoreTriples(ctx, res.Triples)
			res.Stored = n
			if err != nil {
				return res, err
			}
		}
	}

	slog.Info("extract: document done", "file", filepath.Base(absPath),
		"sentences", res.Sentences, "triples", len(res.Triples), "failed", res.Failed, "stored", res.Stored)
	return res, nil
}

func (e *Engine) markFailed(ctx context.Context, res *FileResult) {
	docs, ok := e.graph.(documentStore)
	if !ok || res.DocumentID == 0 {
		return
	}
	if err := docs.UpdateDocumentStatus(context.WithoutCancel(ctx), res.DocumentID, store.StatusFailed, res.Sentences, 0); err != nil {
		slog.Warn("extract: could not mark document failed", "doc_id", res.DocumentID, "error", err)
	}
}

// Documents lists the documents processed with ExtractFile.
func (e *Engine) Documents(ctx context.Context) ([]store.Document, error) {
	docs, ok := e.graph.(documentStore)
	if !ok {
		return nil, fmt.Errorf("%w: documents (%s)", ErrUnsupportedBackend, e.graph.Backend())
	}
	return docs.ListDocuments(ctx)
}

// Export serializes triples as csv or jsonl.
func (e *Engine) Export(triples []extraction.Triple, format string) (string, error) {
	return extraction.ExportTriples(triples, format)
}

// --- Graph ---

// tripleBatcher is implemented by backends that store a batch atomically.
type tripleBatcher interface {
	AddTriples(ctx context.Context, triples []store.TripleInput) error
}

// StoreTriples adds triples to the graph with {confidence, source}
// relationship properties. Every triple is validated before the first
// write, so a rejected label leaves the graph unchanged. Backends with
// batch support write the whole set in one transaction.
func (e *Engine) StoreTriples(ctx context.Context, triples []extraction.Triple) (int, error) {
	inputs := make([]store.TripleInput, len(triples))
	for i, t := range triples {
		inputs[i] = demo.TripleInput(t)
	}
	if err := store.ValidateTriples(inputs); err != nil {
		return 0, fmt.Errorf("storing triples: %w", err)
	}

	if b, ok := e.graph.(tripleBatcher); ok {
		if err := b.AddTriples(ctx, inputs); err != nil {
			return 0, fmt.Errorf("storing triples: %w", err)
		}
		return len(inputs), nil
	}
	for i, in := range inputs {
		if err := e.graph.AddTriple(ctx, in); err != nil {
			return i, fmt.Errorf("storing triple %d (%s -%s-> %s): %w", i, in.Head, in.Relation, in.Tail, err)
		}
	}
	return len(inputs), nil
}

// AddTriple inserts one triple with caller-supplied properties.
func (e *Engine) AddTriple(ctx context.Context, t store.TripleInput) error {
	return e.graph.AddTriple(ctx, t)
}

// GetEntity looks up an entity by type and name.
func (e *Engine) GetEntity(ctx context.Context, entityType, name string) (*store.Entity, error) {
	return e.graph.GetEntity(ctx, entityType, name)
}

// Query returns the edges within depth hops of the named entity.
func (e *Engine) Query(ctx context.Context, name string, depth int) ([]store.Edge, error) {
	return e.graph.QueryByEntity(ctx, name, depth)
}

// Path returns up to store.MaxPaths shortest paths between two entities.
func (e *Engine) Path(ctx context.Context, start, end string, maxDepth int) ([]store.Path, error) {
	return e.graph.QueryPath(ctx, start, end, maxDepth)
}

// Statistics counts entities and relationships by type.
func (e *Engine) Statistics(ctx context.Context) (*store.Statistics, error) {
	return e.graph.Statistics(ctx)
}

// Clear removes every entity and relationship from the graph.
func (e *Engine) Clear(ctx context.Context) error {
	return e.graph.Clear(ctx)
}

type similaritySearcher interface {
	SimilarEntities(ctx context.Context, name string, k int) ([]store.SimilarEntity, error)
}

// Similar returns the k stored entities whose names are closest to name.
// Only the SQLite backend keeps name vectors.
func (e *Engine) Similar(ctx context.Context, name string, k int) ([]store.SimilarEntity, error) {
	s, ok := e.graph.(similaritySearcher)
	if !ok {
		return nil, fmt.Errorf("%w: similar entities (%s)", ErrUnsupportedBackend, e.graph.Backend())
	}
	return s.SimilarEntities(ctx, name, k)
}

// --- Import and demo data ---

// ImportTriplesFile loads a .csv or .jsonl triple file into the graph.
func (e *Engine) ImportTriplesFile(ctx context.Context, path string) (*demo.Report, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return demo.ImportTriples(ctx, e.graph, f, format)
}

// ImportEntitiesFile loads the entities of a dataset JSON file.
func (e *Engine) ImportEntitiesFile(ctx context.Context, path string) (*demo.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return demo.ImportEntities(ctx, e.graph, f)
}

// GenerateDemo writes the demo dataset under the data directory and, when
// load is set, imports its entities and relations.
func (e *Engine) GenerateDemo(ctx context.Context, load bool) (*demo.Paths, *demo.Report, error) {
	ds := demo.Generate()
	paths, err := demo.Save(e.cfg.DataDir, ds)
	if err != nil {
		return nil, nil, fmt.Errorf("saving demo data: %w", err)
	}
	slog.Info("demo: dataset written", "dataset", paths.Dataset, "triples", paths.Triples,
		"entities", len(ds.Entities), "relations", len(ds.Relations))
	if !load {
		return paths, nil, nil
	}
	rep, err := demo.ImportDataset(ctx, e.graph, ds, true)
	if err != nil {
		return paths, rep, err
	}
	return paths, rep, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

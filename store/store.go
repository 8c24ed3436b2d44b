package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	Sentences   int    `json:"sentences"`
	Triples     int    `json:"triples"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Document statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DBStats holds row counts for every table.
type DBStats struct {
	Documents     int `json:"documents"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Vectors       int `json:"vectors"`
}

// Store is the SQLite-backed GraphStore.
type Store struct {
	db *sql.DB
}

var _ GraphStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(NameVectorDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Backend() string { return "sqlite" }

// --- Graph operations ---

// AddEntity upserts an entity. Properties are merged into the stored ones.
func (s *Store) AddEntity(ctx context.Context, e Entity) (int64, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertEntity(ctx, tx, e.Name, e.Type, e.Properties)
		return err
	})
	return id, err
}

// AddTriple looks up or creates both endpoints and inserts a relationship.
func (s *Store) AddTriple(ctx context.Context, t TripleInput) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertTriple(ctx, tx, t, nil)
	})
}

// AddTriples stores triples in one transaction. Nothing is written unless
// every triple validates and inserts.
func (s *Store) AddTriples(ctx context.Context, triples []TripleInput) error {
	if err := ValidateTriples(triples); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i, t := range triples {
			if err := insertTriple(ctx, tx, t, nil); err != nil {
				return fmt.Errorf("triple %d: %w", i, err)
			}
		}
		return nil
	})
}

// AddDocumentTriples stores triples extracted from a document in a single
// transaction, replacing any triples previously stored for it.
func (s *Store) AddDocumentTriples(ctx context.Context, docID int64, triples []TripleInput) error {
	if err := ValidateTriples(triples); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM relationships WHERE document_id = ?", docID); err != nil {
			return err
		}
		for _, t := range triples {
			if err := insertTriple(ctx, tx, t, &docID); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTriple(ctx context.Context, tx *sql.Tx, t TripleInput, docID *int64) error {
	headID, err := upsertEntity(ctx, tx, t.Head, t.HeadType, nil)
	if err != nil {
		return fmt.Errorf("head entity: %w", err)
	}
	tailID, err := upsertEntity(ctx, tx, t.Tail, t.TailType, nil)
	if err != nil {
		return fmt.Errorf("tail entity: %w", err)
	}
	props, err := encodeProperties(t.Properties)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (source_entity_id, target_entity_id, relation_type, properties, document_id)
		VALUES (?, ?, ?, ?, ?)
	`, headID, tailID, t.Relation, props, docID)
	return err
}

// upsertEntity returns the id of the (name, type) entity, creating it and
// its name vector when missing.
func upsertEntity(ctx context.Context, tx *sql.Tx, name, entityType string, props map[string]any) (int64, error) {
	encoded, err := encodeProperties(props)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM entities WHERE name = ? AND entity_type = ?",
		name, entityType).Scan(&id)
	switch {
	case err == nil:
		if len(props) > 0 {
			if _, err := tx.ExecContext(ctx,
				"UPDATE entities SET properties = json_patch(properties, ?) WHERE id = ?",
				encoded, id); err != nil {
				return 0, err
			}
		}
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO entities (name, entity_type, properties) VALUES (?, ?, ?)",
		name, entityType, encoded)
	if err != nil {
		return 0, err
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO vec_entities (entity_id, embedding) VALUES (?, ?)",
		id, serializeFloat32(NameVector(name))); err != nil {
		return 0, fmt.Errorf("indexing entity name: %w", err)
	}
	return id, nil
}

// GetEntity returns the entity with the given type and name.
func (s *Store) GetEntity(ctx context.Context, entityType, name string) (*Entity, error) {
	e := &Entity{}
	var props string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, entity_type, properties FROM entities WHERE name = ? AND entity_type = ?",
		name, entityType).Scan(&e.ID, &e.Name, &e.Type, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrEntityNotFound, entityType, name)
	}
	if err != nil {
		return nil, err
	}
	if e.Properties, err = decodeProperties(props); err != nil {
		return nil, err
	}
	return e, nil
}

const edgeSelect = `
	SELECT r.id, r.source_entity_id, r.target_entity_id,
		s.name, s.entity_type, r.relation_type, t.name, t.entity_type, r.properties
	FROM relationships r
	JOIN entities s ON s.id = r.source_entity_id
	JOIN entities t ON t.id = r.target_entity_id`

type storedEdge struct {
	id, source, target int64
	Edge
}

func scanEdges(rows *sql.Rows) ([]storedEdge, error) {
	defer rows.Close()
	var out []storedEdge
	for rows.Next() {
		var e storedEdge
		var props string
		if err := rows.Scan(&e.id, &e.source, &e.target,
			&e.Head, &e.HeadType, &e.Relation, &e.Tail, &e.TailType, &props); err != nil {
			return nil, err
		}
		var err error
		if e.Properties, err = decodeProperties(props); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryByEntity walks outward from every entity called name, level by
// level, and returns each relationship met within depth hops once.
func (s *Store) QueryByEntity(ctx context.Context, name string, depth int) ([]Edge, error) {
	if err := checkDepth(depth, MaxQueryDepth); err != nil {
		return nil, err
	}

	seeds, err := s.entityIDsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", name, err)
	}

	edges := make([]Edge, 0)
	visited := make(map[int64]bool, len(seeds))
	for _, id := range seeds {
		visited[id] = true
	}
	seenEdge := make(map[int64]bool)
	frontier := seeds

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []int64
		found, err := s.edgesTouching(ctx, frontier)
		if err != nil {
			return nil, err
		}
		for _, e := range found {
			if seenEdge[e.id] {
				continue
			}
			seenEdge[e.id] = true
			edges = append(edges, e.Edge)
			for _, nid := range []int64{e.source, e.target} {
				if !visited[nid] {
					visited[nid] = true
					next = append(next, nid)
				}
			}
		}
		frontier = next
	}
	return edges, nil
}

func (s *Store) entityIDsByName(ctx context.Context, name string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM entities WHERE name = ? ORDER BY id", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// edgesTouching loads relationships with either endpoint in ids. It queries
// in batches to avoid overly large IN clauses.
func (s *Store) edgesTouching(ctx context.Context, ids []int64) ([]storedEdge, error) {
	const batchSize = 200
	var out []storedEdge
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := "?" + repeatPlaceholders(len(batch)-1)
		args := make([]interface{}, 0, 2*len(batch))
		for _, id := range batch {
			args = append(args, id)
		}
		args = append(args, args...)

		rows, err := s.db.QueryContext(ctx, edgeSelect+`
			WHERE r.source_entity_id IN (`+placeholders+`)
			   OR r.target_entity_id IN (`+placeholders+`)
			ORDER BY r.id`, args...)
		if err != nil {
			return nil, fmt.Errorf("loading edges: %w", err)
		}
		found, err := scanEdges(rows)
		if err != nil {
			return nil, fmt.Errorf("loading edges: %w", err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// QueryPath loads the graph into memory and searches it for paths.
func (s *Store) QueryPath(ctx context.Context, start, end string, maxDepth int) ([]Path, error) {
	if err := checkDepth(maxDepth, MaxPathDepth); err != nil {
		return nil, err
	}
	starts, err := s.entityIDsByName(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", start, err)
	}
	ends, err := s.entityIDsByName(ctx, end)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", end, err)
	}
	if len(starts) == 0 || len(ends) == 0 {
		return []Path{}, nil
	}

	rows, err := s.db.QueryContext(ctx, edgeSelect+" ORDER BY r.id")
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	all, err := scanEdges(rows)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}

	g := newGraph(all)
	return g.paths(ctx, starts, ends, maxDepth, MaxPaths)
}

// Statistics counts entities and relationships grouped by type.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	st := newStatistics()
	groups := []struct {
		query string
		add   func(string, int)
	}{
		{"SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type", st.addEntity},
		{"SELECT relation_type, COUNT(*) FROM relationships GROUP BY relation_type", st.addRelation},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", g.query, err)
		}
		for rows.Next() {
			var label string
			var n int
			if err := rows.Scan(&label, &n); err != nil {
				rows.Close()
				return nil, err
			}
			g.add(label, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Clear removes every entity, relationship and document record.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM relationships",
			"DELETE FROM vec_entities",
			"DELETE FROM entities",
			"DELETE FROM documents",
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("%s: %w", q, err)
			}
		}
		return nil
	})
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (path, filename, format, content_hash, status, sentences, triples)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			sentences = excluded.sentences,
			triples = excluded.triples,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status,
		doc.Sentences, doc.Triples).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocumentByPath returns sql.ErrNoRows when the path was never processed.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, sentences, triples, created_at, updated_at
		FROM documents WHERE path = ?
	`, path).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format, &doc.ContentHash,
		&doc.Status, &doc.Sentences, &doc.Triples, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents, most recent first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, sentences, triples, created_at, updated_at
		FROM documents ORDER BY updated_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.Format, &d.ContentHash,
			&d.Status, &d.Sentences, &d.Triples, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus records the outcome of processing a document.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string, sentences, triples int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, sentences = ?, triples = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, sentences, triples, id)
	return err
}

// DBStats returns row counts per table.
func (s *Store) DBStats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM entities", &stats.Entities},
		{"SELECT COUNT(*) FROM relationships", &stats.Relationships},
		{"SELECT COUNT(*) FROM vec_entities", &stats.Vectors},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- Helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

func encodeProperties(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encoding properties: %w", err)
	}
	return string(b), nil
}

func decodeProperties(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(s), &props); err != nil {
		return nil, fmt.Errorf("decoding properties: %w", err)
	}
	return props, nil
}

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

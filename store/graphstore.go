package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLabel is returned when an entity type or relation type is not
	// a plain identifier. Graph labels are interpolated into queries and can
	// never carry arbitrary text.
	ErrInvalidLabel = errors.New("store: invalid label")

	// ErrEntityNotFound is returned by GetEntity when no entity matches.
	ErrEntityNotFound = errors.New("store: entity not found")

	// ErrInvalidDepth is returned for traversal depths outside the allowed range.
	ErrInvalidDepth = errors.New("store: invalid depth")
)

const (
	// MaxPathDepth bounds QueryPath.
	MaxPathDepth = 5
	// MaxQueryDepth bounds QueryByEntity.
	MaxQueryDepth = 3
	// MaxPaths is the number of paths QueryPath returns at most.
	MaxPaths = 10
)

// GraphStore is the knowledge-graph collaborator. Both the SQLite Store and
// the Neo4jStore implement it.
type GraphStore interface {
	// AddTriple looks up or creates the head and tail entities by
	// (type, name) and always creates a new relationship between them.
	AddTriple(ctx context.Context, t TripleInput) error
	// AddEntity upserts an entity by (name, type) and returns its id.
	AddEntity(ctx context.Context, e Entity) (int64, error)
	GetEntity(ctx context.Context, entityType, name string) (*Entity, error)
	// QueryByEntity returns the edges reachable within depth hops of any
	// entity called name, in either direction.
	QueryByEntity(ctx context.Context, name string, depth int) ([]Edge, error)
	// QueryPath returns up to MaxPaths simple undirected paths between
	// entities called start and end.
	QueryPath(ctx context.Context, start, end string, maxDepth int) ([]Path, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Clear(ctx context.Context) error
	Backend() string
	Close() error
}

// TripleInput is one relationship to insert with its endpoint entities.
type TripleInput struct {
	Head       string         `json:"head"`
	HeadType   string         `json:"head_type"`
	Relation   string         `json:"relation"`
	Tail       string         `json:"tail"`
	TailType   string         `json:"tail_type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Entity is a typed graph node.
type Entity struct {
	ID         int64          `json:"id,omitempty"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a stored relationship with both endpoints resolved. Head is
// always the source of the relationship.
type Edge struct {
	Head       string         `json:"head"`
	HeadType   string         `json:"head_type"`
	Relation   string         `json:"relation"`
	Tail       string         `json:"tail"`
	TailType   string         `json:"tail_type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Path is a chain of entities joined by relationships. Edges[i] connects
// Nodes[i] and Nodes[i+1] in either direction.
type Path struct {
	Nodes []Entity `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Len is the number of hops.
func (p Path) Len() int { return len(p.Edges) }

// Statistics counts entities per type and relationships per type.
type Statistics struct {
	Entities       map[string]int `json:"entities"`
	Relations      map[string]int `json:"relations"`
	TotalEntities  int            `json:"total_entities"`
	TotalRelations int            `json:"total_relations"`
}

func newStatistics() *Statistics {
	return &Statistics{Entities: make(map[string]int), Relations: make(map[string]int)}
}

func (st *Statistics) addEntity(label string, n int) {
	st.Entities[label] += n
	st.TotalEntities += n
}

func (st *Statistics) addRelation(label string, n int) {
	st.Relations[label] += n
	st.TotalRelations += n
}

var labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidLabel reports whether s can be used as an entity or relation type.
func ValidLabel(s string) bool { return labelRe.MatchString(s) }

func checkLabel(kind, s string) error {
	if !ValidLabel(s) {
		return fmt.Errorf("%w: %s %q", ErrInvalidLabel, kind, s)
	}
	return nil
}

// Validate checks names and labels before anything is written.
func (t TripleInput) Validate() error {
	if strings.TrimSpace(t.Head) == "" || strings.TrimSpace(t.Tail) == "" {
		return errors.New("store: triple head and tail are required")
	}
	if err := checkLabel("head type", t.HeadType); err != nil {
		return err
	}
	if err := checkLabel("tail type", t.TailType); err != nil {
		return err
	}
	return checkLabel("relation", t.Relation)
}

// ValidateTriples validates every triple and names the first bad one.
func ValidateTriples(triples []TripleInput) error {
	for i, t := range triples {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("triple %d: %w", i, err)
		}
	}
	return nil
}

func (e Entity) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("store: entity name is required")
	}
	return checkLabel("entity type", e.Type)
}

func checkDepth(depth, max int) error {
	if depth < 1 || depth > max {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDepth, depth, max)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds the connection settings of a Neo4j server.
type Neo4jConfig struct {
	URI      string `json:"uri" mapstructure:"uri"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DefaultNeo4jConfig matches a local development server.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:      "bolt://localhost:7687",
		User:     "neo4j",
		Password: "password",
	}
}

// Neo4jStore is the GraphStore backed by a Neo4j server. Entity types are
// node labels and relation types are relationship types.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ GraphStore = (*Neo4jStore)(nil)

// NewNeo4jStore connects to the server and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", cfg.URI, err)
	}
	slog.Info("connected to neo4j", "uri", cfg.URI)
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

func (n *Neo4jStore) Backend() string { return "neo4j" }

func (n *Neo4jStore) Close() error {
	return n.driver.Close(context.Background())
}

func (n *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: n.database})
}

func addTripleCypher(t TripleInput) string {
	return fmt.Sprintf(`
		MERGE (h:%s {name: $head})
		MERGE (t:%s {name: $tail})
		CREATE (h)-[r:%s]->(t)
		SET r = $props`,
		quoteLabel(t.HeadType), quoteLabel(t.TailType), quoteLabel(t.Relation))
}

func (n *Neo4jStore) AddTriple(ctx context.Context, t TripleInput) error {
	if err := t.Validate(); err != nil {
		return err
	}
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, addTripleCypher(t), map[string]interface{}{
		"head":  t.Head,
		"tail":  t.Tail,
		"props": neo4jProperties(t.Properties),
	})
	if err != nil {
		return fmt.Errorf("adding triple: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("adding triple: %w", err)
	}
	return nil
}

// AddTriples writes all triples in one managed transaction.
func (n *Neo4jStore) AddTriples(ctx context.Context, triples []TripleInput) error {
	if err := ValidateTriples(triples); err != nil {
		return err
	}
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, t := range triples {
			result, err := tx.Run(ctx, addTripleCypher(t), map[string]any{
				"head":  t.Head,
				"tail":  t.Tail,
				"props": neo4jProperties(t.Properties),
			})
			if err != nil {
				return nil, fmt.Errorf("triple %d: %w", i, err)
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, fmt.Errorf("triple %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("adding triples: %w", err)
	}
	return nil
}

func (n *Neo4jStore) AddEntity(ctx context.Context, e Entity) (int64, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MERGE (n:%s {name: $name})
		SET n += $props
		RETURN id(n) AS id`, quoteLabel(e.Type))
	result, err := session.Run(ctx, query, map[string]interface{}{
		"name":  e.Name,
		"props": neo4jProperties(e.Properties),
	})
	if err != nil {
		return 0, fmt.Errorf("adding entity: %w", err)
	}
	if !result.Next(ctx) {
		return 0, fmt.Errorf("adding entity %q: no id returned", e.Name)
	}
	id, _ := result.Record().Get("id")
	n64, _ := id.(int64)
	return n64, result.Err()
}

func (n *Neo4jStore) GetEntity(ctx context.Context, entityType, name string) (*Entity, error) {
	if err := checkLabel("entity type", entityType); err != nil {
		return nil, err
	}
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf("MATCH (n:%s {name: $name}) RETURN n LIMIT 1", quoteLabel(entityType))
	result, err := session.Run(ctx, query, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %q", ErrEntityNotFound, entityType, name)
	}
	v, _ := result.Record().Get("n")
	node, ok := v.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("getting entity: unexpected value %T", v)
	}
	e := nodeEntity(node)
	return &e, nil
}

func (n *Neo4jStore) QueryByEntity(ctx context.Context, name string, depth int) ([]Edge, error) {
	if err := checkDepth(depth, MaxQueryDepth); err != nil {
		return nil, err
	}
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n {name: $name})-[rels*1..%d]-()
		UNWIND rels AS r
		WITH DISTINCT r
		RETURN startNode(r) AS s, r, endNode(r) AS t`, depth)
	result, err := session.Run(ctx, query, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", name, err)
	}

	edges := make([]Edge, 0)
	for result.Next(ctx) {
		record := result.Record()
		sv, _ := record.Get("s")
		rv, _ := record.Get("r")
		tv, _ := record.Get("t")
		s, ok1 := sv.(neo4j.Node)
		r, ok2 := rv.(neo4j.Relationship)
		t, ok3 := tv.(neo4j.Node)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		edges = append(edges, relationshipEdge(s, r, t))
	}
	return edges, result.Err()
}

func (n *Neo4jStore) QueryPath(ctx context.Context, start, end string, maxDepth int) ([]Path, error) {
	if err := checkDepth(maxDepth, MaxPathDepth); err != nil {
		return nil, err
	}
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH path = (a {name: $start})-[*1..%d]-(b {name: $end})
		WHERE all(x IN nodes(path) WHERE single(y IN nodes(path) WHERE y = x))
		RETURN path
		ORDER BY length(path)
		LIMIT %d`, maxDepth, MaxPaths)
	result, err := session.Run(ctx, query, map[string]interface{}{"start": start, "end": end})
	if err != nil {
		return nil, fmt.Errorf("querying paths %q -> %q: %w", start, end, err)
	}

	paths := make([]Path, 0)
	for result.Next(ctx) {
		v, _ := result.Record().Get("path")
		p, ok := v.(neo4j.Path)
		if !ok {
			continue
		}
		paths = append(paths, convertPath(p))
	}
	return paths, result.Err()
}

func (n *Neo4jStore) Statistics(ctx context.Context) (*Statistics, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	st := newStatistics()
	groups := []struct {
		query string
		add   func(string, int)
	}{
		{"MATCH (n) RETURN labels(n)[0] AS label, count(n) AS count", st.addEntity},
		{"MATCH ()-[r]->() RETURN type(r) AS label, count(r) AS count", st.addRelation},
	}
	for _, g := range groups {
		result, err := session.Run(ctx, g.query, nil)
		if err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
		for result.Next(ctx) {
			record := result.Record()
			lv, _ := record.Get("label")
			cv, _ := record.Get("count")
			label, _ := lv.(string)
			count, _ := cv.(int64)
			g.add(label, int(count))
		}
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
	}
	return st, nil
}

func (n *Neo4jStore) Clear(ctx context.Context) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	if err != nil {
		return fmt.Errorf("clearing graph: %w", err)
	}
	_, err = result.Consume(ctx)
	return err
}

// quoteLabel backquotes an already validated label.
func quoteLabel(label string) string {
	return "`" + label + "`"
}

// neo4jProperties converts values Neo4j cannot store as properties (maps,
// mixed lists) into JSON strings.
func neo4jProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case nil:
		case string, bool, int, int64, float64, float32, []string, []int64, []float64:
			out[k] = val
		case []any:
			if strs, ok := stringSlice(val); ok {
				out[k] = strs
				continue
			}
			b, _ := json.Marshal(val)
			out[k] = string(b)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func stringSlice(vals []any) ([]string, bool) {
	out := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func nodeEntity(node neo4j.Node) Entity {
	e := Entity{}
	if len(node.Labels) > 0 {
		e.Type = node.Labels[0]
	}
	for k, v := range node.Props {
		if k == "name" {
			e.Name, _ = v.(string)
			continue
		}
		if e.Properties == nil {
			e.Properties = make(map[string]any)
		}
		e.Properties[k] = v
	}
	return e
}

func relationshipEdge(start neo4j.Node, r neo4j.Relationship, end neo4j.Node) Edge {
	s, t := nodeEntity(start), nodeEntity(end)
	e := Edge{
		Head:     s.Name,
		HeadType: s.Type,
		Relation: r.Type,
		Tail:     t.Name,
		TailType: t.Type,
	}
	if len(r.Props) > 0 {
		e.Properties = r.Props
	}
	return e
}

func convertPath(p neo4j.Path) Path {
	byID := make(map[string]neo4j.Node, len(p.Nodes))
	out := Path{
		Nodes: make([]Entity, len(p.Nodes)),
		Edges: make([]Edge, 0, len(p.Relationships)),
	}
	for i, node := range p.Nodes {
		byID[node.ElementId] = node
		out.Nodes[i] = nodeEntity(node)
	}
	for _, r := range p.Relationships {
		out.Edges = append(out.Edges, relationshipEdge(byID[r.StartElementId], r, byID[r.EndElementId]))
	}
	return out
}

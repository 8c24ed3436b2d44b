package store

import "context"

// graph is an in-memory undirected view over stored relationships, built
// once per path query.
type graph struct {
	edges      []storedEdge
	nodes      map[int64]Entity
	neighbours map[int64][]int // entity id -> indexes into edges
}

func newGraph(edges []storedEdge) *graph {
	g := &graph{
		edges:      edges,
		nodes:      make(map[int64]Entity),
		neighbours: make(map[int64][]int),
	}
	for i, e := range edges {
		g.nodes[e.source] = Entity{ID: e.source, Name: e.Head, Type: e.HeadType}
		g.nodes[e.target] = Entity{ID: e.target, Name: e.Tail, Type: e.TailType}
		g.neighbours[e.source] = append(g.neighbours[e.source], i)
		if e.target != e.source {
			g.neighbours[e.target] = append(g.neighbours[e.target], i)
		}
	}
	return g
}

// paths enumerates simple paths from any start to any end, shortest first,
// by running a depth-limited DFS for each length up to maxDepth. It stops
// once limit paths are found.
func (g *graph) paths(ctx context.Context, starts, ends []int64, maxDepth, limit int) ([]Path, error) {
	isEnd := make(map[int64]bool, len(ends))
	for _, id := range ends {
		isEnd[id] = true
	}

	out := make([]Path, 0)
	onPath := make(map[int64]bool)
	var nodeTrail []int64
	var edgeTrail []int

	var dfs func(at int64, remaining int) error
	dfs = func(at int64, remaining int) error {
		if len(out) >= limit {
			return nil
		}
		if remaining == 0 {
			if isEnd[at] {
				out = append(out, g.buildPath(nodeTrail, edgeTrail))
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, ei := range g.neighbours[at] {
			e := g.edges[ei]
			next := e.target
			if next == at {
				next = e.source
			}
			if onPath[next] {
				continue
			}
			onPath[next] = true
			nodeTrail = append(nodeTrail, next)
			edgeTrail = append(edgeTrail, ei)
			err := dfs(next, remaining-1)
			nodeTrail = nodeTrail[:len(nodeTrail)-1]
			edgeTrail = edgeTrail[:len(edgeTrail)-1]
			onPath[next] = false
			if err != nil {
				return err
			}
		}
		return nil
	}

	for depth := 1; depth <= maxDepth && len(out) < limit; depth++ {
		for _, s := range starts {
			if _, ok := g.nodes[s]; !ok {
				continue
			}
			onPath[s] = true
			nodeTrail = append(nodeTrail[:0], s)
			edgeTrail = edgeTrail[:0]
			err := dfs(s, depth)
			onPath[s] = false
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (g *graph) buildPath(nodeIDs []int64, edgeIdx []int) Path {
	p := Path{
		Nodes: make([]Entity, len(nodeIDs)),
		Edges: make([]Edge, len(edgeIdx)),
	}
	for i, id := range nodeIDs {
		p.Nodes[i] = g.nodes[id]
	}
	for i, ei := range edgeIdx {
		p.Edges[i] = g.edges[ei].Edge
	}
	return p
}

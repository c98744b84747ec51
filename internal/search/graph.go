package search

// Edge is a weighted, labelled directed edge. A nil Cost means 1.
type Edge struct {
	From  string   `yaml:"from" json:"from"`
	To    string   `yaml:"to" json:"to"`
	Label string   `yaml:"label,omitempty" json:"label,omitempty"`
	Cost  *float64 `yaml:"cost,omitempty" json:"cost,omitempty"`
}

// Graph is an explicit directed graph problem over string node names.
// Successors follow edge insertion order. An edge with no label uses the
// target node name as its action.
type Graph struct {
	Start []string
	Goals map[string]bool
	adj   map[string][]Step[string, string]
}

// NewGraph builds a graph problem from edges.
func NewGraph(start []string, goals []string, edges []Edge) *Graph {
	g := &Graph{
		Start: start,
		Goals: make(map[string]bool, len(goals)),
		adj:   make(map[string][]Step[string, string]),
	}
	for _, goal := range goals {
		g.Goals[goal] = true
	}
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// AddEdge appends an edge.
func (g *Graph) AddEdge(e Edge) {
	action := e.Label
	if action == "" {
		action = e.To
	}
	cost := 1.0
	if e.Cost != nil {
		cost = *e.Cost
	}
	g.adj[e.From] = append(g.adj[e.From], Step[string, string]{Action: action, State: e.To, Cost: cost})
}

// Initial returns the start nodes.
func (g *Graph) Initial() []string { return g.Start }

// Successors returns the outgoing edges of s in insertion order.
func (g *Graph) Successors(s string) []Step[string, string] { return g.adj[s] }

// IsGoal reports whether s is a goal node.
func (g *Graph) IsGoal(s string) bool { return g.Goals[s] }

// Key returns the node name.
func (g *Graph) Key(s string) string { return s }

var _ Problem[string, string] = (*Graph)(nil)

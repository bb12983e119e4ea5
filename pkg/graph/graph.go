// Package graph builds and walks the ordered DAG a Pipeline executes a
// frame over: a mapping from node name to its element and successor
// names, plus an ordered list of head nodes (spec.md §4.2).
package graph

import (
	"fmt"

	"github.com/aikoservices/aiko/pkg/sexp"
)

// Node is one named vertex in the graph: the element implementation
// descriptor it wraps and the names of the nodes it feeds into.
type Node struct {
	Name       string
	Successors []string
}

// Graph is the DAG built from a PipelineDefinition's sub-graph
// S-expressions.
type Graph struct {
	nodes map[string]*Node
	heads []string
}

// Build parses each sub-graph S-expression of the form "(A B (C D))" —
// meaning A→B, A→C, C→D — into a single Graph. Heads are the first token
// of each sub-graph, in order. A node referenced as a successor before
// its own sub-graph defines it is allowed (forward reference); the
// definition always wins. Every referenced name becomes a node; Build
// itself only rejects an empty sub-graph or an empty successor token.
// Whether each node has an element definition is checked by the caller
// (pipeline.New).
func Build(subGraphs []string) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node)}

	for _, sg := range subGraphs {
		if err := g.addSubGraph(sg); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (g *Graph) addSubGraph(sg string) error {
	head, params := sexp.Parse(sg)
	if head == "" {
		return fmt.Errorf("graph: empty sub-graph %q", sg)
	}

	g.ensureNode(head)
	g.heads = append(g.heads, head)

	for _, p := range params {
		if children := sexp.Sublist(p); children != nil {
			for _, c := range children {
				if c == "" {
					return fmt.Errorf("graph: undefined successor referenced in %q", sg)
				}
			}
			if len(children) == 0 {
				continue
			}
			g.link(head, children[0])
			for i := 0; i+1 < len(children); i++ {
				g.link(children[i], children[i+1])
			}
			continue
		}
		if p == "" {
			return fmt.Errorf("graph: undefined successor referenced in %q", sg)
		}
		g.link(head, p)
	}

	return nil
}

func (g *Graph) ensureNode(name string) *Node {
	n, ok := g.nodes[name]
	if !ok {
		n = &Node{Name: name}
		g.nodes[name] = n
	}
	return n
}

func (g *Graph) link(from, to string) {
	g.ensureNode(from)
	g.ensureNode(to)
	n := g.nodes[from]
	for _, s := range n.Successors {
		if s == to {
			return
		}
	}
	n.Successors = append(n.Successors, to)
}

// Heads returns the head node names, in sub-graph definition order.
func (g *Graph) Heads() []string {
	return append([]string(nil), g.heads...)
}

// Node looks up a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Len reports the number of distinct nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Walk visits every node exactly once, depth-first from the heads in
// order, never visiting a node before at least one of its predecessors
// has already been visited via the head it was reached from. visit
// returning an error aborts the walk.
func (g *Graph) Walk(visit func(name string) error) error {
	visited := make(map[string]bool, len(g.nodes))
	var walk func(name string) error
	walk = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true
		if err := visit(name); err != nil {
			return err
		}
		n := g.nodes[name]
		for _, s := range n.Successors {
			if err := walk(s); err != nil {
				return err
			}
		}
		return nil
	}

	for _, h := range g.heads {
		if err := walk(h); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the node names in the same sequence Walk would visit
// them, as a convenience for callers that want the full ordering
// up-front (e.g. start_stream/stop_stream iteration).
func (g *Graph) Order() []string {
	var order []string
	_ = g.Walk(func(name string) error {
		order = append(order, name)
		return nil
	})
	return order
}

// Package graph implements the per-instance computation graph runtime.
//
// A Graph executes nodes eagerly: calling a node's Forward computes its value
// immediately and appends the node to the graph's execution list. Because a
// node can only be forwarded after its inputs, the execution list is always in
// dependency order, and Backward simply walks it in reverse.
//
// Nodes are allocated once (usually as slices sized to the maximum instance
// length), initialized with their dimension, dropout rate and buffers drawn
// from a MemoryPool, and reused for every instance:
//
//	var hidden []graph.Uni
//	hidden = make([]graph.Uni, maxLen)
//	for i := range hidden {
//	    hidden[i].SetParam(params.Hidden)
//	    hidden[i].Init(200, 0.25, pool)
//	}
//
//	g := graph.New(seed)
//	g.ClearValue(true)
//	for i := 0; i < n; i++ {
//	    hidden[i].Forward(g, &inputs[i])
//	}
//	...
//	g.Backward()
package graph

import (
	"math/rand/v2"
)

// Node is a vertex of the computation graph.
//
// All nodes carry a value vector and a gradient vector of the same dimension.
// Gradients are accumulated by consumers during Backward; a node's own
// backward rule then distributes its gradient to its inputs and parameters.
type Node interface {
	// Dim returns the dimension of the node value.
	Dim() int
	// Value returns the value vector computed by the last Forward.
	Value() []float64
	// Gradient returns the accumulated gradient vector.
	Gradient() []float64

	base() *node
	backward(g *Graph)
}

// Graph records the nodes executed for one instance.
type Graph struct {
	train bool
	rng   *rand.Rand
	execs []Node
}

// New creates a graph whose dropout masks are drawn from a source seeded with seed.
func New(seed uint64) *Graph {
	return &Graph{
		rng:   rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d)),
		execs: make([]Node, 0, 256),
	}
}

// ClearValue resets every node executed since the previous call and starts a
// new pass. train selects training behavior (dropout masks are sampled).
func (g *Graph) ClearValue(train bool) {
	for _, n := range g.execs {
		n.base().clear()
	}
	g.execs = g.execs[:0]
	g.train = train
}

// Train reports whether the current pass runs in training mode.
func (g *Graph) Train() bool {
	return g.train
}

// Size returns the number of nodes executed in the current pass.
func (g *Graph) Size() int {
	return len(g.execs)
}

// Backward propagates gradients from every executed node to its inputs, in
// reverse execution order. The caller seeds the gradient of the output node.
func (g *Graph) Backward() {
	for i := len(g.execs) - 1; i >= 0; i-- {
		g.execs[i].backward(g)
	}
}

// record appends n to the execution list.
func (g *Graph) record(n Node) {
	b := n.base()
	if b.executed {
		panic("graph: node forwarded twice in one pass")
	}
	b.executed = true
	g.execs = append(g.execs, n)
}

// Nodes returns pointers to the first n elements of s as a []Node.
// It is the bridge between node pools stored by value and consumers that take
// variable-length node lists (windows, poolings).
func Nodes[T any, PT interface {
	*T
	Node
}](s []T, n int) []Node {
	out := make([]Node, n)
	for i := 0; i < n; i++ {
		out[i] = PT(&s[i])
	}
	return out
}

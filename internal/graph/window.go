package graph

import "fmt"

// Window concatenates every position of a sequence with its neighbors within
// a context radius. Output i is [x(i-c), ..., x(i), ..., x(i+c)], with zero
// buckets standing in for positions outside the sequence.
type Window struct {
	Outputs []Concat
	context int
	inDim   int
	bucket  Bucket
	parts   []Node
}

// Resize sets the number of output nodes (the maximum sequence length).
// Must be called before Init.
func (w *Window) Resize(n int) {
	w.Outputs = make([]Concat, n)
}

// Init allocates outputs of dimension inDim*(2*context+1).
func (w *Window) Init(inDim, context int, pool *MemoryPool) {
	if context < 0 {
		panic(fmt.Sprintf("graph: negative window context %d", context))
	}
	w.inDim = inDim
	w.context = context
	w.bucket.Init(inDim, pool)
	for i := range w.Outputs {
		w.Outputs[i].Init(w.OutDim(), -1, pool)
	}
	w.parts = make([]Node, 2*context+1)
}

// OutDim returns the dimension of every output.
func (w *Window) OutDim() int {
	return w.inDim * (2*w.context + 1)
}

// Context returns the window radius.
func (w *Window) Context() int {
	return w.context
}

// Forward builds one output per input.
func (w *Window) Forward(g *Graph, ins []Node) {
	if len(ins) > len(w.Outputs) {
		panic(fmt.Sprintf("graph: window over %d inputs exceeds capacity %d", len(ins), len(w.Outputs)))
	}
	w.bucket.Forward(g)
	for i := range ins {
		for k := -w.context; k <= w.context; k++ {
			j := i + k
			if j < 0 || j >= len(ins) {
				w.parts[k+w.context] = &w.bucket
			} else {
				w.parts[k+w.context] = ins[j]
			}
		}
		w.Outputs[i].Forward(g, w.parts...)
	}
}

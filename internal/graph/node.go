package graph

import "fmt"

// node is the state shared by every node kind.
type node struct {
	dim      int
	val      []float64
	grad     []float64
	dropProb float64
	mask     []float64 // inverted-dropout mask, allocated when dropProb > 0
	dropped  bool      // mask applied in the current pass
	executed bool
}

func (n *node) base() *node { return n }

// Dim returns the dimension of the node value.
func (n *node) Dim() int { return n.dim }

// Value returns the value vector.
func (n *node) Value() []float64 { return n.val }

// Gradient returns the gradient vector.
func (n *node) Gradient() []float64 { return n.grad }

// init allocates buffers. dropProb <= 0 disables dropout.
func (n *node) init(dim int, dropProb float64, pool *MemoryPool) {
	if dim <= 0 {
		panic(fmt.Sprintf("graph: invalid node dimension %d", dim))
	}
	if dropProb >= 1 {
		panic(fmt.Sprintf("graph: dropout probability %v must be < 1", dropProb))
	}
	n.dim = dim
	n.val = pool.Alloc(dim)
	n.grad = pool.Alloc(dim)
	n.dropProb = dropProb
	if dropProb > 0 {
		n.mask = pool.Alloc(dim)
	}
}

func (n *node) clear() {
	clear(n.val)
	clear(n.grad)
	n.dropped = false
	n.executed = false
}

func (n *node) checkInit() {
	if n.val == nil {
		panic("graph: node used before Init")
	}
}

// forwardDropout applies an inverted-dropout mask to the value in training
// mode; kept units are scaled by 1/(1-p) so decoding needs no rescaling.
func (n *node) forwardDropout(g *Graph) {
	if n.dropProb <= 0 || !g.train {
		return
	}
	keep := 1 - n.dropProb
	for i := range n.val {
		if g.rng.Float64() < n.dropProb {
			n.mask[i] = 0
		} else {
			n.mask[i] = 1 / keep
		}
		n.val[i] *= n.mask[i]
	}
	n.dropped = true
}

// backwardDropout routes the gradient through the mask used in forward.
func (n *node) backwardDropout() {
	if !n.dropped {
		return
	}
	for i := range n.grad {
		n.grad[i] *= n.mask[i]
	}
}

// Bucket is a zero node. It stands in for empty input groups so that
// fixed-arity consumers always receive a value, and pads windows at sequence
// borders.
type Bucket struct {
	node
}

// Init allocates the bucket.
func (b *Bucket) Init(dim int, pool *MemoryPool) {
	b.init(dim, 0, pool)
}

// Forward emits zeros. Repeated calls within a pass are no-ops, so a
// bucket can be shared by several consumers.
func (b *Bucket) Forward(g *Graph) {
	b.checkInit()
	if b.executed {
		return
	}
	clear(b.val)
	g.record(b)
}

func (b *Bucket) backward(*Graph) {}

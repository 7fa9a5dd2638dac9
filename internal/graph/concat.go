package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Concat joins the values of its inputs into one vector.
type Concat struct {
	node
	ins []Node
}

// Init allocates the node. dim must equal the sum of the input dimensions.
func (c *Concat) Init(dim int, dropProb float64, pool *MemoryPool) {
	c.init(dim, dropProb, pool)
}

// Forward copies the inputs side by side.
func (c *Concat) Forward(g *Graph, ins ...Node) {
	c.checkInit()
	total := 0
	for _, in := range ins {
		total += in.Dim()
	}
	if total != c.dim {
		panic(fmt.Sprintf("graph: concat inputs sum to %d, node dimension is %d", total, c.dim))
	}
	c.ins = append(c.ins[:0], ins...)

	off := 0
	for _, in := range ins {
		off += copy(c.val[off:], in.Value())
	}
	c.forwardDropout(g)
	g.record(c)
}

func (c *Concat) backward(*Graph) {
	c.backwardDropout()
	off := 0
	for _, in := range c.ins {
		d := in.Dim()
		floats.Add(in.Gradient(), c.grad[off:off+d])
		off += d
	}
}

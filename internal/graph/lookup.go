package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nncnn/internal/nn"
)

// Lookup fetches the embedding row of a string key from a LookupTable.
//
// Keys missing from the table alphabet resolve to the unknown row; when the
// alphabet has no unknown entry the node emits zeros and propagates nothing.
type Lookup struct {
	node
	table *nn.LookupTable
	id    int
}

// SetParam binds the embedding table. Must be called before Init.
func (l *Lookup) SetParam(table *nn.LookupTable) {
	l.table = table
}

// Init allocates the node. dim must equal the table dimension.
func (l *Lookup) Init(dim int, dropProb float64, pool *MemoryPool) {
	if l.table == nil {
		panic("graph: Lookup.Init before SetParam")
	}
	if l.table.Dim != dim {
		panic(fmt.Sprintf("graph: lookup dimension %d does not match table dimension %d", dim, l.table.Dim))
	}
	l.init(dim, dropProb, pool)
}

// Forward looks up key.
func (l *Lookup) Forward(g *Graph, key string) {
	l.checkInit()
	l.id = l.table.Index(key)
	if l.id >= 0 {
		copy(l.val, l.table.E.Row(l.id))
	}
	l.forwardDropout(g)
	g.record(l)
}

func (l *Lookup) backward(*Graph) {
	if l.id < 0 || !l.table.FineTune {
		return
	}
	l.backwardDropout()
	floats.Add(l.table.E.GradRow(l.id), l.grad)
}

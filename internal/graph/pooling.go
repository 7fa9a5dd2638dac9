package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

type poolMode int

const (
	maxPool poolMode = iota
	minPool
	avgPool
)

func (m poolMode) String() string {
	switch m {
	case maxPool:
		return "MaxPool"
	case minPool:
		return "MinPool"
	default:
		return "AvgPool"
	}
}

// pooling reduces a variable-length node list to one vector, element-wise.
type pooling struct {
	node
	capacity int
	ins      []Node
	index    []int // winning input per element (max/min)
}

// SetParam sets the maximum number of inputs. Must be called before Init.
func (p *pooling) SetParam(maxSize int) {
	p.capacity = maxSize
}

// Init allocates the node.
func (p *pooling) Init(dim int, dropProb float64, pool *MemoryPool) {
	p.init(dim, dropProb, pool)
	p.ins = make([]Node, 0, max(p.capacity, 1))
	p.index = make([]int, dim)
}

func (p *pooling) forward(g *Graph, self Node, mode poolMode, ins []Node) {
	p.checkInit()
	if len(ins) == 0 {
		panic(fmt.Sprintf("graph: %s over an empty input list", mode))
	}
	if p.capacity > 0 && len(ins) > p.capacity {
		panic(fmt.Sprintf("graph: %s over %d inputs exceeds capacity %d", mode, len(ins), p.capacity))
	}
	for i, in := range ins {
		if in.Dim() != p.dim {
			panic(fmt.Sprintf("graph: %s input %d has dimension %d, want %d", mode, i, in.Dim(), p.dim))
		}
	}
	p.ins = append(p.ins[:0], ins...)

	switch mode {
	case avgPool:
		for _, in := range ins {
			floats.Add(p.val, in.Value())
		}
		floats.Scale(1/float64(len(ins)), p.val)
	default:
		copy(p.val, ins[0].Value())
		clear(p.index)
		for k := 1; k < len(ins); k++ {
			v := ins[k].Value()
			for i := range p.val {
				if (mode == maxPool && v[i] > p.val[i]) || (mode == minPool && v[i] < p.val[i]) {
					p.val[i] = v[i]
					p.index[i] = k
				}
			}
		}
	}
	p.forwardDropout(g)
	g.record(self)
}

func (p *pooling) backwardPool(mode poolMode) {
	p.backwardDropout()
	if mode == avgPool {
		scale := 1 / float64(len(p.ins))
		for _, in := range p.ins {
			floats.AddScaled(in.Gradient(), scale, p.grad)
		}
		return
	}
	for i, k := range p.index {
		p.ins[k].Gradient()[i] += p.grad[i]
	}
}

// MaxPool keeps the element-wise maximum of its inputs; gradient flows to the
// winning input of each element.
type MaxPool struct{ pooling }

// Forward pools ins.
func (p *MaxPool) Forward(g *Graph, ins []Node) { p.forward(g, p, maxPool, ins) }

func (p *MaxPool) backward(*Graph) { p.backwardPool(maxPool) }

// MinPool keeps the element-wise minimum of its inputs.
type MinPool struct{ pooling }

// Forward pools ins.
func (p *MinPool) Forward(g *Graph, ins []Node) { p.forward(g, p, minPool, ins) }

func (p *MinPool) backward(*Graph) { p.backwardPool(minPool) }

// AvgPool averages its inputs; gradient is split evenly.
type AvgPool struct{ pooling }

// Forward pools ins.
func (p *AvgPool) Forward(g *Graph, ins []Node) { p.forward(g, p, avgPool, ins) }

func (p *AvgPool) backward(*Graph) { p.backwardPool(avgPool) }

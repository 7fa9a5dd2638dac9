package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/nn"
)

// affine computes y = f(Σ W[i]·x[i] + b) over a fixed number of inputs.
type affine struct {
	node
	params  *nn.Affine
	act     Activation
	ins     []Node
	pre     []float64 // pre-activation
	dy      []float64 // gradient w.r.t. pre-activation
	scratch []float64 // sized to max(out, max input dim)
}

func (a *affine) setParam(params *nn.Affine, arity int, kind string) {
	if params.Arity() != arity {
		panic(fmt.Sprintf("graph: %s expects %d weight matrices, got %d", kind, arity, params.Arity()))
	}
	a.params = params
}

func (a *affine) initAffine(dim int, dropProb float64, pool *MemoryPool, kind string) {
	if a.params == nil {
		panic(fmt.Sprintf("graph: %s.Init before SetParam", kind))
	}
	if a.params.OutDim != dim {
		panic(fmt.Sprintf("graph: %s dimension %d does not match parameter output %d", kind, dim, a.params.OutDim))
	}
	a.init(dim, dropProb, pool)
	a.pre = pool.Alloc(dim)
	a.dy = pool.Alloc(dim)
	size := dim
	for _, in := range a.params.InDims {
		size = max(size, in)
	}
	a.scratch = pool.Alloc(size)
	a.ins = make([]Node, 0, a.params.Arity())
}

func (a *affine) forward(g *Graph, self Node, ins ...Node) {
	a.checkInit()
	a.ins = append(a.ins[:0], ins...)

	pre := mat.NewVecDense(a.dim, a.pre)
	tmp := mat.NewVecDense(a.dim, a.scratch[:a.dim])
	for i, in := range ins {
		if in.Dim() != a.params.InDims[i] {
			panic(fmt.Sprintf("graph: affine input %d has dimension %d, want %d", i, in.Dim(), a.params.InDims[i]))
		}
		x := mat.NewVecDense(in.Dim(), in.Value())
		if i == 0 {
			pre.MulVec(a.params.W[i].Value(), x)
			continue
		}
		tmp.MulVec(a.params.W[i].Value(), x)
		pre.AddVec(pre, tmp)
	}
	if a.params.B != nil {
		floats.Add(a.pre, a.params.B.Value().RawMatrix().Data)
	}
	for i, x := range a.pre {
		a.val[i] = a.act.F(x)
	}
	a.forwardDropout(g)
	g.record(self)
}

func (a *affine) backward(*Graph) {
	a.backwardDropout()
	for i, x := range a.pre {
		a.dy[i] = a.grad[i] * a.act.Derivative(x)
	}
	dy := mat.NewVecDense(a.dim, a.dy)

	for i, in := range a.ins {
		w := a.params.W[i]
		x := mat.NewVecDense(in.Dim(), in.Value())
		gw := w.Grad()
		gw.RankOne(gw, 1, dy, x)

		dx := mat.NewVecDense(in.Dim(), a.scratch[:in.Dim()])
		dx.MulVec(w.Value().T(), dy)
		floats.Add(in.Gradient(), dx.RawVector().Data)
	}
	if a.params.B != nil {
		floats.Add(a.params.B.Grad().RawMatrix().Data, a.dy)
	}
}

// Uni is a single-input affine layer followed by an activation (tanh by default).
type Uni struct {
	affine
}

// SetParam binds single-input layer weights.
func (u *Uni) SetParam(params *nn.Affine) {
	u.setParam(params, 1, "Uni")
	if u.act.F == nil {
		u.act = Tanh
	}
}

// SetFunctions replaces the activation.
func (u *Uni) SetFunctions(act Activation) {
	u.act = act
}

// Init allocates the node.
func (u *Uni) Init(dim int, dropProb float64, pool *MemoryPool) {
	u.initAffine(dim, dropProb, pool, "Uni")
}

// Forward computes f(W·x + b).
func (u *Uni) Forward(g *Graph, x Node) {
	u.forward(g, u, x)
}

// Linear is a single-input affine layer without activation, used for the
// output scores. It is usually bound to weights without bias.
type Linear struct {
	affine
}

// SetParam binds single-input layer weights.
func (l *Linear) SetParam(params *nn.Affine) {
	l.setParam(params, 1, "Linear")
	l.act = Identity
}

// Init allocates the node.
func (l *Linear) Init(dim int, dropProb float64, pool *MemoryPool) {
	l.initAffine(dim, dropProb, pool, "Linear")
}

// Forward computes W·x (+ b).
func (l *Linear) Forward(g *Graph, x Node) {
	l.forward(g, l, x)
}

// Four merges four inputs through one weight matrix each:
// f(W0·x0 + W1·x1 + W2·x2 + W3·x3 + b), tanh by default.
type Four struct {
	affine
}

// SetParam binds four-input layer weights.
func (f *Four) SetParam(params *nn.Affine) {
	f.setParam(params, 4, "Four")
	if f.act.F == nil {
		f.act = Tanh
	}
}

// SetFunctions replaces the activation.
func (f *Four) SetFunctions(act Activation) {
	f.act = act
}

// Init allocates the node.
func (f *Four) Init(dim int, dropProb float64, pool *MemoryPool) {
	f.initAffine(dim, dropProb, pool, "Four")
}

// Forward computes the merged activation.
func (f *Four) Forward(g *Graph, x0, x1, x2, x3 Node) {
	f.forward(g, f, x0, x1, x2, x3)
}

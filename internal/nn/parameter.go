package nn

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Parameter represents a trainable tensor shared by the nodes of a graph.
//
// Parameters own a value matrix and a gradient matrix of the same shape.
// Graph nodes read the value during forward and accumulate into the gradient
// during backward; optimizers consume the gradient and update the value.
//
// Sparse parameters (embedding tables) additionally track which rows received
// gradient since the last ZeroGrad, so optimizers can skip untouched rows.
//
// Example:
//
//	w := nn.NewParameter("hidden.w", mat.NewDense(200, 150, nil))
//	w.Grad().Set(0, 0, 1.5)
//	optimizer.Step()
//	w.ZeroGrad()
type Parameter struct {
	name   string
	value  *mat.Dense
	grad   *mat.Dense
	sparse bool
	// touched rows of a sparse parameter, in first-touch order
	rows    []int
	rowSeen []bool
}

// NewParameter creates a dense parameter around an initialized value matrix.
func NewParameter(name string, value *mat.Dense) *Parameter {
	r, c := value.Dims()
	return &Parameter{
		name:  name,
		value: value,
		grad:  mat.NewDense(r, c, nil),
	}
}

// NewSparseParameter creates a parameter whose gradient is tracked per row.
func NewSparseParameter(name string, value *mat.Dense) *Parameter {
	p := NewParameter(name, value)
	r, _ := value.Dims()
	p.sparse = true
	p.rowSeen = make([]bool, r)
	return p
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter value matrix.
func (p *Parameter) Value() *mat.Dense {
	return p.value
}

// Grad returns the gradient matrix.
func (p *Parameter) Grad() *mat.Dense {
	return p.grad
}

// Dims returns the number of rows and columns.
func (p *Parameter) Dims() (int, int) {
	return p.value.Dims()
}

// NumElements returns rows*cols.
func (p *Parameter) NumElements() int {
	r, c := p.value.Dims()
	return r * c
}

// IsSparse reports whether the parameter tracks touched rows.
func (p *Parameter) IsSparse() bool {
	return p.sparse
}

// Row returns a view of row i of the value matrix.
func (p *Parameter) Row(i int) []float64 {
	return p.value.RawRowView(i)
}

// GradRow returns a view of row i of the gradient matrix and, for sparse
// parameters, marks the row as touched.
func (p *Parameter) GradRow(i int) []float64 {
	p.MarkRow(i)
	return p.grad.RawRowView(i)
}

// MarkRow records that row i received gradient. It is a no-op for dense parameters.
func (p *Parameter) MarkRow(i int) {
	if !p.sparse || p.rowSeen[i] {
		return
	}
	p.rowSeen[i] = true
	p.rows = append(p.rows, i)
}

// TouchedRows returns the rows that received gradient since the last ZeroGrad,
// in ascending order. Dense parameters return nil.
func (p *Parameter) TouchedRows() []int {
	if !p.sparse {
		return nil
	}
	rows := append([]int(nil), p.rows...)
	sort.Ints(rows)
	return rows
}

// ZeroGrad clears the gradient.
//
// Sparse parameters only clear the rows that were touched.
func (p *Parameter) ZeroGrad() {
	if !p.sparse {
		p.grad.Zero()
		return
	}
	for _, i := range p.rows {
		clear(p.grad.RawRowView(i))
		p.rowSeen[i] = false
	}
	p.rows = p.rows[:0]
}

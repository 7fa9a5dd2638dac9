package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Affine holds the weights of an affine transformation over one or more inputs:
//
//	y = W[0]·x[0] + W[1]·x[1] + ... + b
//
// Weight i has shape [OutDim, InDims[i]]; the bias (optional) has shape [OutDim, 1].
// A single-input Affine backs uni and linear layers, a four-input Affine backs
// the layer merging the word, attribute, evaluation and polarity branches.
type Affine struct {
	W      []*Parameter
	B      *Parameter // nil when the layer has no bias
	OutDim int
	InDims []int
}

// NewAffine creates an Affine layer with Xavier-initialized weights and a zero bias.
//
// Parameters:
//   - name: prefix for parameter names ("<name>.w0", "<name>.b", ...)
//   - outDim: output dimension
//   - inDims: input dimension of every operand
//   - bias: whether to allocate a bias
//   - rng: random source for initialization
func NewAffine(name string, outDim int, inDims []int, bias bool, rng *rand.Rand) *Affine {
	a := &Affine{
		OutDim: outDim,
		InDims: append([]int(nil), inDims...),
	}
	for i, in := range inDims {
		a.W = append(a.W, NewParameter(weightName(name, i), Xavier(outDim, in, rng)))
	}
	if bias {
		a.B = NewParameter(biasName(name), Zeros(outDim, 1))
	}
	return a
}

// NewAffineWithWeights assembles an Affine layer from existing matrices.
// b may be nil.
func NewAffineWithWeights(name string, ws []*mat.Dense, b *mat.Dense) (*Affine, error) {
	if len(ws) == 0 {
		return nil, errors.Errorf("affine %q: no weight matrices", name)
	}
	out, _ := ws[0].Dims()
	a := &Affine{OutDim: out}
	for i, w := range ws {
		r, c := w.Dims()
		if r != out {
			return nil, errors.Errorf("affine %q: weight %d has %d rows, want %d", name, i, r, out)
		}
		a.W = append(a.W, NewParameter(weightName(name, i), w))
		a.InDims = append(a.InDims, c)
	}
	if b != nil {
		r, c := b.Dims()
		if r != out || c != 1 {
			return nil, errors.Errorf("affine %q: bias shape [%d %d], want [%d 1]", name, r, c, out)
		}
		a.B = NewParameter(biasName(name), b)
	}
	return a, nil
}

// HasBias reports whether the layer has a bias term.
func (a *Affine) HasBias() bool {
	return a.B != nil
}

// Arity returns the number of inputs.
func (a *Affine) Arity() int {
	return len(a.W)
}

// Parameters returns the weights followed by the bias.
func (a *Affine) Parameters() []*Parameter {
	params := append([]*Parameter(nil), a.W...)
	if a.B != nil {
		params = append(params, a.B)
	}
	return params
}

func weightName(prefix string, i int) string {
	return fmt.Sprintf("%s.w%d", prefix, i)
}

func biasName(prefix string) string {
	return prefix + ".b"
}

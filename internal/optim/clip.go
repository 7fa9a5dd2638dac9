package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nncnn/internal/nn"
)

// GradNorm returns the global L2 norm of all gradients. Sparse parameters
// contribute their touched rows only.
func GradNorm(params []*nn.Parameter) float64 {
	sum := 0.0
	for _, p := range params {
		forEachRow(p, func(row int) {
			g := p.Grad().RawRowView(row)
			sum += floats.Dot(g, g)
		})
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients so that their global L2 norm is at most
// maxNorm. It returns the norm before clipping. maxNorm <= 0 disables clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		forEachRow(p, func(row int) {
			floats.Scale(scale, p.Grad().RawRowView(row))
		})
	}
	return norm
}

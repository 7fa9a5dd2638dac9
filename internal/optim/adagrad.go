package optim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/nn"
)

// AdaGrad scales each coordinate by the root of its accumulated squared gradients:
//
//	G = G + gradient²
//	param = param - lr * gradient / sqrt(G + eps)
type AdaGrad struct {
	params []*nn.Parameter
	lr     float64
	eps    float64
	l2     float64
	sums   map[*nn.Parameter]*mat.Dense
}

// AdaGradConfig holds configuration for AdaGrad optimizer.
type AdaGradConfig struct {
	LR  float64 // Learning rate (default: 0.01)
	Eps float64 // Term for numerical stability (default: 1e-8)
	L2  float64 // L2 regularization strength
}

// NewAdaGrad creates a new AdaGrad optimizer.
func NewAdaGrad(params []*nn.Parameter, config AdaGradConfig) *AdaGrad {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &AdaGrad{
		params: params,
		lr:     config.LR,
		eps:    config.Eps,
		l2:     config.L2,
		sums:   make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step performs a single optimization step.
func (a *AdaGrad) Step() {
	for _, param := range a.params {
		sum, ok := a.sums[param]
		if !ok {
			r, c := param.Dims()
			sum = mat.NewDense(r, c, nil)
			a.sums[param] = sum
		}
		forEachRow(param, func(row int) {
			w := param.Value().RawRowView(row)
			g := param.Grad().RawRowView(row)
			s := sum.RawRowView(row)
			for i := range w {
				grad := g[i] + a.l2*w[i]
				s[i] += grad * grad
				w[i] -= a.lr * grad / math.Sqrt(s[i]+a.eps)
			}
		})
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *AdaGrad) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *AdaGrad) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *AdaGrad) SetLR(lr float64) {
	a.lr = lr
}

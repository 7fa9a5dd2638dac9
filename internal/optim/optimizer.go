// Package optim implements optimization algorithms for training the classifier.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - AdaGrad: per-coordinate adaptive learning rates (default)
//   - Adam: Adaptive Moment Estimation
//   - SGD: Stochastic Gradient Descent with momentum
//   - ClipGradNorm: global gradient norm clipping
//
// Every optimizer supports L2 regularization and sparse parameters: for an
// embedding table only the rows touched in the current batch are updated.
//
// Example usage:
//
//	optimizer := optim.NewAdaGrad(params.Parameters(), optim.AdaGradConfig{
//	    LR:  0.01,
//	    L2:  1e-8,
//	})
//
//	for _, batch := range batches {
//	    driver.Train(batch) // forward + backward, gradients accumulate
//	    optim.ClipGradNorm(params.Parameters(), 10)
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nncnn/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate.
	SetLR(lr float64)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
	L2 float64 // L2 regularization strength, added to the gradient as L2*value
}

// Names accepted by New.
const (
	NameAdaGrad = "adagrad"
	NameAdam    = "adam"
	NameSGD     = "sgd"
)

// New creates an optimizer by name with a shared base configuration and
// per-algorithm defaults for everything else.
func New(name string, params []*nn.Parameter, cfg Config) (Optimizer, error) {
	switch name {
	case NameAdaGrad, "":
		return NewAdaGrad(params, AdaGradConfig{LR: cfg.LR, L2: cfg.L2}), nil
	case NameAdam:
		return NewAdam(params, AdamConfig{LR: cfg.LR, L2: cfg.L2}), nil
	case NameSGD:
		return NewSGD(params, SGDConfig{LR: cfg.LR, L2: cfg.L2, Momentum: 0.9}), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}

// forEachRow calls fn for every row of p that must be updated: all rows of a
// dense parameter, the touched rows of a sparse one. value, grad and state
// slices are row views of equal length.
func forEachRow(p *nn.Parameter, fn func(row int)) {
	if p.IsSparse() {
		for _, r := range p.TouchedRows() {
			fn(r)
		}
		return
	}
	rows, _ := p.Dims()
	for r := 0; r < rows; r++ {
		fn(r)
	}
}

// zeroGrad clears gradients of all parameters.
func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

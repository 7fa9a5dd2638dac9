package optim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	l2         float64
	velocities map[*nn.Parameter]*mat.Dense
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
	L2       float64 // L2 regularization strength
}

// NewSGD creates a new SGD optimizer.
//
// Panics if momentum is outside [0, 1).
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		panic("optim: SGD momentum must be in [0, 1)")
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		l2:         config.L2,
		velocities: make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	for _, param := range s.params {
		var vel *mat.Dense
		if s.momentum > 0 {
			var ok bool
			vel, ok = s.velocities[param]
			if !ok {
				r, c := param.Dims()
				vel = mat.NewDense(r, c, nil)
				s.velocities[param] = vel
			}
		}

		forEachRow(param, func(row int) {
			w := param.Value().RawRowView(row)
			g := param.Grad().RawRowView(row)
			if vel == nil {
				for i := range w {
					w[i] -= s.lr * (g[i] + s.l2*w[i])
				}
				return
			}
			vRow := vel.RawRowView(row)
			for i := range w {
				vRow[i] = s.momentum*vRow[i] + g[i] + s.l2*w[i]
				w[i] -= s.lr * vRow[i]
			}
		})
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

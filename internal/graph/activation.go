package graph

import "math"

// Activation is an element-wise nonlinearity with its derivative.
// Derivative takes the pre-activation input.
type Activation struct {
	Name       string
	F          func(x float64) float64
	Derivative func(x float64) float64
}

// Built-in activations.
var (
	Tanh = Activation{
		Name: "tanh",
		F:    math.Tanh,
		Derivative: func(x float64) float64 {
			y := math.Tanh(x)
			return 1 - y*y
		},
	}
	ReLU = Activation{
		Name: "relu",
		F: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		Derivative: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	Sigmoid = Activation{
		Name: "sigmoid",
		F:    sigmoid,
		Derivative: func(x float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	}
	Identity = Activation{
		Name:       "identity",
		F:          func(x float64) float64 { return x },
		Derivative: func(float64) float64 { return 1 },
	}
)

func sigmoid(x float64) float64 {
	// split on sign so exp never overflows
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

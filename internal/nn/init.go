package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes a rows×cols matrix with values drawn from
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))),
// where fan_out = rows and fan_in = cols.
func Xavier(rows, cols int, rng *rand.Rand) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(rows+cols))
	return Uniform(rows, cols, bound, rng)
}

// Uniform creates a rows×cols matrix with values drawn from U(-bound, bound).
func Uniform(rows, cols int, bound float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return mat.NewDense(rows, cols, data)
}

// EmbeddingBound is the uniform bound used for randomly initialized embedding rows.
func EmbeddingBound(dim int) float64 {
	return math.Sqrt(3.0 / float64(dim))
}

// Zeros creates a zero-filled rows×cols matrix, commonly used for biases.
func Zeros(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}

// NewRand returns the deterministic random source used for initialization and dropout.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Package nn implements the parameter layer of the nncnn classifier.
//
// This package provides the tensors that computation graph nodes share:
//   - Parameter: named value/gradient matrices with optional sparse row tracking
//   - Alphabet: string <-> id mapping for words, attributes, characters and labels
//   - LookupTable: embedding table addressed through an Alphabet
//   - Affine: weights of single and multi input affine layers
//   - Initializers: Xavier, uniform, zeros
//
// Values and gradients are gonum dense matrices so that graph nodes can use
// BLAS-backed kernels for their forward and backward rules.
package nn

// Module is implemented by every component that owns trainable parameters.
//
// Optimizers receive the concatenation of Parameters() of all modules of a
// model; components without trainable state return an empty slice.
type Module interface {
	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter
}

// Collect flattens the parameters of several modules, skipping duplicates.
func Collect(modules ...Module) []*Parameter {
	seen := make(map[*Parameter]struct{})
	var params []*Parameter
	for _, m := range modules {
		if m == nil {
			continue
		}
		for _, p := range m.Parameters() {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			params = append(params, p)
		}
	}
	return params
}

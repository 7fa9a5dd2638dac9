package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nncnn/internal/graph"
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/optim"
)

// ErrUnknownLabel is returned when an instance label is not in the label alphabet.
var ErrUnknownLabel = errors.New("label not in alphabet")

// Driver runs the computation graph on instances: training steps (forward,
// loss, backward), parameter updates and decoding.
//
// A Driver owns one ComputationGraph and is not safe for concurrent use; give
// every goroutine its own Driver over the same ModelParams when decoding in
// parallel, and never update parameters while other drivers decode.
type Driver struct {
	HyperParams *HyperParams
	Params      *ModelParams

	cg        *ComputationGraph
	pool      *graph.MemoryPool
	optimizer optim.Optimizer
	clip      float64
}

// BatchResult summarizes one training batch.
type BatchResult struct {
	Loss    float64 // mean loss over the batch
	Correct int     // instances whose argmax matched the gold label
	Total   int     // instances used
	Skipped int     // instances with a label outside the alphabet
}

// Prediction is the decoded label of one instance.
type Prediction struct {
	Label string
	Index int
	Probs []float64
}

// NewDriver builds a graph sized to the hyperparameter limits and binds it to params.
func NewDriver(params *ModelParams, hp *HyperParams, seed uint64) *Driver {
	d := &Driver{
		HyperParams: hp,
		Params:      params,
		cg:          NewComputationGraph(seed),
		pool:        graph.NewMemoryPool(0),
	}
	d.cg.CreateNodesFor(hp)
	d.cg.Initial(params, hp, d.pool)
	return d
}

// SetOptimizer installs the optimizer used by Update. clip <= 0 disables
// gradient norm clipping.
func (d *Driver) SetOptimizer(opt optim.Optimizer, clip float64) {
	d.optimizer = opt
	d.clip = clip
}

// Train runs forward and backward on every instance of the batch. Gradients
// accumulate in the parameters until Update is called.
func (d *Driver) Train(batch []*instance.Instance) BatchResult {
	var res BatchResult
	golds := make([]int, len(batch))
	for i, inst := range batch {
		gold, ok := d.Params.Labels.Index(inst.Label)
		golds[i] = gold
		if !ok {
			golds[i] = -1
			res.Skipped++
		}
	}
	size := len(batch) - res.Skipped
	if size == 0 {
		return res
	}

	for i, inst := range batch {
		if golds[i] < 0 {
			continue
		}
		d.cg.Forward(inst, true)
		loss, correct := softmaxLoss(d.cg.Output(), golds[i], size)
		d.cg.Backward()
		res.Loss += loss
		res.Total++
		if correct {
			res.Correct++
		}
	}
	return res
}

// Update clips the accumulated gradients, applies the optimizer and clears
// the gradients. It returns the gradient norm before clipping.
func (d *Driver) Update() (float64, error) {
	if d.optimizer == nil {
		return 0, errors.New("driver: no optimizer installed")
	}
	params := d.Params.Parameters()
	norm := optim.ClipGradNorm(params, d.clip)
	d.optimizer.Step()
	d.optimizer.ZeroGrad()
	return norm, nil
}

// Predict decodes inst without dropout.
func (d *Driver) Predict(inst *instance.Instance) Prediction {
	d.cg.Forward(inst, false)
	scores := d.cg.Output().Value()
	best := floats.MaxIdx(scores)
	return Prediction{
		Label: d.Params.Labels.Name(best),
		Index: best,
		Probs: softmax(scores),
	}
}

// Cost returns the cross-entropy of inst without dropout and without touching
// parameter gradients.
func (d *Driver) Cost(inst *instance.Instance) (float64, error) {
	gold, ok := d.Params.Labels.Index(inst.Label)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLabel, "label %q", inst.Label)
	}
	d.cg.Forward(inst, false)
	loss, _ := softmaxLoss(d.cg.Output(), gold, 1)
	return loss, nil
}

// Graph exposes the underlying computation graph.
func (d *Driver) Graph() *ComputationGraph {
	return d.cg
}

// MemoryUsage returns the number of float64 values allocated for node buffers.
func (d *Driver) MemoryUsage() int {
	return d.pool.Allocated()
}

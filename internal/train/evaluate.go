package train

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/parallel"
)

// Metric counts correct predictions.
type Metric struct {
	Correct int
	Total   int
}

// Accuracy returns Correct/Total, or 0 for an empty metric.
func (m Metric) Accuracy() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.Total)
}

// Add merges o into m.
func (m *Metric) Add(o Metric) {
	m.Correct += o.Correct
	m.Total += o.Total
}

// Better reports whether m has a strictly higher accuracy than o.
func (m Metric) Better(o Metric) bool {
	return m.Accuracy() > o.Accuracy()
}

func (m Metric) String() string {
	return fmt.Sprintf("%.4f (%d/%d)", m.Accuracy(), m.Correct, m.Total)
}

// Score compares predictions with gold labels. A gold label the model has
// never seen counts as an error.
func Score(insts []*instance.Instance, preds []model.Prediction) Metric {
	var m Metric
	for i, inst := range insts {
		m.Total++
		if preds[i].Label == inst.Label {
			m.Correct++
		}
	}
	return m
}

// Evaluator decodes corpora in parallel. Every worker owns a Driver, so no
// computation graph is ever shared between goroutines; parameters are only
// read.
type Evaluator struct {
	params  *model.ModelParams
	hp      *model.HyperParams
	cfg     parallel.Config
	seed    uint64
	drivers []*model.Driver
}

// NewEvaluator creates an evaluator over params. workers <= 0 uses every CPU.
func NewEvaluator(params *model.ModelParams, hp *model.HyperParams, workers int) *Evaluator {
	return &Evaluator{
		params: params,
		hp:     hp,
		cfg:    parallel.DefaultConfig().WithWorkers(workers),
	}
}

func (e *Evaluator) driver(worker int) *model.Driver {
	for len(e.drivers) <= worker {
		e.drivers = append(e.drivers, nil)
	}
	if e.drivers[worker] == nil {
		e.drivers[worker] = model.NewDriver(e.params, e.hp, e.seed+uint64(worker))
	}
	return e.drivers[worker]
}

// Predict decodes every instance. Parameters must not change while Predict runs.
func (e *Evaluator) Predict(ctx context.Context, insts []*instance.Instance) ([]model.Prediction, error) {
	workers := e.cfg.Workers(len(insts))
	drivers := make([]*model.Driver, workers)
	for w := range drivers {
		drivers[w] = e.driver(w)
	}

	preds := make([]model.Prediction, len(insts))
	err := parallel.ForWorkers(ctx, len(insts), e.cfg, func(w, i int) error {
		preds[i] = drivers[w].Predict(insts[i])
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decoding interrupted")
	}
	return preds, nil
}

// Evaluate decodes insts and scores the predictions.
func (e *Evaluator) Evaluate(ctx context.Context, insts []*instance.Instance) ([]model.Prediction, Metric, error) {
	preds, err := e.Predict(ctx, insts)
	if err != nil {
		return nil, Metric{}, err
	}
	return preds, Score(insts, preds), nil
}

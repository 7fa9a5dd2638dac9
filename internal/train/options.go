// Package train builds vocabularies from a corpus, trains the classifier
// and evaluates it.
package train

import (
	"github.com/born-ml/nncnn/internal/optim"
)

// Options controls a training run.
type Options struct {
	Optimizer    string  `yaml:"optimizer" json:"optimizer" validate:"omitempty,oneof=adagrad adam sgd"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0"`
	L2           float64 `yaml:"l2" json:"l2" validate:"gte=0"`
	Clip         float64 `yaml:"clip" json:"clip" validate:"gte=0"` // max global grad norm, 0 disables
	BatchSize    int     `yaml:"batch_size" json:"batch_size" validate:"gt=0"`
	MaxIter      int     `yaml:"max_iter" json:"max_iter" validate:"gt=0"`
	Patience     int     `yaml:"patience" json:"patience" validate:"gte=0"` // epochs without dev gain before stopping, 0 disables
	Seed         uint64  `yaml:"seed" json:"seed"`

	WordCutoff int `yaml:"word_cutoff" json:"word_cutoff" validate:"gte=0"`
	AttCutoff  int `yaml:"att_cutoff" json:"att_cutoff" validate:"gte=0"`
	CharCutoff int `yaml:"char_cutoff" json:"char_cutoff" validate:"gte=0"`

	MaxInstances int  `yaml:"max_instances" json:"max_instances" validate:"gte=0"` // 0 reads everything
	EvalWorkers  int  `yaml:"eval_workers" json:"eval_workers" validate:"gte=0"`   // 0 uses every CPU
	VerboseIter  int  `yaml:"verbose_iter" json:"verbose_iter" validate:"gte=0"`   // batches between log lines, 0 disables
	Progress     bool `yaml:"progress" json:"progress"`
	SaveEveryDev bool `yaml:"save_every_dev" json:"save_every_dev"` // also keep <model>.epochN files
}

// DefaultOptions returns the baseline training setup.
func DefaultOptions() Options {
	return Options{
		Optimizer:    optim.NameAdaGrad,
		LearningRate: 0.01,
		L2:           1e-8,
		Clip:         10,
		BatchSize:    16,
		MaxIter:      20,
		Seed:         1,
		VerboseIter:  100,
		Progress:     true,
	}
}

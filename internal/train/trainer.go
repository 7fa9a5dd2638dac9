package train

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/born-ml/nncnn/internal/checkpoint"
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/nn"
	"github.com/born-ml/nncnn/internal/optim"
)

// Corpus holds the instances of one run. Dev and Test may be empty.
type Corpus struct {
	Train []*instance.Instance
	Dev   []*instance.Instance
	Test  []*instance.Instance
}

// Embeddings are optional pretrained vector files ("word v1 ... vd" lines).
// Word initializes matching rows of the trained word table; Ext becomes the
// fixed external word table concatenated to every word.
type Embeddings struct {
	Word io.Reader
	Ext  io.Reader
}

// EpochStats summarizes one epoch.
type EpochStats struct {
	Epoch    int
	Loss     float64 // mean batch loss
	Train    Metric
	Dev      Metric
	Test     Metric
	Improved bool
	Elapsed  time.Duration
}

// Result summarizes a run.
type Result struct {
	Epochs    []EpochStats
	BestEpoch int // 0-based, -1 when nothing was kept
	BestDev   Metric
	BestTest  Metric // test score of the best dev model
}

// Trainer trains one model.
type Trainer struct {
	Options     Options
	HyperParams model.HyperParams
	Params      *model.ModelParams

	// ModelPath receives a checkpoint whenever the dev score improves (every
	// epoch without a dev set). Empty disables saving.
	ModelPath string
	// Creator is recorded in saved checkpoints.
	Creator string

	driver    *model.Driver
	evaluator *Evaluator
	rng       *rand.Rand
}

// New creates a trainer. Call Init before Run.
func New(opts Options, hp model.HyperParams) *Trainer {
	return &Trainer{
		Options:     opts,
		HyperParams: hp,
		rng:         nn.NewRand(opts.Seed),
	}
}

// Init builds the vocabularies from the training instances, loads optional
// pretrained embeddings and initializes parameters and the optimizer.
func (t *Trainer) Init(insts []*instance.Instance, emb Embeddings) error {
	if len(insts) == 0 {
		return errors.New("train: empty training corpus")
	}
	alphabets := BuildAlphabets(insts, t.Options)
	klog.Infof("alphabets: %s labels, %s words, %s attributes, %s evaluation chars, %s polarities",
		humanize.Comma(int64(alphabets.Labels.Size())), humanize.Comma(int64(alphabets.Words.Size())),
		humanize.Comma(int64(alphabets.Atts.Size())), humanize.Comma(int64(alphabets.EvalChars.Size())),
		humanize.Comma(int64(alphabets.Polarities.Size())))

	var ext *nn.LookupTable
	if emb.Ext != nil {
		var err error
		ext, err = nn.NewPretrainedTable(model.ExtWordsTensor, emb.Ext, false)
		if err != nil {
			return errors.Wrap(err, "failed to load external embeddings")
		}
		klog.Infof("external embeddings: %s words, dim %d", humanize.Comma(int64(ext.Alphabet.Size())), ext.Dim)
	}

	params, err := model.NewModelParams(&t.HyperParams, alphabets, ext, t.rng)
	if err != nil {
		return err
	}
	if emb.Word != nil {
		matched, err := params.Words.LoadPretrained(emb.Word)
		if err != nil {
			return errors.Wrap(err, "failed to load word embeddings")
		}
		klog.Infof("word embeddings: %s of %s words initialized from file",
			humanize.Comma(int64(matched)), humanize.Comma(int64(alphabets.Words.Size())))
	}
	t.Params = params

	opt, err := optim.New(t.Options.Optimizer, params.Parameters(), optim.Config{
		LR: t.Options.LearningRate,
		L2: t.Options.L2,
	})
	if err != nil {
		return err
	}
	t.driver = model.NewDriver(params, &t.HyperParams, t.Options.Seed)
	t.driver.SetOptimizer(opt, t.Options.Clip)
	t.evaluator = NewEvaluator(params, &t.HyperParams, t.Options.EvalWorkers)

	klog.Infof("model: %s, %s parameters, graph buffers %s",
		t.HyperParams.String(), humanize.Comma(int64(params.NumParameters())),
		humanize.IBytes(uint64(t.driver.MemoryUsage())*8))
	return nil
}

// Run trains for Options.MaxIter epochs, evaluating dev and test after each
// epoch and keeping the best dev model.
func (t *Trainer) Run(ctx context.Context, corpus Corpus) (*Result, error) {
	if t.driver == nil {
		return nil, errors.New("train: Init was not called")
	}
	res := &Result{BestEpoch: -1}
	order := make([]int, len(corpus.Train))
	for i := range order {
		order[i] = i
	}
	sinceBest := 0

	for epoch := 0; epoch < t.Options.MaxIter; epoch++ {
		start := time.Now()
		t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		stats, err := t.trainEpoch(ctx, epoch, corpus.Train, order)
		if err != nil {
			return res, err
		}

		if len(corpus.Dev) > 0 {
			if _, stats.Dev, err = t.evaluator.Evaluate(ctx, corpus.Dev); err != nil {
				return res, err
			}
			stats.Improved = res.BestEpoch < 0 || stats.Dev.Better(res.BestDev)
		} else {
			stats.Improved = true
		}
		if stats.Improved && len(corpus.Test) > 0 {
			if _, stats.Test, err = t.evaluator.Evaluate(ctx, corpus.Test); err != nil {
				return res, err
			}
		}
		stats.Elapsed = time.Since(start)

		if stats.Improved {
			res.BestEpoch, res.BestDev, res.BestTest = epoch, stats.Dev, stats.Test
			sinceBest = 0
			if err := t.save(t.ModelPath, epoch, stats); err != nil {
				return res, err
			}
		} else {
			sinceBest++
		}
		if t.Options.SaveEveryDev && t.ModelPath != "" {
			if err := t.save(fmt.Sprintf("%s.epoch%d", t.ModelPath, epoch+1), epoch, stats); err != nil {
				return res, err
			}
		}
		res.Epochs = append(res.Epochs, stats)

		klog.InfoS("epoch finished", "epoch", epoch+1, "loss", stats.Loss, "train", stats.Train.String(),
			"dev", stats.Dev.String(), "test", stats.Test.String(), "improved", stats.Improved,
			"elapsed", stats.Elapsed.Round(time.Millisecond))

		if t.Options.Patience > 0 && sinceBest >= t.Options.Patience {
			klog.Infof("no dev improvement for %d epochs, stopping", sinceBest)
			break
		}
	}
	return res, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int, insts []*instance.Instance, order []int) (EpochStats, error) {
	stats := EpochStats{Epoch: epoch}
	batchSize := t.Options.BatchSize
	numBatches := (len(order) + batchSize - 1) / batchSize

	var bar *progressbar.ProgressBar
	if t.Options.Progress {
		bar = progressbar.NewOptions(numBatches,
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch+1, t.Options.MaxIter)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	batch := make([]*instance.Instance, 0, batchSize)
	for b := 0; b < numBatches; b++ {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrapf(err, "epoch %d interrupted", epoch+1)
		}
		batch = batch[:0]
		for _, i := range order[b*batchSize : min((b+1)*batchSize, len(order))] {
			batch = append(batch, insts[i])
		}

		br := t.driver.Train(batch)
		if br.Total > 0 {
			norm, err := t.driver.Update()
			if err != nil {
				return stats, err
			}
			klog.V(2).InfoS("batch", "epoch", epoch+1, "batch", b+1, "loss", br.Loss, "gradNorm", norm)
		}
		stats.Loss += br.Loss
		stats.Train.Add(Metric{Correct: br.Correct, Total: br.Total})

		if bar != nil {
			_ = bar.Add(1)
		}
		if t.Options.VerboseIter > 0 && (b+1)%t.Options.VerboseIter == 0 {
			klog.V(1).Infof("epoch %d batch %d/%d: loss=%.4f train=%s",
				epoch+1, b+1, numBatches, stats.Loss/float64(b+1), stats.Train)
		}
	}
	if numBatches > 0 {
		stats.Loss /= float64(numBatches)
	}
	return stats, nil
}

func (t *Trainer) save(path string, epoch int, stats EpochStats) error {
	if path == "" {
		return nil
	}
	c := checkpoint.New(t.Params, &t.HyperParams)
	c.Creator = t.Creator
	c.Metadata["epoch"] = fmt.Sprint(epoch + 1)
	c.Metadata["train_accuracy"] = fmt.Sprintf("%.6f", stats.Train.Accuracy())
	if stats.Dev.Total > 0 {
		c.Metadata["dev_accuracy"] = fmt.Sprintf("%.6f", stats.Dev.Accuracy())
	}
	if err := checkpoint.Save(path, c); err != nil {
		return err
	}
	klog.V(1).Infof("saved checkpoint %s", path)
	return nil
}

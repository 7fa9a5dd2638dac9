package train_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nncnn/internal/checkpoint"
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/nn"
	"github.com/born-ml/nncnn/internal/train"
)

const trainCorpus = `pos the screen is bright [a]screen [e]很亮 [p]+1
neg battery dies fast [a]battery [e]太快 [p]-1
pos great sound [a]sound [e]好 [e]清楚 [p]+1
neg bad screen [a]screen [e]暗 [p]-1
pos love it [e]喜欢 [p]+1
neg hate the battery [a]battery [p]-1
`

func readCorpus(t *testing.T, text string) []*instance.Instance {
	t.Helper()
	return must.M1(instance.ReadAll(strings.NewReader(text), 0))
}

func tinyHyperParams() model.HyperParams {
	hp := model.DefaultHyperParams()
	hp.WordDim = 6
	hp.WordContext = 1
	hp.WordHiddenSize = 6
	hp.AttDim = 3
	hp.EvalCharDim = 4
	hp.EvalCharHiddenSize = 3
	hp.PolarityDim = 3
	hp.PolarityHiddenSize = 3
	hp.ConcatHiddenSize = 8
	hp.DropProb = 0
	hp.PolarDropProb = 0
	hp.MaxSentenceLength = 8
	hp.MaxAttSize = 3
	hp.MaxEvalSize = 3
	hp.MaxEvalLength = 4
	return hp
}

func tinyOptions() train.Options {
	opts := train.DefaultOptions()
	opts.LearningRate = 0.1
	opts.BatchSize = 2
	opts.MaxIter = 15
	opts.Progress = false
	opts.EvalWorkers = 2
	return opts
}

func TestBuildAlphabets(t *testing.T) {
	insts := readCorpus(t, trainCorpus+"neu meh\n")
	opts := train.DefaultOptions()
	opts.WordCutoff = 1

	a := train.BuildAlphabets(insts, opts)
	assert.Equal(t, []string{"neg", "pos", "neu"}, a.Labels.Names())
	assert.Equal(t, -1, a.Labels.UnknownID())
	assert.Equal(t, []string{nn.UnknownKey, "battery", "screen", "the"}, a.Words.Names())
	assert.Equal(t, []string{nn.UnknownKey, "[a]battery", "[a]screen", "[a]sound"}, a.Atts.Names())
	assert.Equal(t, []string{nn.UnknownKey, "[p]+1", "[p]-1"}, a.Polarities.Names(), "missing polarity is not counted")
	assert.Equal(t, 0, a.Polarities.IndexOrUnknown(""))
	assert.Equal(t, 11, a.EvalChars.Size())
	assert.Nil(t, a.ExtWords)
}

func TestMetric(t *testing.T) {
	var m train.Metric
	assert.Zero(t, m.Accuracy())
	m.Add(train.Metric{Correct: 3, Total: 4})
	m.Add(train.Metric{Correct: 0, Total: 1})
	assert.InDelta(t, 0.6, m.Accuracy(), 1e-12)
	assert.Equal(t, "0.6000 (3/5)", m.String())
	assert.True(t, m.Better(train.Metric{Correct: 1, Total: 2}))
	assert.False(t, m.Better(train.Metric{Correct: 6, Total: 10}), "ties are not improvements")

	insts := readCorpus(t, "pos a\nneg b\nodd c\n")
	preds := []model.Prediction{{Label: "pos"}, {Label: "pos"}, {Label: "neg"}}
	assert.Equal(t, train.Metric{Correct: 1, Total: 3}, train.Score(insts, preds))
}

func TestWritePredictions(t *testing.T) {
	insts := readCorpus(t, "pos good film [a]film [e]好 [p]+1\nneg bad\n")
	var buf bytes.Buffer
	preds := []model.Prediction{{Label: "neg"}, {Label: "pos"}}
	require.NoError(t, train.WritePredictions(&buf, insts, preds))
	assert.Equal(t, "neg good film [a]film [e]好 [p]+1\npos bad\n", buf.String())

	assert.Error(t, train.WritePredictions(&buf, insts, preds[:1]))
}

func TestTrainer_Run(t *testing.T) {
	insts := readCorpus(t, trainCorpus)
	path := filepath.Join(t.TempDir(), "model.nncg")

	tr := train.New(tinyOptions(), tinyHyperParams())
	tr.ModelPath = path
	tr.Creator = "train_test"
	_, err := tr.Run(context.Background(), train.Corpus{Train: insts})
	assert.Error(t, err, "Init not called")

	require.NoError(t, tr.Init(insts, train.Embeddings{}))
	res := must.M1(tr.Run(context.Background(), train.Corpus{Train: insts, Dev: insts, Test: insts[:2]}))

	require.NotEmpty(t, res.Epochs)
	assert.GreaterOrEqual(t, res.BestEpoch, 0)
	assert.Less(t, res.Epochs[len(res.Epochs)-1].Loss, res.Epochs[0].Loss)
	assert.Equal(t, len(insts), res.Epochs[0].Train.Total)
	assert.Equal(t, len(insts), res.BestDev.Total)
	assert.Equal(t, 2, res.BestTest.Total)
	assert.Greater(t, res.BestDev.Accuracy(), 0.8)

	c := must.M1(checkpoint.Load(path))
	assert.Equal(t, "train_test", c.Creator)
	assert.Equal(t, tr.HyperParams.LabelSize, c.HyperParams.LabelSize)
	assert.Contains(t, c.Metadata, "dev_accuracy")

	ev := train.NewEvaluator(c.Params, c.HyperParams, 1)
	_, m := must.M2(ev.Evaluate(context.Background(), insts))
	assert.Equal(t, res.BestDev, m, "saved model is the best dev model")
}

func TestTrainer_EmbeddingsAndNoDev(t *testing.T) {
	insts := readCorpus(t, trainCorpus)
	opts := tinyOptions()
	opts.MaxIter = 2
	opts.SaveEveryDev = true
	path := filepath.Join(t.TempDir(), "model.nncg")

	tr := train.New(opts, tinyHyperParams())
	tr.ModelPath = path
	err := tr.Init(insts, train.Embeddings{
		Word: strings.NewReader("screen 1 1 1 1 1 1\nunseen 2 2 2 2 2 2\n"),
		Ext:  strings.NewReader("screen 1 0\nbattery 0 1\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tr.HyperParams.ExtWordDim)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, tr.Params.Words.E.Row(tr.Params.Words.Index("screen")))

	res := must.M1(tr.Run(context.Background(), train.Corpus{Train: insts}))
	assert.Equal(t, 1, res.BestEpoch, "every epoch counts as improved without a dev set")
	for _, name := range []string{"model.nncg", "model.nncg.epoch1", "model.nncg.epoch2"} {
		_, err := os.Stat(filepath.Join(filepath.Dir(path), name))
		assert.NoError(t, err, name)
	}

	c := must.M1(checkpoint.Load(path))
	require.NotNil(t, c.Params.ExtWords)
	assert.Equal(t, 2, c.HyperParams.ExtWordDim)

	bad := train.New(opts, tinyHyperParams())
	assert.Error(t, bad.Init(insts, train.Embeddings{Word: strings.NewReader("screen 1 2\n")}))
	assert.Error(t, bad.Init(nil, train.Embeddings{}))
}

func TestTrainer_Patience(t *testing.T) {
	insts := readCorpus(t, trainCorpus)
	opts := tinyOptions()
	opts.MaxIter = 50
	opts.Patience = 2
	opts.LearningRate = 1e-9

	tr := train.New(opts, tinyHyperParams())
	require.NoError(t, tr.Init(insts, train.Embeddings{}))
	res := must.M1(tr.Run(context.Background(), train.Corpus{Train: insts, Dev: insts}))
	assert.Less(t, len(res.Epochs), opts.MaxIter)
}

func TestTrainer_Canceled(t *testing.T) {
	insts := readCorpus(t, trainCorpus)
	tr := train.New(tinyOptions(), tinyHyperParams())
	require.NoError(t, tr.Init(insts, train.Embeddings{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Run(ctx, train.Corpus{Train: insts})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_ParallelMatchesSequential(t *testing.T) {
	insts := readCorpus(t, strings.Repeat(trainCorpus, 10))
	tr := train.New(tinyOptions(), tinyHyperParams())
	require.NoError(t, tr.Init(insts, train.Embeddings{}))

	seq := must.M1(train.NewEvaluator(tr.Params, &tr.HyperParams, 1).Predict(context.Background(), insts))
	par := must.M1(train.NewEvaluator(tr.Params, &tr.HyperParams, 4).Predict(context.Background(), insts))
	require.Len(t, par, len(insts))
	for i := range insts {
		assert.Equal(t, seq[i].Label, par[i].Label)
		assert.InDeltaSlice(t, seq[i].Probs, par[i].Probs, 1e-12)
	}
}

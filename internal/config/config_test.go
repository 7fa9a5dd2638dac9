package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nncnn/internal/config"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/optim"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, optim.NameAdaGrad, cfg.Train.Optimizer)
	assert.Equal(t, []string{model.PoolMax}, cfg.Model.WordPoolings)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
model:
  word_dim: 64
  word_poolings: [max, avg]
train:
  optimizer: adam
  learning_rate: 0.001
  batch_size: 32
`))
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Model.WordDim)
	assert.Equal(t, []string{model.PoolMax, model.PoolAvg}, cfg.Model.WordPoolings)
	assert.Equal(t, model.DefaultHyperParams().WordHiddenSize, cfg.Model.WordHiddenSize)
	assert.Equal(t, optim.NameAdam, cfg.Train.Optimizer)
	assert.InDelta(t, 0.001, cfg.Train.LearningRate, 1e-12)
	assert.Equal(t, 32, cfg.Train.BatchSize)
	assert.Equal(t, config.Default().Train.MaxIter, cfg.Train.MaxIter)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "model:\n  word_size: 3\n", "word_size"},
		{"negative dim", "model:\n  word_dim: -1\n", "WordDim"},
		{"bad pooling", "model:\n  word_poolings: [median]\n", "WordPoolings"},
		{"duplicate pooling", "model:\n  word_poolings: [max, max]\n", "WordPoolings"},
		{"no pooling", "model:\n  word_poolings: []\n", "WordPoolings"},
		{"dropout of one", "model:\n  drop_prob: 1\n", "DropProb"},
		{"bad optimizer", "train:\n  optimizer: rmsprop\n", "Optimizer"},
		{"zero batch", "train:\n  batch_size: 0\n", "BatchSize"},
		{"not yaml", "model: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("train:\n  max_iter: 3\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Train.MaxIter)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWrite_ReadsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Model.WordContext = 3
	cfg.Train.Patience = 4

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))
	assert.Contains(t, buf.String(), "word_context: 3")

	got, err := config.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

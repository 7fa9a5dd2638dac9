package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForWorkers(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	n := 1000
	seen := make([]int32, n)
	workerOf := make([]int, n)
	err := ForWorkers(context.Background(), n, cfg, func(w, i int) error {
		atomic.AddInt32(&seen[i], 1)
		workerOf[i] = w
		return nil
	})
	require.NoError(t, err)
	for i, c := range seen {
		assert.Equal(t, int32(1), c, "item %d", i)
		assert.GreaterOrEqual(t, workerOf[i], 0)
		assert.Less(t, workerOf[i], cfg.Workers(n))
	}
}

func TestForWorkers_Sequential(t *testing.T) {
	cfg := Config{Enabled: false, NumWorkers: 8}

	var order []int
	err := ForWorkers(context.Background(), 5, cfg, func(w, i int) error {
		assert.Equal(t, 0, w)
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestForWorkers_Error(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	boom := errors.New("boom")

	err := ForWorkers(context.Background(), 100, cfg, func(_, i int) error {
		if i == 42 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForWorkers_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := ForWorkers(ctx, 10, Config{}, func(_, _ int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		n    int
		want int
	}{
		{"disabled", Config{Enabled: false, NumWorkers: 8}, 100, 1},
		{"small input", Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}, 10, 1},
		{"chunked", Config{Enabled: true, NumWorkers: 8, MinChunkSize: 10}, 35, 4},
		{"capped", Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}, 100, 3},
		{"empty", Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Workers(tt.n))
		})
	}
}

func TestWithWorkers(t *testing.T) {
	cfg := DefaultConfig().WithWorkers(1)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Workers(1000))

	cfg = Config{MinChunkSize: 1}.WithWorkers(4)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.Workers(1000))
}

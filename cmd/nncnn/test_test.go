package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
)

// closeRecorder buffers writes and fails its Close with closeErr.
type closeRecorder struct {
	bytes.Buffer
	closeErr error
	closed   int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.closeErr
}

func TestWriteAndClose(t *testing.T) {
	inst, err := instance.Parse("pos great phone [e]好")
	require.NoError(t, err)
	insts := []*instance.Instance{inst}
	preds := []model.Prediction{{Label: "neg"}}

	w := &closeRecorder{}
	require.NoError(t, writeAndClose(w, insts, preds))
	assert.Equal(t, "neg great phone [e]好\n", w.String())
	assert.Equal(t, 1, w.closed)

	diskFull := errors.New("no space left on device")
	w = &closeRecorder{closeErr: diskFull}
	err = writeAndClose(w, insts, preds)
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "failed to close predictions")

	w = &closeRecorder{}
	err = writeAndClose(w, insts, nil)
	require.Error(t, err)
	assert.Equal(t, 1, w.closed, "closed after a failed write")
}

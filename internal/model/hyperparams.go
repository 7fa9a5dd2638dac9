// Package model assembles the classifier: hyperparameters, parameter tensors,
// the per-instance computation graph and the driver computing loss,
// gradients and predictions.
package model

import (
	"fmt"
)

// Default instance limits. Longer groups are truncated silently.
const (
	MaxSentenceLength = 2048
	MaxAttSize        = 10
	MaxEvalSize       = 10
	MaxEvalLength     = 32
)

// Word pooling names.
const (
	PoolMax = "max"
	PoolMin = "min"
	PoolAvg = "avg"
)

// HyperParams describes the network architecture.
type HyperParams struct {
	WordDim        int      `yaml:"word_dim" json:"word_dim" validate:"gt=0"`
	ExtWordDim     int      `yaml:"ext_word_dim" json:"ext_word_dim" validate:"gte=0"`
	WordContext    int      `yaml:"word_context" json:"word_context" validate:"gte=0"`
	WordHiddenSize int      `yaml:"word_hidden_size" json:"word_hidden_size" validate:"gt=0"`
	WordPoolings   []string `yaml:"word_poolings" json:"word_poolings" validate:"min=1,max=3,unique,dive,oneof=max min avg"`
	WordFineTune   bool     `yaml:"word_fine_tune" json:"word_fine_tune"`

	AttDim int `yaml:"att_dim" json:"att_dim" validate:"gt=0"`

	EvalCharDim        int `yaml:"eval_char_dim" json:"eval_char_dim" validate:"gt=0"`
	EvalCharContext    int `yaml:"eval_char_context" json:"eval_char_context" validate:"gte=0"`
	EvalCharHiddenSize int `yaml:"eval_char_hidden_size" json:"eval_char_hidden_size" validate:"gt=0"`

	PolarityDim        int `yaml:"polarity_dim" json:"polarity_dim" validate:"gt=0"`
	PolarityHiddenSize int `yaml:"polarity_hidden_size" json:"polarity_hidden_size" validate:"gt=0"`

	ConcatHiddenSize int `yaml:"concat_hidden_size" json:"concat_hidden_size" validate:"gt=0"`

	DropProb      float64 `yaml:"drop_prob" json:"drop_prob" validate:"gte=0,lt=1"`
	PolarDropProb float64 `yaml:"polar_drop_prob" json:"polar_drop_prob" validate:"gte=0,lt=1"`

	MaxSentenceLength int `yaml:"max_sentence_length" json:"max_sentence_length" validate:"gt=0,lte=65536"`
	MaxAttSize        int `yaml:"max_att_size" json:"max_att_size" validate:"gt=0,lte=1024"`
	MaxEvalSize       int `yaml:"max_eval_size" json:"max_eval_size" validate:"gt=0,lte=1024"`
	MaxEvalLength     int `yaml:"max_eval_length" json:"max_eval_length" validate:"gt=0,lte=1024"`

	// LabelSize is derived from the label alphabet.
	LabelSize int `yaml:"-" json:"label_size"`
}

// DefaultHyperParams returns the baseline architecture.
func DefaultHyperParams() HyperParams {
	return HyperParams{
		WordDim:            50,
		WordContext:        2,
		WordHiddenSize:     150,
		WordPoolings:       []string{PoolMax},
		WordFineTune:       true,
		AttDim:             20,
		EvalCharDim:        30,
		EvalCharContext:    1,
		EvalCharHiddenSize: 50,
		PolarityDim:        10,
		PolarityHiddenSize: 10,
		ConcatHiddenSize:   100,
		DropProb:           0.25,
		PolarDropProb:      0.1,
		MaxSentenceLength:  MaxSentenceLength,
		MaxAttSize:         MaxAttSize,
		MaxEvalSize:        MaxEvalSize,
		MaxEvalLength:      MaxEvalLength,
	}
}

// WordInputDim is the dimension of one word representation entering the window.
func (hp *HyperParams) WordInputDim() int {
	return hp.WordDim + hp.ExtWordDim
}

// WordWindowDim is the dimension of one word window output.
func (hp *HyperParams) WordWindowDim() int {
	return hp.WordInputDim() * (2*hp.WordContext + 1)
}

// WordSummaryDim is the dimension of the pooled word branch.
func (hp *HyperParams) WordSummaryDim() int {
	return hp.WordHiddenSize * len(hp.WordPoolings)
}

// AttSummaryDim is the dimension of the pooled attribute branch.
func (hp *HyperParams) AttSummaryDim() int {
	return hp.AttDim * 3
}

// EvalCharWindowDim is the dimension of one evaluation character window output.
func (hp *HyperParams) EvalCharWindowDim() int {
	return hp.EvalCharDim * (2*hp.EvalCharContext + 1)
}

// EvalSpanDim is the dimension of one pooled evaluation span.
func (hp *HyperParams) EvalSpanDim() int {
	return hp.EvalCharHiddenSize * 3
}

// EvalSummaryDim is the dimension of the pooled evaluation branch.
func (hp *HyperParams) EvalSummaryDim() int {
	return hp.EvalSpanDim() * 3
}

// String renders the hyperparameters for logs.
func (hp *HyperParams) String() string {
	return fmt.Sprintf(
		"word=%d+%d ctx=%d hidden=%d pool=%v att=%d evalChar=%d ctx=%d hidden=%d polar=%d/%d concat=%d drop=%.2f/%.2f labels=%d",
		hp.WordDim, hp.ExtWordDim, hp.WordContext, hp.WordHiddenSize, hp.WordPoolings,
		hp.AttDim, hp.EvalCharDim, hp.EvalCharContext, hp.EvalCharHiddenSize,
		hp.PolarityDim, hp.PolarityHiddenSize, hp.ConcatHiddenSize,
		hp.DropProb, hp.PolarDropProb, hp.LabelSize,
	)
}

package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nncnn/internal/graph"
)

// softmaxLoss computes the cross-entropy of softmax(scores) against gold and
// seeds the output gradient with (p - onehot(gold)) / batchSize.
//
// Uses the log-sum-exp trick for numerical stability. Returns the loss
// (already divided by batchSize) and whether argmax(scores) == gold.
func softmaxLoss(output graph.Node, gold, batchSize int) (float64, bool) {
	scores := output.Value()
	grad := output.Gradient()

	best := floats.MaxIdx(scores)
	maxScore := scores[best]
	sum := 0.0
	for i, s := range scores {
		grad[i] = math.Exp(s - maxScore)
		sum += grad[i]
	}
	logZ := maxScore + math.Log(sum)

	scale := 1 / float64(batchSize)
	for i := range grad {
		grad[i] = grad[i] / sum * scale
	}
	grad[gold] -= scale

	return (logZ - scores[gold]) * scale, best == gold
}

// softmax returns the normalized probabilities of scores.
func softmax(scores []float64) []float64 {
	probs := make([]float64, len(scores))
	maxScore := floats.Max(scores)
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs
}

// Package losses implements correlation-based losses for market prediction
// models, where the evaluation metric is the Pearson correlation between
// predicted and realized returns rather than a pointwise distance.
//
// Both losses follow the train.LossFn signature and return a scalar, so they
// plug directly into a gomlx trainer.
package losses

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Correlation returns 1 - mean Pearson correlation between labels[0] and
// predictions[0], computed per column over the batch (first) axis and then
// averaged. It is 0 for perfectly correlated predictions and 2 for perfectly
// anti-correlated ones.
//
// A constant column has zero variance and makes the result NaN; callers must
// feed non-constant targets.
func Correlation(labels, predictions []*Node) *Node {
	targets, preds := labels[0], predictions[0]
	if !targets.Shape().Equal(preds.Shape()) {
		Panicf("labels[0] (%s) and predictions[0] (%s) must have the same shape",
			targets.Shape(), preds.Shape())
	}
	targetDev := Sub(targets, ReduceAndKeep(targets, ReduceMean, 0))
	predDev := Sub(preds, ReduceAndKeep(preds, ReduceMean, 0))
	covariance := ReduceSum(Mul(targetDev, predDev), 0)
	norm := Sqrt(Mul(ReduceSum(Square(targetDev), 0), ReduceSum(Square(predDev), 0)))
	correlation := Div(covariance, norm)
	return OneMinus(ReduceAllMean(correlation))
}

// CorrelationExp is exp(Correlation): same minimum, but the gradient grows
// with the loss, penalizing badly decorrelated batches harder.
func CorrelationExp(labels, predictions []*Node) *Node {
	return Exp(Correlation(labels, predictions))
}

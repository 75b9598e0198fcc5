package models

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// attentionGate multiplies x elementwise by a learned sigmoid mask of the
// same feature width, produced by a small feed-forward stack. Values near
// zero suppress a feature, values near one let it through.
func attentionGate(ctx *context.Context, x *Node, hiddenSizes []int, activation Activation) *Node {
	gate := x
	for i, size := range hiddenSizes {
		gate = layers.DenseWithBias(ctx.Inf("gate_hidden_%d", i), gate, size)
		gate = activation.Apply(gate)
	}
	width := x.Shape().Dim(x.Rank() - 1)
	gate = layers.DenseWithBias(ctx.In("gate_output"), gate, width)
	return Mul(x, Sigmoid(gate))
}

package models

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// MLP is the feed-forward architecture for flat [batch, features] inputs:
// optional embeddings of the leading integer-coded columns, an optional
// attention gate over the (embedded) features, then a stack of hidden dense
// layers ending in a single linear output per example.
//
// Build it with NewMLP, adjust the configuration with the chained methods and
// call Done to add the model to the graph.
type MLP struct {
	ctx   *context.Context
	input *Node

	hiddenSizes    []int
	dropoutRate    float64
	activation     Activation
	attentionSizes []int
	cardinalities  []int
	embeddingDims  []int
}

// NewMLP configures an MLP over input, shaped [batch, features]. Defaults:
// hidden layers of sizes 32, 16 and 8, leaky relu activation, 10% dropout, no
// attention gate, no embeddings.
func NewMLP(ctx *context.Context, input *Node) *MLP {
	if input.Rank() != 2 {
		Panicf("MLP input must be shaped [batch, features], got %s", input.Shape())
	}
	return &MLP{
		ctx:         ctx,
		input:       input,
		hiddenSizes: []int{32, 16, 8},
		dropoutRate: 0.1,
		activation:  ActivationLeakyRelu,
	}
}

// HiddenLayers sets the sizes of the hidden dense layers.
func (c *MLP) HiddenLayers(sizes ...int) *MLP {
	for _, size := range sizes {
		if size <= 0 {
			Panicf("MLP hidden layer sizes must be positive, got %v", sizes)
		}
	}
	c.hiddenSizes = sizes
	return c
}

// Activation sets the non-linearity used after each hidden layer and inside
// the attention gate.
func (c *MLP) Activation(activation Activation) *MLP {
	c.activation = activation
	return c
}

// Dropout sets the dropout rate applied after each hidden layer during
// training. Zero disables it.
func (c *MLP) Dropout(rate float64) *MLP {
	if rate < 0 || rate >= 1 {
		Panicf("MLP dropout rate must be in [0, 1), got %g", rate)
	}
	c.dropoutRate = rate
	return c
}

// AttentionGate enables the multiplicative feature gate, with the given
// hidden layer sizes for the gate network. Called without arguments it uses
// one hidden layer of size 8.
func (c *MLP) AttentionGate(hiddenSizes ...int) *MLP {
	if len(hiddenSizes) == 0 {
		hiddenSizes = []int{8}
	}
	c.attentionSizes = hiddenSizes
	return c
}

// Embeddings routes the leading len(dims) input columns, holding integer
// codes in [0, cardinalities[i]), through embedding tables of the given
// dimensions.
func (c *MLP) Embeddings(cardinalities, dims []int) *MLP {
	validateEmbeddings(c.input.Shape().Dim(1), cardinalities, dims)
	c.cardinalities = cardinalities
	c.embeddingDims = dims
	return c
}

// Done builds the model and returns the predictions, shaped [batch].
func (c *MLP) Done() *Node {
	ctx := c.ctx
	x := c.input
	if len(c.embeddingDims) > 0 {
		x = applyEmbeddings(ctx.In("embeddings"), x, c.cardinalities, c.embeddingDims)
	}
	if c.attentionSizes != nil {
		x = attentionGate(ctx.In("attention"), x, c.attentionSizes, c.activation)
	}
	for i, size := range c.hiddenSizes {
		layerCtx := ctx.Inf("hidden_layer_%d", i)
		x = layers.DenseWithBias(layerCtx, x, size)
		x = c.activation.Apply(x)
		if c.dropoutRate > 0 {
			x = layers.DropoutStatic(layerCtx, x, c.dropoutRate)
		}
	}
	x = layers.DenseWithBias(ctx.In("output_layer"), x, 1)
	return Squeeze(x, -1)
}

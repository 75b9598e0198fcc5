package models

import (
	"strings"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/lstm"
)

// CellType selects the recurrent cell of the RNN architecture.
type CellType int

const (
	// CellLSTM uses LSTM cells.
	CellLSTM CellType = iota

	// CellElman uses plain tanh recurrent cells.
	CellElman
)

var cellNames = map[string]CellType{
	"lstm": CellLSTM,
	"rnn":  CellElman,
}

// String implements fmt.Stringer.
func (c CellType) String() string {
	switch c {
	case CellLSTM:
		return "lstm"
	case CellElman:
		return "rnn"
	}
	return "invalid"
}

// CellFromName converts a cell name ("lstm" or "rnn") to its CellType.
// Matching is case-insensitive. It panics on unknown names.
func CellFromName(name string) CellType {
	cell, found := cellNames[strings.ToLower(name)]
	if !found {
		Panicf("unknown recurrent cell %q: valid values are lstm and rnn", name)
	}
	return cell
}

// State holds the final recurrent state of every RNN layer, each node shaped
// [1, batch, hiddenSize]. Cell is only set for CellLSTM. Feed it back through
// RNN.InitialState to continue a sequence across consecutive time windows.
type State struct {
	Hidden []*Node
	Cell   []*Node
}

// RNN is the recurrent architecture for [batch, timesteps, features] inputs:
// optional embeddings and attention gate on the feature axis, a stack of
// recurrent layers, then a dense regressor shared across timesteps producing
// one prediction per (example, timestep).
//
// Build it with NewRNN, adjust the configuration with the chained methods and
// call Done to add the model to the graph.
type RNN struct {
	ctx   *context.Context
	input *Node

	cell           CellType
	hiddenSize     int
	numLayers      int
	dropoutRate    float64
	activation     Activation
	attentionSizes []int
	cardinalities  []int
	embeddingDims  []int
	initial        *State
}

// NewRNN configures an RNN over input, shaped [batch, timesteps, features].
// Defaults: one LSTM layer with hidden size 32, leaky relu activation in the
// regressor head, 10% dropout, no attention gate, no embeddings.
func NewRNN(ctx *context.Context, input *Node) *RNN {
	if input.Rank() != 3 {
		Panicf("RNN input must be shaped [batch, timesteps, features], got %s", input.Shape())
	}
	return &RNN{
		ctx:         ctx,
		input:       input,
		cell:        CellLSTM,
		hiddenSize:  32,
		numLayers:   1,
		dropoutRate: 0.1,
		activation:  ActivationLeakyRelu,
	}
}

// Cell selects the recurrent cell type.
func (c *RNN) Cell(cell CellType) *RNN {
	c.cell = cell
	return c
}

// HiddenSize sets the recurrent state size of every layer.
func (c *RNN) HiddenSize(size int) *RNN {
	if size <= 0 {
		Panicf("RNN hidden size must be positive, got %d", size)
	}
	c.hiddenSize = size
	return c
}

// NumLayers sets the number of stacked recurrent layers.
func (c *RNN) NumLayers(n int) *RNN {
	if n <= 0 {
		Panicf("RNN must have at least one layer, got %d", n)
	}
	c.numLayers = n
	return c
}

// Dropout sets the dropout rate applied between recurrent layers and in the
// regressor head during training. Zero disables it.
func (c *RNN) Dropout(rate float64) *RNN {
	if rate < 0 || rate >= 1 {
		Panicf("RNN dropout rate must be in [0, 1), got %g", rate)
	}
	c.dropoutRate = rate
	return c
}

// Activation sets the non-linearity of the regressor head and the attention
// gate.
func (c *RNN) Activation(activation Activation) *RNN {
	c.activation = activation
	return c
}

// AttentionGate enables a multiplicative gate over the feature axis, applied
// per timestep before the recurrent layers. Called without arguments it uses
// one hidden layer of size 8.
func (c *RNN) AttentionGate(hiddenSizes ...int) *RNN {
	if len(hiddenSizes) == 0 {
		hiddenSizes = []int{8}
	}
	c.attentionSizes = hiddenSizes
	return c
}

// Embeddings routes the leading len(dims) feature columns, holding integer
// codes in [0, cardinalities[i]), through embedding tables of the given
// dimensions. The same table is shared across timesteps.
func (c *RNN) Embeddings(cardinalities, dims []int) *RNN {
	validateEmbeddings(c.input.Shape().Dim(2), cardinalities, dims)
	c.cardinalities = cardinalities
	c.embeddingDims = dims
	return c
}

// InitialState seeds the recurrent layers with the final state of a previous
// window, usually the State returned by an earlier Done on the same context.
func (c *RNN) InitialState(state *State) *RNN {
	c.initial = state
	return c
}

// Done builds the model. It returns the predictions, shaped
// [batch, timesteps], and the final recurrent State of every layer.
func (c *RNN) Done() (*Node, *State) {
	ctx := c.ctx
	x := c.input
	if c.initial != nil {
		if len(c.initial.Hidden) != c.numLayers {
			Panicf("initial state has %d layers, the RNN has %d", len(c.initial.Hidden), c.numLayers)
		}
		if c.cell == CellLSTM && len(c.initial.Cell) != c.numLayers {
			Panicf("initial state is missing cell states for %d LSTM layers", c.numLayers)
		}
	}
	if len(c.embeddingDims) > 0 {
		x = applyEmbeddings(ctx.In("embeddings"), x, c.cardinalities, c.embeddingDims)
	}
	if c.attentionSizes != nil {
		x = attentionGate(ctx.In("attention"), x, c.attentionSizes, c.activation)
	}

	state := &State{}
	for layer := 0; layer < c.numLayers; layer++ {
		layerCtx := ctx.Inf("recurrent_layer_%d", layer)
		var lastHidden *Node
		switch c.cell {
		case CellLSTM:
			builder := lstm.New(layerCtx, x, c.hiddenSize)
			if c.initial != nil {
				builder.InitialStates(c.initial.Hidden[layer], c.initial.Cell[layer])
			}
			allHidden, lastH, lastC := builder.Done()
			// [timesteps, 1, batch, hidden] -> [batch, timesteps, hidden]
			x = Transpose(Squeeze(allHidden, 1), 0, 1)
			lastHidden = lastH
			state.Cell = append(state.Cell, lastC)
		case CellElman:
			x, lastHidden = c.elmanLayer(layerCtx, x, layer)
		default:
			Panicf("invalid recurrent cell value %d", c.cell)
		}
		state.Hidden = append(state.Hidden, lastHidden)
		if c.dropoutRate > 0 && layer < c.numLayers-1 {
			x = layers.DropoutStatic(layerCtx, x, c.dropoutRate)
		}
	}

	// The regressor head is shared across timesteps: fold time into the batch
	// axis, regress, unfold.
	batchSize, seqSize := x.Shape().Dim(0), x.Shape().Dim(1)
	headCtx := ctx.In("regressor")
	out := Reshape(x, batchSize*seqSize, c.hiddenSize)
	out = layers.DenseWithBias(headCtx.In("hidden"), out, c.hiddenSize)
	out = c.activation.Apply(out)
	if c.dropoutRate > 0 {
		out = layers.DropoutStatic(headCtx, out, c.dropoutRate)
	}
	out = layers.DenseWithBias(headCtx.In("output"), out, 1)
	return Reshape(out, batchSize, seqSize), state
}

// elmanLayer unrolls a plain tanh recurrence over the time axis:
// h_t = tanh(x_t·Wx + h_{t-1}·Wh + b).
func (c *RNN) elmanLayer(ctx *context.Context, x *Node, layer int) (seqOut, lastHidden *Node) {
	g := x.Graph()
	dtype := x.DType()
	batchSize := x.Shape().Dim(0)
	seqSize := x.Shape().Dim(1)
	featuresSize := x.Shape().Dim(2)

	inputW := ctx.VariableWithShape("input_weights", shapes.Make(dtype, featuresSize, c.hiddenSize)).ValueGraph(g)
	recurrentW := ctx.VariableWithShape("recurrent_weights", shapes.Make(dtype, c.hiddenSize, c.hiddenSize)).ValueGraph(g)
	biases := ctx.VariableWithShape("biases", shapes.Make(dtype, c.hiddenSize)).ValueGraph(g)

	// Project the whole sequence at once, only the recurrence is unrolled.
	projected := Einsum("btf,fh->bth", x, inputW)
	biasRow := InsertAxes(biases, 0)

	var hidden *Node
	if c.initial != nil {
		hidden = Squeeze(c.initial.Hidden[layer], 0)
	} else {
		hidden = Zeros(g, shapes.Make(dtype, batchSize, c.hiddenSize))
	}
	steps := make([]*Node, seqSize)
	for t := 0; t < seqSize; t++ {
		stepX := Reshape(Slice(projected, AxisRange(), AxisElem(t)), batchSize, c.hiddenSize)
		hidden = Tanh(Add(Add(stepX, MatMul(hidden, recurrentW)), biasRow))
		steps[t] = hidden
	}
	return Stack(steps, 1), InsertAxes(hidden, 0)
}

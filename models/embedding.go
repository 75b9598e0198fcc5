package models

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// EmbeddedWidth returns the feature width after the leading len(dims) integer
// coded columns are replaced by their embeddings: each column of width 1
// becomes dims[i] values, the remaining columns pass through.
func EmbeddedWidth(inputSize int, dims []int) int {
	width := inputSize
	for _, d := range dims {
		width += d - 1
	}
	return width
}

// validateEmbeddings panics on inconsistent embedding configurations.
func validateEmbeddings(inputSize int, cardinalities, dims []int) {
	if len(cardinalities) != len(dims) {
		Panicf("embeddings: got %d cardinalities for %d dimensions, they must pair up",
			len(cardinalities), len(dims))
	}
	if len(dims) > inputSize {
		Panicf("embeddings: %d embedded columns but the input only has %d features", len(dims), inputSize)
	}
	for i := range dims {
		if cardinalities[i] <= 0 || dims[i] <= 0 {
			Panicf("embeddings: cardinality (%d) and dimension (%d) of column %d must be positive",
				cardinalities[i], dims[i], i)
		}
	}
}

// applyEmbeddings treats the leading len(dims) columns of x as integer codes,
// maps each through its own embedding table and concatenates the results with
// the remaining columns. x may be rank 2 ([batch, features]) or rank 3
// ([batch, time, features]); the feature axis is always the last one.
func applyEmbeddings(ctx *context.Context, x *Node, cardinalities, dims []int) *Node {
	featAxis := x.Rank() - 1
	numFeatures := x.Shape().Dim(featAxis)
	validateEmbeddings(numFeatures, cardinalities, dims)

	fullRange := make([]SliceAxisSpec, featAxis)
	for i := range fullRange {
		fullRange[i] = AxisRange()
	}

	parts := make([]*Node, 0, len(dims)+1)
	for i, dim := range dims {
		specs := append(append([]SliceAxisSpec{}, fullRange...), AxisRange(i, i+1))
		codes := ConvertDType(Slice(x, specs...), dtypes.Int32)
		embedded := layers.Embedding(ctx.Inf("embedding_%d", i), codes, x.DType(), cardinalities[i], dim)
		parts = append(parts, embedded)
	}
	if len(dims) < numFeatures {
		specs := append(append([]SliceAxisSpec{}, fullRange...), AxisRangeToEnd(len(dims)))
		parts = append(parts, Slice(x, specs...))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return Concatenate(parts, -1)
}

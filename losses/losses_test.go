package losses

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackend(t *testing.T) backends.Backend {
	backends.DefaultConfig = "go"
	backend, err := backends.New()
	require.NoError(t, err)
	return backend
}

func evalLoss(t *testing.T, lossFn func(labels, predictions []*Node) *Node, labels, preds *tensors.Tensor) float64 {
	backend := testBackend(t)
	got, err := ExecOnce(backend, func(labels, preds *Node) *Node {
		return lossFn([]*Node{labels}, []*Node{preds})
	}, labels, preds)
	require.NoError(t, err)
	var value float64
	tensors.MustConstFlatData(got, func(flat []float64) { value = flat[0] })
	return value
}

func TestCorrelationPerfect(t *testing.T) {
	labels := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 4)
	// Any positive affine transform of the labels is perfectly correlated.
	preds := tensors.FromFlatDataAndDimensions([]float64{3, 5, 7, 9}, 4)
	assert.InDelta(t, 0, evalLoss(t, Correlation, labels, preds), 1e-9)
}

func TestCorrelationAnti(t *testing.T) {
	labels := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 4)
	preds := tensors.FromFlatDataAndDimensions([]float64{4, 3, 2, 1}, 4)
	assert.InDelta(t, 2, evalLoss(t, Correlation, labels, preds), 1e-9)
}

func TestCorrelationPerColumn(t *testing.T) {
	// Column 0 is perfectly correlated, column 1 perfectly anti-correlated:
	// the mean correlation is 0 and the loss 1.
	labels := tensors.FromFlatDataAndDimensions([]float64{
		1, 1,
		2, 2,
		3, 3,
	}, 3, 2)
	preds := tensors.FromFlatDataAndDimensions([]float64{
		1, -1,
		2, -2,
		3, -3,
	}, 3, 2)
	assert.InDelta(t, 1, evalLoss(t, Correlation, labels, preds), 1e-9)
}

func TestCorrelationExp(t *testing.T) {
	labels := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 4)

	perfect := tensors.FromFlatDataAndDimensions([]float64{2, 4, 6, 8}, 4)
	assert.InDelta(t, 1, evalLoss(t, CorrelationExp, labels, perfect), 1e-9)

	anti := tensors.FromFlatDataAndDimensions([]float64{4, 3, 2, 1}, 4)
	assert.InDelta(t, math.Exp(2), evalLoss(t, CorrelationExp, labels, anti), 1e-6)
}

func TestCorrelationShapeMismatch(t *testing.T) {
	backend := testBackend(t)
	labels := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 4)
	preds := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 2, 2)
	_, err := ExecOnce(backend, func(labels, preds *Node) *Node {
		return Correlation([]*Node{labels}, []*Node{preds})
	}, labels, preds)
	require.Error(t, err)
}

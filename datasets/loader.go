// Package datasets provides in-memory train.Dataset implementations serving
// preprocessed market data to a gomlx trainer.
package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// TensorLoader pairs a feature tensor with its targets and yields them one
// sample at a time, in order. Float64 inputs are converted to float32 once,
// at construction.
//
// It implements train.Dataset for a single epoch: Yield returns io.EOF after
// the last sample until Reset is called. It is not safe for concurrent use.
type TensorLoader struct {
	name string
	x, y *tensors.Tensor
	next int
}

// NewTensorLoader creates a TensorLoader over x and y, whose leading (sample)
// dimensions must match.
func NewTensorLoader(name string, x, y *tensors.Tensor) (*TensorLoader, error) {
	if x.Shape().Rank() == 0 || y.Shape().Rank() == 0 {
		return nil, errors.New("features and targets must have a leading sample dimension")
	}
	if x.Shape().Dim(0) != y.Shape().Dim(0) {
		return nil, errors.Errorf("features have %d samples, targets have %d",
			x.Shape().Dim(0), y.Shape().Dim(0))
	}
	var err error
	if x, err = toFloat32(x); err != nil {
		return nil, errors.WithMessage(err, "features")
	}
	if y, err = toFloat32(y); err != nil {
		return nil, errors.WithMessage(err, "targets")
	}
	return &TensorLoader{name: name, x: x, y: y}, nil
}

// Len returns the number of samples.
func (ds *TensorLoader) Len() int { return ds.x.Shape().Dim(0) }

// At returns sample i as a float32 (features, targets) pair, without the
// sample dimension.
func (ds *TensorLoader) At(i int) (x, y *tensors.Tensor) {
	return sampleAt(ds.x, i), sampleAt(ds.y, i)
}

// Name implements train.Dataset.
func (ds *TensorLoader) Name() string { return ds.name }

// Reset implements train.Dataset, restarting the iteration.
func (ds *TensorLoader) Reset() { ds.next = 0 }

// Yield implements train.Dataset, returning one sample per call and io.EOF at
// the end of the epoch.
func (ds *TensorLoader) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if ds.next >= ds.Len() {
		return nil, nil, nil, io.EOF
	}
	x, y := ds.At(ds.next)
	ds.next++
	return ds, []*tensors.Tensor{x}, []*tensors.Tensor{y}, nil
}

var _ train.Dataset = (*TensorLoader)(nil)

// toFloat32 converts a float64 tensor to float32; float32 passes through.
func toFloat32(t *tensors.Tensor) (*tensors.Tensor, error) {
	switch t.DType() {
	case dtypes.Float32:
		return t, nil
	case dtypes.Float64:
		out := make([]float32, t.Size())
		tensors.MustConstFlatData(t, func(flat []float64) {
			for i, v := range flat {
				out[i] = float32(v)
			}
		})
		return tensors.FromFlatDataAndDimensions(out, t.Shape().Dimensions...), nil
	}
	return nil, errors.Errorf("expected a float32 or float64 tensor, got %s", t.DType())
}

// sampleAt extracts row i of the leading dimension of a float32 tensor.
func sampleAt(t *tensors.Tensor, i int) *tensors.Tensor {
	dims := t.Shape().Dimensions
	stride := 1
	for _, d := range dims[1:] {
		stride *= d
	}
	out := make([]float32, stride)
	tensors.MustConstFlatData(t, func(flat []float32) {
		copy(out, flat[i*stride:(i+1)*stride])
	})
	if len(dims) == 1 {
		return tensors.FromScalar(out[0])
	}
	return tensors.FromFlatDataAndDimensions(out, dims[1:]...)
}

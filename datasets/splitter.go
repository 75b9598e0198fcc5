package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// TimeSplitter cuts [samples, timesteps, ...] features and
// [samples, timesteps] targets into consecutive non-overlapping windows along
// the time axis and yields one window per call, all samples included. The
// last window is shorter when the window size doesn't divide the number of
// timesteps. Windows never overlap; a rolling variant would share timesteps
// between consecutive windows instead.
//
// It implements train.Dataset for a single epoch and is not safe for
// concurrent use.
type TimeSplitter struct {
	name               string
	xWindows, yWindows []*tensors.Tensor
	next               int
}

// NewTimeSplitter splits x ([samples, timesteps, features]) and y
// ([samples, timesteps]) into windows of windowSize timesteps.
func NewTimeSplitter(name string, x, y *tensors.Tensor, windowSize int) (*TimeSplitter, error) {
	if windowSize <= 0 {
		return nil, errors.Errorf("window size must be positive, got %d", windowSize)
	}
	if x.Shape().Rank() != 3 {
		return nil, errors.Errorf("features must have shape [samples, timesteps, features], got %s", x.Shape())
	}
	if y.Shape().Rank() != 2 {
		return nil, errors.Errorf("targets must have shape [samples, timesteps], got %s", y.Shape())
	}
	if x.Shape().Dim(0) != y.Shape().Dim(0) || x.Shape().Dim(1) != y.Shape().Dim(1) {
		return nil, errors.Errorf("features %s and targets %s disagree on samples or timesteps",
			x.Shape(), y.Shape())
	}
	timesteps := x.Shape().Dim(1)
	ds := &TimeSplitter{name: name}
	for start := 0; start < timesteps; start += windowSize {
		end := start + windowSize
		if end > timesteps {
			end = timesteps
		}
		xWindow, err := timeWindow(x, start, end)
		if err != nil {
			return nil, err
		}
		yWindow, err := timeWindow(y, start, end)
		if err != nil {
			return nil, err
		}
		ds.xWindows = append(ds.xWindows, xWindow)
		ds.yWindows = append(ds.yWindows, yWindow)
	}
	return ds, nil
}

// Len returns the number of windows.
func (ds *TimeSplitter) Len() int { return len(ds.xWindows) }

// At returns window i as a (features, targets) pair.
func (ds *TimeSplitter) At(i int) (x, y *tensors.Tensor) {
	return ds.xWindows[i], ds.yWindows[i]
}

// Name implements train.Dataset.
func (ds *TimeSplitter) Name() string { return ds.name }

// Reset implements train.Dataset, restarting the iteration.
func (ds *TimeSplitter) Reset() { ds.next = 0 }

// Yield implements train.Dataset, returning one window per call and io.EOF
// at the end of the epoch.
func (ds *TimeSplitter) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if ds.next >= ds.Len() {
		return nil, nil, nil, io.EOF
	}
	x, y := ds.At(ds.next)
	ds.next++
	return ds, []*tensors.Tensor{x}, []*tensors.Tensor{y}, nil
}

var _ train.Dataset = (*TimeSplitter)(nil)

// timeWindow slices [start, end) of the time (second) axis, keeping all other
// axes.
func timeWindow(t *tensors.Tensor, start, end int) (*tensors.Tensor, error) {
	switch t.DType() {
	case dtypes.Float32:
		return timeWindowData[float32](t, start, end), nil
	case dtypes.Float64:
		return timeWindowData[float64](t, start, end), nil
	case dtypes.Int32:
		return timeWindowData[int32](t, start, end), nil
	}
	return nil, errors.Errorf("unsupported tensor dtype %s", t.DType())
}

func timeWindowData[T float32 | float64 | int32](t *tensors.Tensor, start, end int) *tensors.Tensor {
	dims := t.Shape().Dimensions
	samples, timesteps := dims[0], dims[1]
	inner := 1
	for _, d := range dims[2:] {
		inner *= d
	}
	width := end - start
	out := make([]T, samples*width*inner)
	tensors.MustConstFlatData(t, func(flat []T) {
		for i := 0; i < samples; i++ {
			src := (i*timesteps + start) * inner
			dst := i * width * inner
			copy(out[dst:dst+width*inner], flat[src:src+width*inner])
		}
	})
	newDims := append([]int{samples, width}, dims[2:]...)
	return tensors.FromFlatDataAndDimensions(out, newDims...)
}

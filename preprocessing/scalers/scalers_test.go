package scalers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKindFromName(t *testing.T) {
	for name, want := range kindNames {
		got, err := KindFromName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}
	got, err := KindFromName("Robust")
	require.NoError(t, err)
	assert.Equal(t, KindRobust, got)

	_, err = KindFromName("normalizer")
	require.ErrorContains(t, err, "unknown scaler")
}

func TestTwoPhaseLifecycle(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 10, 2, 20, 3, 30})
	for _, kind := range []Kind{KindStandard, KindMinMax, KindMaxAbs, KindRobust} {
		s, err := New(kind, Options{})
		require.NoError(t, err)
		assert.False(t, s.IsFitted())

		_, err = s.Transform(x)
		require.Error(t, err, "%s: transform before fit must fail", kind)
		_, err = s.InverseTransform(x)
		require.Error(t, err, "%s: inverse transform before fit must fail", kind)

		require.NoError(t, s.Fit(x))
		assert.True(t, s.IsFitted())
		require.Error(t, s.Fit(x), "%s: fitting twice must fail", kind)

		_, err = s.Transform(mat.NewDense(2, 3, nil))
		require.Error(t, err, "%s: column count mismatch must fail", kind)
	}
}

func TestStandardScaler(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 100,
		2, 200,
		3, 300,
		4, 400,
	})
	s, err := New(KindStandard, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)

	rows, cols := got.Dims()
	for j := 0; j < cols; j++ {
		mean, sumSq := 0.0, 0.0
		for i := 0; i < rows; i++ {
			mean += got.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			sumSq += (got.At(i, j) - mean) * (got.At(i, j) - mean)
		}
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, math.Sqrt(sumSq/float64(rows)), 1e-12)
	}
}

func TestStandardScalerOptions(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{2, 4, 6})
	s, err := New(KindStandard, Options{NoMean: true, NoStd: true})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(x, got, 1e-12), "disabling both steps must be the identity")
}

func TestMinMaxScaler(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		0, -1,
		5, 0,
		10, 1,
	})
	s, err := New(KindMinMax, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)
	want := mat.NewDense(3, 2, []float64{
		0, 0,
		0.5, 0.5,
		1, 1,
	})
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestMinMaxScalerCustomRange(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 10})
	s, err := New(KindMinMax, Options{RangeMin: -1, RangeMax: 1})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)
	assert.InDelta(t, -1, got.At(0, 0), 1e-12)
	assert.InDelta(t, 1, got.At(1, 0), 1e-12)

	_, err = New(KindMinMax, Options{RangeMin: 1, RangeMax: 1})
	require.ErrorContains(t, err, "RangeMin < RangeMax")
}

func TestMaxAbsScaler(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{-4, 2, 1})
	s, err := New(KindMaxAbs, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)
	assert.InDelta(t, -1, got.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, got.At(1, 0), 1e-12)
	assert.InDelta(t, 0.25, got.At(2, 0), 1e-12)
}

func TestRobustScaler(t *testing.T) {
	// An outlier at 1000 barely moves the median and IQR.
	x := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 1000})
	s, err := New(KindRobust, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Fit(x))

	got, err := s.Transform(x)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.At(2, 0), 1e-12, "the median must map to zero")
	assert.Less(t, math.Abs(got.At(0, 0)), 1.0)

	_, err = New(KindRobust, Options{QuantileLow: 80, QuantileHigh: 20})
	require.Error(t, err)
}

func TestConstantColumnPassesThrough(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		7, 1,
		7, 2,
		7, 3,
	})
	for _, kind := range []Kind{KindStandard, KindMaxAbs, KindRobust} {
		s, err := New(kind, Options{})
		require.NoError(t, err)
		require.NoError(t, s.Fit(x))
		got, err := s.Transform(x)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			assert.False(t, math.IsNaN(got.At(i, 0)), "%s: constant column must not divide by zero", kind)
			assert.False(t, math.IsInf(got.At(i, 0), 0), "%s: constant column must not divide by zero", kind)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		1.5, -2, 30,
		0.5, 4, -10,
		-3, 8, 0,
		2, -6, 25,
	})
	for _, kind := range []Kind{KindStandard, KindMinMax, KindMaxAbs, KindRobust} {
		s, err := New(kind, Options{})
		require.NoError(t, err)
		require.NoError(t, s.Fit(x))

		scaled, err := s.Transform(x)
		require.NoError(t, err)
		back, err := s.InverseTransform(scaled)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(x, back, 1e-9),
			"%s: inverse transform must undo transform", kind)
	}
}

func TestFromName(t *testing.T) {
	s, err := FromName("standard", Options{})
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = FromName("bogus", Options{})
	require.Error(t, err)
}

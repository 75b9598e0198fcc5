package scalers

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minMaxScaler rescales each column from its observed [min, max] to the target
// range in Options.
type minMaxScaler struct {
	affine
	opts Options
}

func (s *minMaxScaler) Fit(x mat.Matrix) error {
	if err := s.checkFit(x); err != nil {
		return err
	}
	_, cols := x.Dims()
	targetSpan := s.opts.RangeMax - s.opts.RangeMin
	offset := make([]float64, cols)
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := column(x, j)
		dataMin, dataMax := floats.Min(col), floats.Max(col)
		span := dataMax - dataMin
		if span == 0 {
			// Constant column: only shift it to the start of the range.
			scale[j] = 1
			offset[j] = dataMin - s.opts.RangeMin
			continue
		}
		scale[j] = span / targetSpan
		offset[j] = dataMin - s.opts.RangeMin*scale[j]
	}
	s.setFitted(offset, scale)
	return nil
}

package scalers

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// standardScaler centers each column to zero mean and scales it to unit
// variance. Either step can be disabled through Options.
type standardScaler struct {
	affine
	opts Options
}

func (s *standardScaler) Fit(x mat.Matrix) error {
	if err := s.checkFit(x); err != nil {
		return err
	}
	_, cols := x.Dims()
	offset := make([]float64, cols)
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := column(x, j)
		if !s.opts.NoMean {
			offset[j] = stat.Mean(col, nil)
		}
		if s.opts.NoStd {
			scale[j] = 1
		} else {
			scale[j] = stat.PopStdDev(col, nil)
		}
	}
	s.setFitted(offset, scale)
	return nil
}

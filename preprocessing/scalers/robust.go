package scalers

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// robustScaler centers each column on its median and scales it by the range
// between two quantiles (by default the inter-quartile range), so a few
// extreme values don't dominate the fit.
type robustScaler struct {
	affine
	opts Options
}

func (s *robustScaler) Fit(x mat.Matrix) error {
	if err := s.checkFit(x); err != nil {
		return err
	}
	_, cols := x.Dims()
	offset := make([]float64, cols)
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := column(x, j)
		sort.Float64s(col)
		if !s.opts.NoCentering {
			offset[j] = stat.Quantile(0.5, stat.LinInterp, col, nil)
		}
		if s.opts.NoScaling {
			scale[j] = 1
		} else {
			low := stat.Quantile(s.opts.QuantileLow/100, stat.LinInterp, col, nil)
			high := stat.Quantile(s.opts.QuantileHigh/100, stat.LinInterp, col, nil)
			scale[j] = high - low
		}
	}
	s.setFitted(offset, scale)
	return nil
}

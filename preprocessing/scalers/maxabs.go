package scalers

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxAbsScaler divides each column by its maximum absolute value, mapping the
// data into [-1, 1] without shifting it. It preserves sparsity and sign.
type maxAbsScaler struct {
	affine
}

func (s *maxAbsScaler) Fit(x mat.Matrix) error {
	if err := s.checkFit(x); err != nil {
		return err
	}
	rows, cols := x.Dims()
	offset := make([]float64, cols)
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		maxAbs := 0.0
		for i := 0; i < rows; i++ {
			maxAbs = math.Max(maxAbs, math.Abs(x.At(i, j)))
		}
		scale[j] = maxAbs
	}
	s.setFitted(offset, scale)
	return nil
}

// Package scalers implements column-wise feature scaling for numeric matrices.
//
// All scalers are affine per column, x' = (x - offset) / scale, and differ only
// in how Fit estimates offset and scale. They follow a strict two-phase
// lifecycle: a scaler is created unfitted, Fit may be called exactly once, and
// Transform/InverseTransform fail until it has been.
package scalers

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind enumerates the supported scaler families.
type Kind int

const (
	// KindStandard centers each column to zero mean and scales to unit variance.
	KindStandard Kind = iota

	// KindMinMax rescales each column to a target range, [0, 1] by default.
	KindMinMax

	// KindMaxAbs divides each column by its maximum absolute value.
	KindMaxAbs

	// KindRobust centers on the median and scales by an inter-quantile range,
	// making it insensitive to outliers.
	KindRobust
)

var kindNames = map[string]Kind{
	"standard": KindStandard,
	"minmax":   KindMinMax,
	"maxabs":   KindMaxAbs,
	"robust":   KindRobust,
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindMinMax:
		return "minmax"
	case KindMaxAbs:
		return "maxabs"
	case KindRobust:
		return "robust"
	}
	return "invalid"
}

// KindFromName converts a scaler family name to its Kind. Matching is
// case-insensitive. It returns an error for unknown names.
func KindFromName(name string) (Kind, error) {
	kind, found := kindNames[strings.ToLower(name)]
	if !found {
		return Kind(0), errors.Errorf("unknown scaler %q: valid values are standard, minmax, maxabs and robust", name)
	}
	return kind, nil
}

// Options configures the scaler families. The zero value selects the usual
// defaults of each family. Fields are only read by the family they document.
type Options struct {
	// NoMean disables centering for KindStandard.
	NoMean bool

	// NoStd disables unit-variance scaling for KindStandard.
	NoStd bool

	// RangeMin and RangeMax set the target range for KindMinMax.
	// Leaving both at zero selects [0, 1].
	RangeMin, RangeMax float64

	// QuantileLow and QuantileHigh set the percentile range (in (0, 100)) used
	// by KindRobust. Leaving both at zero selects [25, 75].
	QuantileLow, QuantileHigh float64

	// NoCentering disables the median subtraction for KindRobust.
	NoCentering bool

	// NoScaling disables the inter-quantile scaling for KindRobust.
	NoScaling bool
}

// Scaler is the common interface of all scaler families.
//
// Implementations are not safe for concurrent use during Fit.
type Scaler interface {
	// Fit estimates the scaling parameters from x, one set per column.
	// Fitting twice is an error.
	Fit(x mat.Matrix) error

	// Transform returns a new matrix with the fitted scaling applied.
	// It fails if the scaler is not fitted or if the number of columns
	// doesn't match the fitted data.
	Transform(x mat.Matrix) (*mat.Dense, error)

	// InverseTransform undoes Transform.
	InverseTransform(x mat.Matrix) (*mat.Dense, error)

	// IsFitted reports whether Fit has been called.
	IsFitted() bool
}

// New creates a scaler of the given Kind. It validates opts eagerly, so
// misconfiguration surfaces at construction and not at Fit time.
func New(kind Kind, opts Options) (Scaler, error) {
	switch kind {
	case KindStandard:
		return &standardScaler{opts: opts}, nil
	case KindMinMax:
		if opts.RangeMin == 0 && opts.RangeMax == 0 {
			opts.RangeMax = 1
		}
		if opts.RangeMin >= opts.RangeMax {
			return nil, errors.Errorf("minmax scaler requires RangeMin < RangeMax, got [%g, %g]",
				opts.RangeMin, opts.RangeMax)
		}
		return &minMaxScaler{opts: opts}, nil
	case KindMaxAbs:
		return &maxAbsScaler{}, nil
	case KindRobust:
		if opts.QuantileLow == 0 && opts.QuantileHigh == 0 {
			opts.QuantileLow, opts.QuantileHigh = 25, 75
		}
		if opts.QuantileLow >= opts.QuantileHigh || opts.QuantileLow < 0 || opts.QuantileHigh > 100 {
			return nil, errors.Errorf("robust scaler requires 0 <= QuantileLow < QuantileHigh <= 100, got [%g, %g]",
				opts.QuantileLow, opts.QuantileHigh)
		}
		return &robustScaler{opts: opts}, nil
	}
	return nil, errors.Errorf("invalid scaler kind %d", kind)
}

// FromName creates a scaler from its family name. See KindFromName.
func FromName(name string, opts Options) (Scaler, error) {
	kind, err := KindFromName(name)
	if err != nil {
		return nil, err
	}
	return New(kind, opts)
}

// affine holds the per-column parameters shared by every scaler family and
// implements the transform half of the Scaler interface.
type affine struct {
	offset, scale []float64
	fitted        bool
}

func (a *affine) IsFitted() bool { return a.fitted }

// setFitted stores the per-column parameters, replacing zero scales by 1 so
// constant columns pass through unchanged instead of dividing by zero.
func (a *affine) setFitted(offset, scale []float64) {
	for i, s := range scale {
		if s == 0 {
			scale[i] = 1
		}
	}
	a.offset = offset
	a.scale = scale
	a.fitted = true
}

func (a *affine) checkFit(x mat.Matrix) error {
	if a.fitted {
		return errors.New("scaler is already fitted")
	}
	rows, _ := x.Dims()
	if rows == 0 {
		return errors.New("cannot fit scaler on an empty matrix")
	}
	return nil
}

func (a *affine) checkTransform(x mat.Matrix) error {
	if !a.fitted {
		return errors.New("scaler is not fitted")
	}
	_, cols := x.Dims()
	if cols != len(a.scale) {
		return errors.Errorf("scaler was fitted on %d columns, got %d", len(a.scale), cols)
	}
	return nil
}

func (a *affine) Transform(x mat.Matrix) (*mat.Dense, error) {
	if err := a.checkTransform(x); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		offset, scale := a.offset[j], a.scale[j]
		for i := 0; i < rows; i++ {
			out.Set(i, j, (x.At(i, j)-offset)/scale)
		}
	}
	return out, nil
}

func (a *affine) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	if err := a.checkTransform(x); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		offset, scale := a.offset[j], a.scale[j]
		for i := 0; i < rows; i++ {
			out.Set(i, j, x.At(i, j)*scale+offset)
		}
	}
	return out, nil
}

// column extracts column j of x into a fresh slice.
func column(x mat.Matrix, j int) []float64 {
	rows, _ := x.Dims()
	col := make([]float64, rows)
	for i := 0; i < rows; i++ {
		col[i] = x.At(i, j)
	}
	return col
}

// Package preprocessing converts raw market data into model-ready inputs.
//
// Two pipelines are provided:
//
//   - NaivePreprocessor works on tabular data (gota dataframes): it derives
//     time ids, joins per-time aggregate features, and produces flat feature
//     matrices, one row per observation.
//   - TensorPreprocessor works on [samples, timesteps, features] tensors for
//     sequence models: it appends per-timestep aggregate profiles, handles
//     missing values and scales features and targets.
//
// Both share the same target cropping and the scalers package for
// normalization. Scaling statistics are always estimated on training data
// only and then applied unchanged to validation and inference data.
package preprocessing

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the preprocessing pipelines.
type Kind int

const (
	// KindNaive is the tabular pipeline, see NaivePreprocessor.
	KindNaive Kind = iota

	// KindTensor is the sequence pipeline, see TensorPreprocessor.
	KindTensor
)

var kindNames = map[string]Kind{
	"naive":  KindNaive,
	"tensor": KindTensor,
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNaive:
		return "naive"
	case KindTensor:
		return "tensor"
	}
	return "invalid"
}

// KindFromName converts a pipeline name ("naive" or "tensor") to its Kind.
// Matching is case-insensitive. It returns an error for unknown names.
func KindFromName(name string) (Kind, error) {
	kind, found := kindNames[strings.ToLower(name)]
	if !found {
		return Kind(0), errors.Errorf("unknown preprocessor %q: valid values are naive and tensor", name)
	}
	return kind, nil
}

// cropTargets clips targets in place, first to the upper then to the lower
// bound. Nil bounds are skipped.
func cropTargets(targets []float64, low, high *float64) {
	if high != nil {
		for i, v := range targets {
			if v > *high {
				targets[i] = *high
			}
		}
	}
	if low != nil {
		for i, v := range targets {
			if v < *low {
				targets[i] = *low
			}
		}
	}
}

// validateCrop checks the optional crop bounds.
func validateCrop(low, high *float64) error {
	if low != nil && high != nil && *low > *high {
		return errors.Errorf("crop bounds are inverted: low (%g) > high (%g)", *low, *high)
	}
	return nil
}

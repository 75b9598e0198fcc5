package preprocessing

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/davide-burba/ubiquant-market-prediction/preprocessing/scalers"
)

// TimeSeriesScalerConfig configures a TimeSeriesTensorScaler. Empty scaler
// names disable the corresponding half.
type TimeSeriesScalerConfig struct {
	// Features and Targets name the scaler families (see scalers.KindFromName)
	// for the feature and target tensors.
	Features, Targets string

	// FeatureOptions and TargetOptions configure the respective scalers.
	FeatureOptions, TargetOptions scalers.Options

	// FitSample, when > 0, fits each scaler on that many uniformly sampled
	// (without replacement) flattened rows instead of all of them.
	FitSample int

	// Seed makes the FitSample subsampling reproducible. Zero seeds from the
	// global source.
	Seed int64
}

// TimeSeriesTensorScaler scales [samples, timesteps, features] feature tensors
// and [samples, timesteps] target tensors.
//
// Fitting flattens the sample and time axes, so statistics are estimated per
// feature over every (sample, timestep) observation. Transforming scales each
// sample's [timesteps, features] slice independently with those shared
// statistics.
type TimeSeriesTensorScaler struct {
	features, targets scalers.Scaler
	fitSample         int
	rng               *rand.Rand
}

// NewTimeSeriesTensorScaler builds the scaler pair described by cfg.
func NewTimeSeriesTensorScaler(cfg TimeSeriesScalerConfig) (*TimeSeriesTensorScaler, error) {
	s := &TimeSeriesTensorScaler{fitSample: cfg.FitSample}
	var err error
	if cfg.Features != "" {
		if s.features, err = scalers.FromName(cfg.Features, cfg.FeatureOptions); err != nil {
			return nil, errors.WithMessage(err, "feature scaler")
		}
	}
	if cfg.Targets != "" {
		if s.targets, err = scalers.FromName(cfg.Targets, cfg.TargetOptions); err != nil {
			return nil, errors.WithMessage(err, "target scaler")
		}
	}
	if cfg.FitSample > 0 {
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Int63()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	return s, nil
}

// IsFitted reports whether the configured scalers have been fitted. A scaler
// with both halves disabled reports true.
func (s *TimeSeriesTensorScaler) IsFitted() bool {
	if s.features != nil && !s.features.IsFitted() {
		return false
	}
	if s.targets != nil && !s.targets.IsFitted() {
		return false
	}
	return true
}

// Fit estimates the scaling statistics from the flattened features and
// targets. Fitting twice is an error.
func (s *TimeSeriesTensorScaler) Fit(features, targets *tensors.Tensor) error {
	if err := checkPair(features, targets); err != nil {
		return err
	}
	if s.features != nil {
		flat, err := flattenLeading(features)
		if err != nil {
			return err
		}
		if flat, err = s.subsample(flat); err != nil {
			return err
		}
		if err = s.features.Fit(flat); err != nil {
			return err
		}
	}
	if s.targets != nil {
		flat, err := flattenLeading(targets)
		if err != nil {
			return err
		}
		if flat, err = s.subsample(flat); err != nil {
			return err
		}
		if err = s.targets.Fit(flat); err != nil {
			return err
		}
	}
	return nil
}

// Transform scales both tensors and returns new ones. Disabled halves pass
// their input through unchanged.
func (s *TimeSeriesTensorScaler) Transform(features, targets *tensors.Tensor) (*tensors.Tensor, *tensors.Tensor, error) {
	if err := checkPair(features, targets); err != nil {
		return nil, nil, err
	}
	scaledFeatures, err := s.TransformFeatures(features)
	if err != nil {
		return nil, nil, err
	}
	scaledTargets := targets
	if s.targets != nil {
		scaledTargets, err = applyPerSample(targets, 1, s.targets.Transform)
		if err != nil {
			return nil, nil, err
		}
	}
	return scaledFeatures, scaledTargets, nil
}

// TransformFeatures scales only the feature tensor, for inference where no
// targets exist.
func (s *TimeSeriesTensorScaler) TransformFeatures(features *tensors.Tensor) (*tensors.Tensor, error) {
	if features.Shape().Rank() != 3 {
		return nil, errors.Errorf("features must have shape [samples, timesteps, features], got %s", features.Shape())
	}
	if s.features == nil {
		return features, nil
	}
	numFeatures := features.Shape().Dim(2)
	return applyPerSample(features, numFeatures, s.features.Transform)
}

// InverseTransform maps scaled predictions back to the target scale. It only
// accepts vectors: rank 1, or rank 2 with a single column.
func (s *TimeSeriesTensorScaler) InverseTransform(predictions *tensors.Tensor) (*tensors.Tensor, error) {
	shape := predictions.Shape()
	if !(shape.Rank() == 1 || (shape.Rank() == 2 && shape.Dim(1) == 1)) {
		return nil, errors.Errorf("predictions must be 1-dimensional or a single column, got %s", shape)
	}
	if s.targets == nil {
		return predictions, nil
	}
	data := flatData(predictions)
	scaled, err := s.targets.InverseTransform(mat.NewDense(len(data), 1, data))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(data))
	for i := range out {
		out[i] = scaled.At(i, 0)
	}
	return tensors.FromFlatDataAndDimensions(out, shape.Dimensions...), nil
}

// subsample returns x or, when FitSample is configured and smaller than the
// number of rows, a random subset of its rows drawn without replacement.
func (s *TimeSeriesTensorScaler) subsample(x *mat.Dense) (*mat.Dense, error) {
	if s.fitSample <= 0 {
		return x, nil
	}
	rows, cols := x.Dims()
	if s.fitSample > rows {
		return nil, errors.Errorf("cannot sample %d rows from %d available", s.fitSample, rows)
	}
	if s.fitSample == rows {
		return x, nil
	}
	out := mat.NewDense(s.fitSample, cols, nil)
	for i, src := range s.rng.Perm(rows)[:s.fitSample] {
		for j := 0; j < cols; j++ {
			out.Set(i, j, x.At(src, j))
		}
	}
	klog.V(1).Infof("fitting scaler on %d of %d flattened rows", s.fitSample, rows)
	return out, nil
}

func checkPair(features, targets *tensors.Tensor) error {
	fs, ts := features.Shape(), targets.Shape()
	if fs.Rank() != 3 {
		return errors.Errorf("features must have shape [samples, timesteps, features], got %s", fs)
	}
	if ts.Rank() != 2 {
		return errors.Errorf("targets must have shape [samples, timesteps], got %s", ts)
	}
	if fs.Dim(0) != ts.Dim(0) || fs.Dim(1) != ts.Dim(1) {
		return errors.Errorf("features %s and targets %s disagree on samples or timesteps", fs, ts)
	}
	return nil
}

// flattenLeading views a [samples, ...] float64 tensor as a matrix with one
// row per (sample, timestep) observation: [N, T, F] becomes (N·T)xF and
// [N, T] becomes (N·T)x1.
func flattenLeading(t *tensors.Tensor) (*mat.Dense, error) {
	if t.DType() != dtypes.Float64 {
		return nil, errors.Errorf("expected a float64 tensor, got %s", t.DType())
	}
	dims := t.Shape().Dimensions
	cols := 1
	if len(dims) == 3 {
		cols = dims[2]
	}
	data := flatData(t)
	return mat.NewDense(len(data)/cols, cols, data), nil
}

// applyPerSample runs fn on each sample's [timesteps, cols] slice and
// reassembles the results into a tensor with the original shape. For targets
// (cols == 1) each sample's row is treated as a column vector.
func applyPerSample(t *tensors.Tensor, cols int, fn func(mat.Matrix) (*mat.Dense, error)) (*tensors.Tensor, error) {
	if t.DType() != dtypes.Float64 {
		return nil, errors.Errorf("expected a float64 tensor, got %s", t.DType())
	}
	dims := t.Shape().Dimensions
	samples := dims[0]
	stride := t.Size() / samples
	data := flatData(t)
	out := make([]float64, len(data))
	for i := 0; i < samples; i++ {
		slice := mat.NewDense(stride/cols, cols, data[i*stride:(i+1)*stride])
		scaled, err := fn(slice)
		if err != nil {
			return nil, err
		}
		rows, _ := scaled.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out[i*stride+r*cols+c] = scaled.At(r, c)
			}
		}
	}
	return tensors.FromFlatDataAndDimensions(out, dims...), nil
}

// flatData copies the tensor's flat float64 data.
func flatData(t *tensors.Tensor) []float64 {
	out := make([]float64, t.Size())
	tensors.MustConstFlatData(t, func(flat []float64) {
		copy(out, flat)
	})
	return out
}

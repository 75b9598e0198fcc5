package preprocessing

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/davide-burba/ubiquant-market-prediction/preprocessing/scalers"
)

// TensorConfig configures TensorPreprocessor.
type TensorConfig struct {
	// FillNaNTargets zero-fills missing targets. Missing features are always
	// zero-filled.
	FillNaNTargets bool

	// FeatureScaler and TargetScaler name the scaler families (see
	// scalers.KindFromName) applied per (sample, timestep) observation. Empty
	// disables the corresponding half.
	FeatureScaler, TargetScaler string

	// FeatureScalerOptions and TargetScalerOptions configure the respective
	// scalers.
	FeatureScalerOptions, TargetScalerOptions scalers.Options

	// ScalerFitSample, when > 0, fits each scaler on a random subset of
	// flattened rows. See TimeSeriesScalerConfig.FitSample.
	ScalerFitSample int

	// ScalerSeed makes the fit subsampling reproducible.
	ScalerSeed int64

	// CropLow and CropHigh clip targets when set.
	CropLow, CropHigh *float64

	// TimeFeatureIdx lists feature indices to profile over time: for each one,
	// the NaN-aware mean and standard deviation across samples are computed
	// per timestep and appended as extra feature columns (all means first,
	// then all standard deviations).
	TimeFeatureIdx []int
}

// Pair is a targets/features tensor pair: Targets is [samples, timesteps] and
// Features is [samples, timesteps, features], both float64.
type Pair struct {
	Targets, Features *tensors.Tensor
}

// TensorSplit is the output of TensorPreprocessor.Run. Feature and target
// tensors are float64; Timesteps tensors are int32 [samples, timesteps]
// holding the timestep index of each position, repeated across samples.
type TensorSplit struct {
	XTrain, XValid       *tensors.Tensor
	TimeTrain, TimeValid *tensors.Tensor
	YTrain, YValid       *tensors.Tensor
}

// TensorPreprocessor is the sequence pipeline: it keeps the time axis
// explicit, producing [samples, timesteps, features] inputs for recurrent
// models.
//
// A single instance fits its scaler once and is not safe for concurrent use.
type TensorPreprocessor struct {
	cfg    TensorConfig
	scaler *TimeSeriesTensorScaler
}

// NewTensor returns a TensorPreprocessor for the given configuration. Unknown
// scaler names, negative feature indices and inverted crop bounds are
// rejected here.
func NewTensor(cfg TensorConfig) (*TensorPreprocessor, error) {
	if err := validateCrop(cfg.CropLow, cfg.CropHigh); err != nil {
		return nil, err
	}
	for _, idx := range cfg.TimeFeatureIdx {
		if idx < 0 {
			return nil, errors.Errorf("negative time feature index %d", idx)
		}
	}
	scaler, err := NewTimeSeriesTensorScaler(TimeSeriesScalerConfig{
		Features:       cfg.FeatureScaler,
		Targets:        cfg.TargetScaler,
		FeatureOptions: cfg.FeatureScalerOptions,
		TargetOptions:  cfg.TargetScalerOptions,
		FitSample:      cfg.ScalerFitSample,
		Seed:           cfg.ScalerSeed,
	})
	if err != nil {
		return nil, err
	}
	return &TensorPreprocessor{cfg: cfg, scaler: scaler}, nil
}

// Scaler exposes the underlying TimeSeriesTensorScaler, fitted after the
// first training run.
func (p *TensorPreprocessor) Scaler() *TimeSeriesTensorScaler { return p.scaler }

// Run processes a train/validation pair. The scaler is fitted on the prepared
// training tensors and applied to both folds; validation targets go through
// the same NaN filling and cropping as training ones.
func (p *TensorPreprocessor) Run(train, valid Pair) (*TensorSplit, error) {
	xTrain, yTrain, err := p.prepare(train)
	if err != nil {
		return nil, errors.WithMessage(err, "preparing training data")
	}
	xValid, yValid, err := p.prepare(valid)
	if err != nil {
		return nil, errors.WithMessage(err, "preparing validation data")
	}
	if err = p.scaler.Fit(xTrain, yTrain); err != nil {
		return nil, err
	}
	if xTrain, yTrain, err = p.scaler.Transform(xTrain, yTrain); err != nil {
		return nil, err
	}
	if xValid, yValid, err = p.scaler.Transform(xValid, yValid); err != nil {
		return nil, err
	}
	return &TensorSplit{
		XTrain: xTrain, XValid: xValid,
		TimeTrain: timestepIndex(yTrain), TimeValid: timestepIndex(yValid),
		YTrain: yTrain, YValid: yValid,
	}, nil
}

// RunTrain prepares a training pair, fits the scaler and returns the scaled
// tensors.
func (p *TensorPreprocessor) RunTrain(data Pair) (x, y *tensors.Tensor, err error) {
	if x, y, err = p.prepare(data); err != nil {
		return nil, nil, err
	}
	if err = p.scaler.Fit(x, y); err != nil {
		return nil, nil, err
	}
	return p.scaler.Transform(x, y)
}

// RunInference zero-fills missing values in x and applies the fitted feature
// scaler. The input is expected to already carry any time profile columns.
func (p *TensorPreprocessor) RunInference(x *tensors.Tensor) (*tensors.Tensor, error) {
	if x.Shape().Rank() != 3 {
		return nil, errors.Errorf("features must have shape [samples, timesteps, features], got %s", x.Shape())
	}
	data := flatData(x)
	fillNaN(data)
	x = tensors.FromFlatDataAndDimensions(data, x.Shape().Dimensions...)
	return p.scaler.TransformFeatures(x)
}

// InverseTransform maps scaled predictions back to the original target scale.
func (p *TensorPreprocessor) InverseTransform(predictions *tensors.Tensor) (*tensors.Tensor, error) {
	return p.scaler.InverseTransform(predictions)
}

// prepare appends time profiles, fills missing values and crops targets,
// returning new tensors.
func (p *TensorPreprocessor) prepare(data Pair) (x, y *tensors.Tensor, err error) {
	if err = checkPair(data.Features, data.Targets); err != nil {
		return nil, nil, err
	}
	dims := data.Features.Shape().Dimensions
	samples, timesteps, numFeatures := dims[0], dims[1], dims[2]

	xData := flatData(data.Features)
	if len(p.cfg.TimeFeatureIdx) > 0 {
		for _, idx := range p.cfg.TimeFeatureIdx {
			if idx >= numFeatures {
				return nil, nil, errors.Errorf("time feature index %d out of range: %d features", idx, numFeatures)
			}
		}
		xData, numFeatures = appendTimeProfiles(xData, samples, timesteps, numFeatures, p.cfg.TimeFeatureIdx)
		klog.V(1).Infof("appended %d time profile columns, features now %d", 2*len(p.cfg.TimeFeatureIdx), numFeatures)
	}
	fillNaN(xData)

	yData := flatData(data.Targets)
	if p.cfg.FillNaNTargets {
		fillNaN(yData)
	}
	cropTargets(yData, p.cfg.CropLow, p.cfg.CropHigh)

	x = tensors.FromFlatDataAndDimensions(xData, samples, timesteps, numFeatures)
	y = tensors.FromFlatDataAndDimensions(yData, samples, timesteps)
	return x, y, nil
}

// appendTimeProfiles computes the NaN-aware mean and standard deviation of
// the selected features across samples, per timestep, and broadcasts them
// back as extra feature columns: [N, T, F] becomes [N, T, F+2·len(idx)].
func appendTimeProfiles(data []float64, samples, timesteps, numFeatures int, idx []int) ([]float64, int) {
	k := len(idx)
	means := make([]float64, timesteps*k)
	stds := make([]float64, timesteps*k)
	for t := 0; t < timesteps; t++ {
		for c, f := range idx {
			count, sum, sumSq := 0, 0.0, 0.0
			for i := 0; i < samples; i++ {
				v := data[(i*timesteps+t)*numFeatures+f]
				if math.IsNaN(v) {
					continue
				}
				count++
				sum += v
				sumSq += v * v
			}
			if count == 0 {
				means[t*k+c] = math.NaN()
				stds[t*k+c] = math.NaN()
				continue
			}
			mean := sum / float64(count)
			means[t*k+c] = mean
			stds[t*k+c] = math.Sqrt(math.Max(0, sumSq/float64(count)-mean*mean))
		}
	}

	newF := numFeatures + 2*k
	out := make([]float64, samples*timesteps*newF)
	for i := 0; i < samples; i++ {
		for t := 0; t < timesteps; t++ {
			src := (i*timesteps + t) * numFeatures
			dst := (i*timesteps + t) * newF
			copy(out[dst:dst+numFeatures], data[src:src+numFeatures])
			copy(out[dst+numFeatures:dst+numFeatures+k], means[t*k:(t+1)*k])
			copy(out[dst+numFeatures+k:dst+newF], stds[t*k:(t+1)*k])
		}
	}
	return out, newF
}

// fillNaN replaces NaNs with zero, in place.
func fillNaN(data []float64) {
	for i, v := range data {
		if math.IsNaN(v) {
			data[i] = 0
		}
	}
}

// timestepIndex builds an int32 [samples, timesteps] tensor where every row
// is 0, 1, ..., timesteps-1.
func timestepIndex(targets *tensors.Tensor) *tensors.Tensor {
	dims := targets.Shape().Dimensions
	samples, timesteps := dims[0], dims[1]
	out := make([]int32, samples*timesteps)
	for i := 0; i < samples; i++ {
		for t := 0; t < timesteps; t++ {
			out[i*timesteps+t] = int32(t)
		}
	}
	return tensors.FromFlatDataAndDimensions(out, samples, timesteps)
}


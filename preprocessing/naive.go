package preprocessing

import (
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/davide-burba/ubiquant-market-prediction/preprocessing/scalers"
)

// NaiveConfig configures NaivePreprocessor. The zero value disables every
// optional step: no extra columns dropped, no scaling, no cropping, no
// aggregate time features.
type NaiveConfig struct {
	// DropColumns are removed from the feature set. Every listed column must
	// exist in the input frames.
	DropColumns []string

	// Scaler optionally names a scaler family (see scalers.KindFromName) fitted
	// on training features and applied to every frame. Empty means no scaling.
	Scaler string

	// ScalerOptions configures the scaler named by Scaler.
	ScalerOptions scalers.Options

	// CropLow and CropHigh clip training targets when set. Validation targets
	// are never cropped.
	CropLow, CropHigh *float64

	// TimeFeatures lists columns to aggregate per time id: for each one, the
	// mean and standard deviation over all rows sharing a time id are joined
	// back as the "time_mean_<col>" and "time_std_<col>" columns.
	TimeFeatures []string
}

// NaivePreprocessor is the tabular pipeline: one row per observation, features
// stay flat and the time dimension only enters through the joined aggregates.
//
// A single instance fits its scaler once, on the first training run, and is
// not safe for concurrent use.
type NaivePreprocessor struct {
	cfg    NaiveConfig
	scaler scalers.Scaler
}

// NewNaive returns a NaivePreprocessor for the given configuration. Unknown
// scaler names and inverted crop bounds are rejected here.
func NewNaive(cfg NaiveConfig) (*NaivePreprocessor, error) {
	if err := validateCrop(cfg.CropLow, cfg.CropHigh); err != nil {
		return nil, err
	}
	p := &NaivePreprocessor{cfg: cfg}
	if cfg.Scaler != "" {
		var err error
		p.scaler, err = scalers.FromName(cfg.Scaler, cfg.ScalerOptions)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Split is the output of NaivePreprocessor.Run: the feature matrices, time
// ids and targets of both folds. Only YTrain is cropped.
type Split struct {
	XTrain, XValid       *mat.Dense
	TimeTrain, TimeValid []int
	YTrain, YValid       []float64
}

// Run processes a train/validation pair: the scaler is fitted on train and
// applied to both frames, and both must carry a target column.
func (p *NaivePreprocessor) Run(train, valid dataframe.DataFrame) (*Split, error) {
	xTrain, yTrain, timeTrain, err := p.RunTrain(train)
	if err != nil {
		return nil, errors.WithMessage(err, "processing training data")
	}
	yValid, err := floatColumn(valid, "target")
	if err != nil {
		return nil, errors.WithMessage(err, "processing validation data")
	}
	xValid, timeValid, err := p.RunInference(valid)
	if err != nil {
		return nil, errors.WithMessage(err, "processing validation data")
	}
	return &Split{
		XTrain: xTrain, XValid: xValid,
		TimeTrain: timeTrain, TimeValid: timeValid,
		YTrain: yTrain, YValid: yValid,
	}, nil
}

// RunTrain processes a training frame: it fits the scaler (if configured) and
// returns the features alongside the cropped targets and time ids.
func (p *NaivePreprocessor) RunTrain(train dataframe.DataFrame) (x *mat.Dense, y []float64, timeIDs []int, err error) {
	y, err = floatColumn(train, "target")
	if err != nil {
		return nil, nil, nil, err
	}
	x, timeIDs, err = p.run(train, true)
	if err != nil {
		return nil, nil, nil, err
	}
	cropTargets(y, p.cfg.CropLow, p.cfg.CropHigh)
	return x, y, timeIDs, nil
}

// RunInference processes a frame with the already fitted scaler. The target
// column is optional and ignored when present.
func (p *NaivePreprocessor) RunInference(df dataframe.DataFrame) (x *mat.Dense, timeIDs []int, err error) {
	return p.run(df, false)
}

func (p *NaivePreprocessor) run(df dataframe.DataFrame, fitScaler bool) (*mat.Dense, []int, error) {
	df, err := withTimeID(df)
	if err != nil {
		return nil, nil, err
	}
	timeIDs, err := intColumn(df, "time_id")
	if err != nil {
		return nil, nil, err
	}
	df, err = p.joinTimeFeatures(df)
	if err != nil {
		return nil, nil, err
	}

	drop := []string{"row_id", "target"}
	df, err = dropColumns(df, drop, p.cfg.DropColumns)
	if err != nil {
		return nil, nil, err
	}

	x, err := frameToMatrix(df)
	if err != nil {
		return nil, nil, err
	}
	if p.scaler != nil {
		if fitScaler {
			if err = p.scaler.Fit(x); err != nil {
				return nil, nil, err
			}
		}
		x, err = p.scaler.Transform(x)
		if err != nil {
			return nil, nil, err
		}
	}
	rows, cols := x.Dims()
	klog.V(1).Infof("naive preprocessing: %d rows, %d feature columns (fit=%v)", rows, cols, fitScaler)
	return x, timeIDs, nil
}

// withTimeID returns df guaranteed to have a "time_id" column, deriving it
// from the leading integer of "row_id" (formatted "<time>_<investment>") when
// missing.
func withTimeID(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if hasColumn(df, "time_id") {
		return df, nil
	}
	rowIDs := df.Col("row_id")
	if rowIDs.Err != nil {
		return df, errors.New("dataframe has neither a time_id nor a row_id column")
	}
	records := rowIDs.Records()
	ids := make([]int, len(records))
	for i, r := range records {
		head, _, _ := strings.Cut(r, "_")
		id, err := strconv.Atoi(head)
		if err != nil {
			return df, errors.Wrapf(err, "row %d: cannot derive time_id from row_id %q", i, r)
		}
		ids[i] = id
	}
	df = df.Mutate(series.New(ids, series.Int, "time_id"))
	return df, df.Error()
}

// joinTimeFeatures left-joins the per-time-id mean and standard deviation of
// the configured columns. Rows sharing a time id get identical aggregate
// values.
func (p *NaivePreprocessor) joinTimeFeatures(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if len(p.cfg.TimeFeatures) == 0 {
		return df, nil
	}
	groups := df.GroupBy("time_id")
	if groups.Err != nil {
		return df, errors.Wrap(groups.Err, "grouping by time_id")
	}
	types := make([]dataframe.AggregationType, 0, 2*len(p.cfg.TimeFeatures))
	cols := make([]string, 0, 2*len(p.cfg.TimeFeatures))
	for _, c := range p.cfg.TimeFeatures {
		types = append(types, dataframe.Aggregation_MEAN, dataframe.Aggregation_STD)
		cols = append(cols, c, c)
	}
	agg := groups.Aggregation(types, cols)
	if agg.Error() != nil {
		return df, errors.Wrap(agg.Error(), "aggregating time features")
	}
	for _, c := range p.cfg.TimeFeatures {
		agg = agg.Rename("time_mean_"+c, c+"_MEAN").Rename("time_std_"+c, c+"_STD")
	}
	joined := df.LeftJoin(agg, "time_id")
	if joined.Error() != nil {
		return df, errors.Wrap(joined.Error(), "joining time features")
	}
	klog.V(1).Infof("joined %d aggregate columns over %d time ids", 2*len(p.cfg.TimeFeatures), agg.Nrow())
	return joined, nil
}

// dropColumns removes optional (skipped when absent) and required (error when
// absent) columns from df.
func dropColumns(df dataframe.DataFrame, optional, required []string) (dataframe.DataFrame, error) {
	var toDrop []string
	for _, name := range optional {
		if hasColumn(df, name) {
			toDrop = append(toDrop, name)
		}
	}
	for _, name := range required {
		if !hasColumn(df, name) {
			return df, errors.Errorf("cannot drop column %q: not in dataframe", name)
		}
		toDrop = append(toDrop, name)
	}
	if len(toDrop) == 0 {
		return df, nil
	}
	df = df.Drop(toDrop)
	return df, df.Error()
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func floatColumn(df dataframe.DataFrame, name string) ([]float64, error) {
	col := df.Col(name)
	if col.Err != nil {
		return nil, errors.Wrapf(col.Err, "column %q", name)
	}
	return col.Float(), nil
}

func intColumn(df dataframe.DataFrame, name string) ([]int, error) {
	col := df.Col(name)
	if col.Err != nil {
		return nil, errors.Wrapf(col.Err, "column %q", name)
	}
	vals, err := col.Int()
	if err != nil {
		return nil, errors.Wrapf(err, "column %q", name)
	}
	return vals, nil
}

// frameToMatrix converts every column of df to float64, preserving column
// order.
func frameToMatrix(df dataframe.DataFrame) (*mat.Dense, error) {
	if df.Error() != nil {
		return nil, df.Error()
	}
	rows, cols := df.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Errorf("cannot build a %dx%d feature matrix", rows, cols)
	}
	data := make([]float64, rows*cols)
	for j, name := range df.Names() {
		for i, v := range df.Col(name).Float() {
			data[i*cols+j] = v
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

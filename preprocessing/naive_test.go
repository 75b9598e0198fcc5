package preprocessing

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func marketFrame() dataframe.DataFrame {
	return dataframe.New(
		series.New([]string{"0_1", "0_2", "1_1", "1_2"}, series.String, "row_id"),
		series.New([]float64{1, 3, 10, 30}, series.Float, "f_0"),
		series.New([]float64{-1, -1, 2, 2}, series.Float, "f_1"),
		series.New([]float64{0.5, -0.5, 5, -5}, series.Float, "target"),
	)
}

func TestKindFromName(t *testing.T) {
	kind, err := KindFromName("naive")
	require.NoError(t, err)
	assert.Equal(t, KindNaive, kind)

	kind, err = KindFromName("Tensor")
	require.NoError(t, err)
	assert.Equal(t, KindTensor, kind)

	_, err = KindFromName("fancy")
	require.ErrorContains(t, err, "unknown preprocessor")
}

func TestNaiveTimeIDFromRowID(t *testing.T) {
	p, err := NewNaive(NaiveConfig{})
	require.NoError(t, err)

	x, y, timeIDs, err := p.RunTrain(marketFrame())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, timeIDs)
	assert.Equal(t, []float64{0.5, -0.5, 5, -5}, y)

	// row_id and target are dropped, time_id is kept as a feature.
	rows, cols := x.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
}

func TestNaiveTimeIDColumnKept(t *testing.T) {
	df := dataframe.New(
		series.New([]int{7, 7, 8}, series.Int, "time_id"),
		series.New([]float64{1, 2, 3}, series.Float, "f_0"),
		series.New([]float64{0, 0, 0}, series.Float, "target"),
	)
	p, err := NewNaive(NaiveConfig{})
	require.NoError(t, err)

	_, _, timeIDs, err := p.RunTrain(df)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7, 8}, timeIDs)
}

func TestNaiveMissingTimeAndRowID(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{1, 2}, series.Float, "f_0"),
		series.New([]float64{0, 0}, series.Float, "target"),
	)
	p, err := NewNaive(NaiveConfig{})
	require.NoError(t, err)

	_, _, _, err = p.RunTrain(df)
	require.ErrorContains(t, err, "neither a time_id nor a row_id")
}

func TestNaiveBadRowID(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"abc_1"}, series.String, "row_id"),
		series.New([]float64{1}, series.Float, "f_0"),
		series.New([]float64{0}, series.Float, "target"),
	)
	p, err := NewNaive(NaiveConfig{})
	require.NoError(t, err)

	_, _, _, err = p.RunTrain(df)
	require.ErrorContains(t, err, "cannot derive time_id")
}

func TestNaiveTimeFeatures(t *testing.T) {
	p, err := NewNaive(NaiveConfig{TimeFeatures: []string{"f_0"}})
	require.NoError(t, err)

	x, _, _, err := p.RunTrain(marketFrame())
	require.NoError(t, err)

	// f_0, f_1, time_id plus mean and std of f_0 per time id.
	_, cols := x.Dims()
	assert.Equal(t, 5, cols)

	// Rows sharing a time id must get identical aggregate values. Columns
	// after the join are time_id, f_0, f_1, then the aggregates.
	for j := 3; j < 5; j++ {
		assert.Equal(t, x.At(0, j), x.At(1, j), "column %d differs within time id 0", j)
		assert.Equal(t, x.At(2, j), x.At(3, j), "column %d differs within time id 1", j)
	}
}

func TestNaiveCropTargets(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"0_1", "1_1", "2_1"}, series.String, "row_id"),
		series.New([]float64{1, 2, 3}, series.Float, "f_0"),
		series.New([]float64{-5, 0, 5}, series.Float, "target"),
	)
	p, err := NewNaive(NaiveConfig{CropLow: ptr(-1), CropHigh: ptr(1)})
	require.NoError(t, err)

	_, y, _, err := p.RunTrain(df)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1}, y)
}

func TestNaiveInvertedCropBounds(t *testing.T) {
	_, err := NewNaive(NaiveConfig{CropLow: ptr(1), CropHigh: ptr(-1)})
	require.ErrorContains(t, err, "inverted")
}

func TestNaiveUnknownScaler(t *testing.T) {
	_, err := NewNaive(NaiveConfig{Scaler: "superscaler"})
	require.ErrorContains(t, err, "unknown scaler")
}

func TestNaiveScalerFitOnTrainOnly(t *testing.T) {
	p, err := NewNaive(NaiveConfig{Scaler: "minmax"})
	require.NoError(t, err)

	train := marketFrame()
	valid := dataframe.New(
		series.New([]string{"2_1", "2_2"}, series.String, "row_id"),
		series.New([]float64{1, 30}, series.Float, "f_0"),
		series.New([]float64{-1, 2}, series.Float, "f_1"),
		series.New([]float64{0.1, 0.2}, series.Float, "target"),
	)
	split, err := p.Run(train, valid)
	require.NoError(t, err)

	// Train features span the fitted range exactly. Columns are f_0, f_1 and
	// the appended time_id: f_0 has minimum 1 and maximum 30.
	assert.InDelta(t, 0, split.XTrain.At(0, 0), 1e-12)
	assert.InDelta(t, 1, split.XTrain.At(3, 0), 1e-12)

	// Validation reuses the training statistics: the same raw values map to
	// the same scaled values.
	assert.InDelta(t, split.XTrain.At(0, 0), split.XValid.At(0, 0), 1e-12)
	assert.InDelta(t, split.XTrain.At(3, 0), split.XValid.At(1, 0), 1e-12)

	// Validation targets are not cropped and returned as-is.
	assert.Equal(t, []float64{0.1, 0.2}, split.YValid)
}

func TestNaiveRunTwiceFailsWithScaler(t *testing.T) {
	p, err := NewNaive(NaiveConfig{Scaler: "standard"})
	require.NoError(t, err)

	_, _, _, err = p.RunTrain(marketFrame())
	require.NoError(t, err)
	_, _, _, err = p.RunTrain(marketFrame())
	require.ErrorContains(t, err, "already fitted")
}

func TestNaiveDropColumns(t *testing.T) {
	p, err := NewNaive(NaiveConfig{DropColumns: []string{"f_1"}})
	require.NoError(t, err)

	x, _, _, err := p.RunTrain(marketFrame())
	require.NoError(t, err)
	_, cols := x.Dims()
	assert.Equal(t, 2, cols)

	p, err = NewNaive(NaiveConfig{DropColumns: []string{"no_such_column"}})
	require.NoError(t, err)
	_, _, _, err = p.RunTrain(marketFrame())
	require.ErrorContains(t, err, "cannot drop column")
}

func TestNaiveRunInferenceWithoutTarget(t *testing.T) {
	p, err := NewNaive(NaiveConfig{})
	require.NoError(t, err)

	df := dataframe.New(
		series.New([]string{"3_1", "3_2"}, series.String, "row_id"),
		series.New([]float64{1, 2}, series.Float, "f_0"),
	)
	x, timeIDs, err := p.RunInference(df)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, timeIDs)
	_, cols := x.Dims()
	assert.Equal(t, 2, cols)
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// TestModel_TrainingRowsReproduced verifies the model classifies its own training rows correctly.
func TestModel_TrainingRowsReproduced(t *testing.T) {
	m := TrainFixedModel()
	for _, row := range trainingSet {
		f := row.features
		got, err := m.Assess(models.NewSample(int(f[0]), int(f[1]), int(f[2])))
		require.NoError(t, err)
		assert.Equal(t, row.high, got.High(), "row %v (p=%.2f)", f, got.Probability)
	}
}

// TestModel_Assess verifies the decision boundary on samples outside the training set.
func TestModel_Assess(t *testing.T) {
	tests := []struct {
		name   string
		sample models.WeatherSample
		want   models.RiskLevel
	}{
		{"cool and dry", models.NewSample(10, 50, 0), models.RiskLow},
		{"hottest training row", models.NewSample(45, 100, 50), models.RiskHigh},
		{"hot humid storm", models.NewSample(38, 92, 35), models.RiskHigh},
		{"mild dry day", models.NewSample(12, 40, 0), models.RiskLow},
		{"beyond training range", models.NewSample(60, 100, 120), models.RiskHigh},
	}
	m := DefaultModel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Assess(tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Level, "p=%.2f", got.Probability)
			assert.GreaterOrEqual(t, got.Probability, 0.0)
			assert.LessOrEqual(t, got.Probability, 1.0)
			assert.Equal(t, got.Probability > 0.5, got.High())
		})
	}
}

// TestModel_Assess_IncompleteData verifies any missing feature is refused and logged.
func TestModel_Assess_IncompleteData(t *testing.T) {
	tests := []struct {
		name   string
		sample models.WeatherSample
	}{
		{"no humidity", models.WeatherSample{Temperature: models.IntPtr(20), Precipitation: models.IntPtr(0)}},
		{"no temperature", models.WeatherSample{Humidity: models.IntPtr(80), Precipitation: models.IntPtr(10)}},
		{"no precipitation", models.WeatherSample{Temperature: models.IntPtr(30), Humidity: models.IntPtr(90)}},
		{"empty", models.WeatherSample{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			m := DefaultModel().WithLogger(zap.New(core))

			_, err := m.Assess(tt.sample)
			assert.ErrorIs(t, err, ErrIncompleteData)
			assert.Equal(t, 1, logs.FilterMessage("incomplete data").Len())
		})
	}
}

// TestModel_ZeroValuesAreData verifies zero readings count as present.
func TestModel_ZeroValuesAreData(t *testing.T) {
	got, err := DefaultModel().Assess(models.NewSample(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, got.Level)
}

// TestTrainFixedModel_Deterministic verifies repeated training yields identical predictions.
func TestTrainFixedModel_Deterministic(t *testing.T) {
	a, b := TrainFixedModel(), TrainFixedModel()
	require.Equal(t, forestTrees, a.forest.Size())

	probes := [][NumFeatures]float64{{15, 70, 0}, {30, 85, 20}, {35, 90, 30}, {33, 88, 25}, {38, 92, 35}}
	for _, p := range probes {
		assert.Equal(t, a.forest.PredictProba(p), b.forest.PredictProba(p), "probe %v", p)
	}
}

// TestDefaultModel_Memoised verifies the process-wide model is trained once.
func TestDefaultModel_Memoised(t *testing.T) {
	assert.Same(t, DefaultModel(), DefaultModel())
}

package risk

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// ErrIncompleteData is returned when a sample lacks one of the three features.
var ErrIncompleteData = errors.New("incomplete data")

const (
	forestTrees = 100
	forestSeed  = 42
	// sqrt of NumFeatures, rounded down
	forestMaxFeatures = 1
	highThreshold     = 0.5
)

// trainingSet is the fixed labelled data the model is fitted on: [temperature, humidity, precipitation] -> high risk.
var trainingSet = []struct {
	features [NumFeatures]float64
	high     bool
}{
	{[NumFeatures]float64{15, 70, 0}, false},
	{[NumFeatures]float64{22, 80, 10}, false},
	{[NumFeatures]float64{30, 85, 20}, false},
	{[NumFeatures]float64{35, 90, 30}, true},
	{[NumFeatures]float64{40, 95, 40}, true},
	{[NumFeatures]float64{45, 100, 50}, true},
}

// Model classifies weather samples into HIGH or LOW disaster risk. Safe for concurrent use.
type Model struct {
	forest *Forest
	logger *zap.Logger
}

// TrainFixedModel fits a fresh forest on the compiled-in training set. Every call returns an equivalent model.
func TrainFixedModel() *Model {
	x := make([][NumFeatures]float64, len(trainingSet))
	y := make([]int, len(trainingSet))
	for i, row := range trainingSet {
		x[i] = row.features
		if row.high {
			y[i] = 1
		}
	}
	forest := TrainForest(x, y, ForestParams{
		Trees:       forestTrees,
		MaxFeatures: forestMaxFeatures,
		Seed:        forestSeed,
	})
	return &Model{forest: forest, logger: zap.NewNop()}
}

// DefaultModel returns the process-wide model, trained on first use.
var DefaultModel = sync.OnceValue(TrainFixedModel)

// WithLogger returns a copy of m that logs refusals to logger. The forest is shared.
func (m *Model) WithLogger(logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{forest: m.forest, logger: logger}
}

// Assess classifies sample. It refuses samples with a missing feature with ErrIncompleteData.
func (m *Model) Assess(sample models.WeatherSample) (models.RiskAssessment, error) {
	if !sample.Complete() {
		observability.IncompleteDataTotal.Inc()
		m.logger.Error("incomplete data",
			zap.Bool("temperature", sample.Temperature != nil),
			zap.Bool("humidity", sample.Humidity != nil),
			zap.Bool("precipitation", sample.Precipitation != nil))
		return models.RiskAssessment{}, ErrIncompleteData
	}

	p := m.forest.PredictProba(sample.Features())
	level := models.RiskLow
	if p > highThreshold {
		level = models.RiskHigh
	}
	observability.AssessmentsTotal.WithLabelValues(string(level)).Inc()
	return models.RiskAssessment{Level: level, Probability: p}, nil
}

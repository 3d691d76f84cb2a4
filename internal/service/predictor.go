// Package service holds the serving-side core: the prediction service with
// its hot-swappable model handle, and the retrain orchestrator that drives
// the fusion-train-persist cycle.
package service

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/models"
)

// ErrSchemaMismatch means the caller-supplied schema diverges from the one
// the persisted model was trained with. Inputs are rejected rather than
// silently reordered or coerced.
var ErrSchemaMismatch = errors.New("feature schema does not match persisted model schema")

// ValidationError reports required feature columns absent from an input
// record. Missing keys are a hard failure at the prediction boundary; only
// ingestion-side layers apply defaults for absent fields.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + strings.Join(e.Missing, ", ")
}

// Prediction-time defaults for feature values that arrive explicitly null.
// All indicators default to absent (0), unlike registry ingestion where
// utilities default to present; the asymmetry is deliberate, see
// registry package defaults.
var predictionDefaults = map[string]float64{
	models.FeatureMonthlyIncome: 0,
	models.FeatureFamilyMembers: 1,
	models.FeatureStableHousing: 0,
	models.FeatureCleanWater:    0,
	models.FeatureElectricity:   0,
	models.FeatureHealthIssues:  0,
}

const (
	labelEligible    = "Deserves Help"
	labelNotEligible = "Does Not Currently Qualify"
)

// Predictor serves predictions from the last successfully persisted model.
// The loaded bundle sits behind an atomic pointer: a retrain swaps it in one
// step, so in-flight predictions see either the old model or the new one in
// full.
type Predictor struct {
	store   *artifact.Store
	current atomic.Pointer[artifact.Bundle]
	logger  *zap.Logger
}

// NewPredictor creates a predictor over the artifact store. A missing model
// is not an error at construction; prediction calls report it.
func NewPredictor(store *artifact.Store, logger *zap.Logger) *Predictor {
	p := &Predictor{store: store, logger: logger}
	if err := p.Reload(); err != nil {
		if errors.Is(err, artifact.ErrModelNotFound) {
			logger.Warn("No persisted model found; predictions unavailable until first training run")
		} else {
			logger.Error("Failed to load persisted model", zap.Error(err))
		}
	}
	return p
}

// Reload loads the persisted bundle and atomically replaces the serving
// model.
func (p *Predictor) Reload() error {
	bundle, err := p.store.LoadBundle()
	if err != nil {
		return err
	}
	p.current.Store(bundle)
	p.logger.Info("Model loaded", zap.Strings("feature_columns", bundle.FeatureColumns))
	return nil
}

func (p *Predictor) bundle() (*artifact.Bundle, error) {
	if b := p.current.Load(); b != nil {
		return b, nil
	}
	// First call may race a process start that preceded the first training
	// run; try the store once more before reporting not-found.
	b, err := p.store.LoadBundle()
	if err != nil {
		return nil, err
	}
	p.current.Store(b)
	return b, nil
}

// Predict scores each input record against the current model. schemaOverride,
// when non-nil, must match the persisted schema exactly.
func (p *Predictor) Predict(inputs []models.FamilyInput, schemaOverride models.FeatureSchema) ([]models.PredictionResult, error) {
	bundle, err := p.bundle()
	if err != nil {
		return nil, err
	}

	schema := bundle.FeatureColumns
	if schemaOverride != nil && !schemaOverride.Equal(schema) {
		return nil, ErrSchemaMismatch
	}

	results := make([]models.PredictionResult, 0, len(inputs))
	for _, input := range inputs {
		features, normalized, err := normalize(input, schema)
		if err != nil {
			return nil, err
		}

		proba := bundle.Model.PredictProba(features)
		label := labelNotEligible
		if proba >= 0.5 {
			label = labelEligible
		}

		results = append(results, models.PredictionResult{
			Prediction:              label,
			ProbabilityDeservesHelp: fmt.Sprintf("%.2f%%", proba*100),
			InputData:               normalized,
		})
	}
	return results, nil
}

// normalize validates column presence and resolves null values to the
// prediction defaults, returning the feature vector in schema order plus the
// exact map used for inference.
func normalize(input models.FamilyInput, schema models.FeatureSchema) ([]float64, map[string]float64, error) {
	var missing []string
	for _, col := range schema {
		if _, ok := input[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &ValidationError{Missing: missing}
	}

	features := make([]float64, len(schema))
	normalized := make(map[string]float64, len(schema))
	for i, col := range schema {
		v := input[col]
		if v == nil {
			features[i] = predictionDefaults[col]
		} else {
			features[i] = *v
		}
		normalized[col] = features[i]
	}
	return features, normalized, nil
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/fusion"
	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/trainer"
)

func newPipeline(t *testing.T) (*Orchestrator, *Predictor, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	logger := zap.NewNop()
	fusionSvc := fusion.NewService(nil, nil, store, logger)
	tr := trainer.New(store, logger)
	predictor := NewPredictor(store, logger)
	return NewOrchestrator(fusionSvc, tr, predictor, logger), predictor, store
}

func TestRetrainEndToEnd(t *testing.T) {
	orch, predictor, store := newPipeline(t)

	run, err := orch.Retrain(200)
	require.NoError(t, err)
	assert.Greater(t, run.Accuracy, 0.70)

	// The freshly trained model serves immediately.
	input := models.FamilyInput{
		models.FeatureMonthlyIncome: floatPtr(200),
		models.FeatureFamilyMembers: floatPtr(7),
		models.FeatureStableHousing: floatPtr(0),
		models.FeatureCleanWater:    floatPtr(0),
		models.FeatureElectricity:   floatPtr(0),
		models.FeatureHealthIssues:  floatPtr(1),
	}
	results, err := predictor.Predict([]models.FamilyInput{input}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Deserves Help", results[0].Prediction)

	// Fusion manifest and training run were both logged.
	genHistory, err := store.GenerationHistory()
	require.NoError(t, err)
	require.Len(t, genHistory, 1)
	assert.Equal(t, run.DataSources, genHistory[0])

	current, err := store.CurrentRun()
	require.NoError(t, err)
	assert.Equal(t, run, current)
}

func TestRetrainFailureIsReportedNotPanicked(t *testing.T) {
	orch, _, store := newPipeline(t)

	_, err := orch.Retrain(-5)
	require.Error(t, err)

	// Nothing was persisted by the failed run.
	_, err = store.LoadBundle()
	assert.ErrorIs(t, err, artifact.ErrModelNotFound)
	history, err := store.ModelHistory()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRetrainAppendsHistoryEachRun(t *testing.T) {
	orch, _, store := newPipeline(t)

	_, err := orch.Retrain(120)
	require.NoError(t, err)
	_, err = orch.Retrain(120)
	require.NoError(t, err)

	modelHistory, err := store.ModelHistory()
	require.NoError(t, err)
	assert.Len(t, modelHistory, 2)

	genHistory, err := store.GenerationHistory()
	require.NoError(t, err)
	assert.Len(t, genHistory, 2)
}

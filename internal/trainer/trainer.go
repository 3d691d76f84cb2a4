// Package trainer fits the eligibility classifier on a fused dataset,
// evaluates it on a stratified held-out split, and persists the resulting
// artifact and metadata.
package trainer

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/forest"
	"github.com/irfpannn/ikhlas/internal/fusion"
	"github.com/irfpannn/ikhlas/internal/models"
)

// splitSeed fixes the train/test partition so evaluation numbers are
// comparable across retrains even though the synthetic data is not.
const splitSeed = 42

const testFraction = 0.25

// Trainer fits, evaluates and persists models.
type Trainer struct {
	store  *artifact.Store
	params forest.Params
	logger *zap.Logger
}

// New creates a trainer writing artifacts through the given store.
func New(store *artifact.Store, logger *zap.Logger) *Trainer {
	return &Trainer{
		store:  store,
		params: forest.DefaultParams(),
		logger: logger,
	}
}

// Train fits a classifier on the dataset and atomically persists the model
// bundle, the training-run metadata, and the history append. It returns an
// error rather than crashing when the dataset is degenerate or persistence
// fails; in either case the previously persisted artifact stays authoritative.
func (t *Trainer) Train(ds *fusion.Dataset) (models.TrainingRun, error) {
	var run models.TrainingRun

	x := make([][]float64, len(ds.Records))
	y := make([]bool, len(ds.Records))
	for i, rec := range ds.Records {
		x[i] = rec.Features()
		y[i] = rec.DeservesHelp
	}

	trainIdx, testIdx := stratifiedSplit(y, testFraction, splitSeed)
	t.logger.Info("Training the classifier",
		zap.Int("train_samples", len(trainIdx)),
		zap.Int("test_samples", len(testIdx)))

	model, err := forest.Fit(subset(x, trainIdx), subsetBool(y, trainIdx), t.params)
	if err != nil {
		return run, fmt.Errorf("training failed: %w", err)
	}

	eval := evaluate(model, subset(x, testIdx), subsetBool(y, testIdx))
	t.logger.Info("Model evaluated",
		zap.Float64("accuracy", eval.Accuracy),
		zap.Any("confusion_matrix", eval.ConfusionMatrix))

	importance := make(map[string]float64, len(ds.Schema))
	for i, name := range ds.Schema {
		importance[name] = model.Importance[i]
	}

	run = models.TrainingRun{
		TrainingDate:      time.Now().Format("2006-01-02 15:04:05"),
		Accuracy:          eval.Accuracy,
		SamplesCount:      len(ds.Records),
		FeatureImportance: importance,
		DataSources:       ds.Manifest,
	}

	bundle := &artifact.Bundle{FeatureColumns: ds.Schema, Model: model}
	if err := t.store.SaveBundle(bundle); err != nil {
		return run, fmt.Errorf("failed to persist model: %w", err)
	}
	if err := t.store.SaveTrainingRun(run); err != nil {
		return run, fmt.Errorf("failed to persist model metadata: %w", err)
	}

	t.logger.Info("Model persisted", zap.Float64("accuracy", run.Accuracy),
		zap.Int("samples", run.SamplesCount))
	return run, nil
}

// stratifiedSplit partitions indices so both classes keep the same test
// fraction. The shuffle is seeded, so the partition is reproducible for a
// given label sequence.
func stratifiedSplit(y []bool, frac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	var byClass [2][]int
	for i, label := range y {
		c := 0
		if label {
			c = 1
		}
		byClass[c] = append(byClass[c], i)
	}

	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(float64(len(idx)) * frac)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	return train, test
}

// evaluate computes accuracy, the per-class report and the confusion matrix
// on the held-out split.
func evaluate(model *forest.Forest, x [][]float64, y []bool) models.Evaluation {
	var eval models.Evaluation
	var correct int

	// ConfusionMatrix[actual][predicted], class 0 = does not qualify.
	for i := range x {
		pred := model.Predict(x[i])
		a, p := classIndex(y[i]), classIndex(pred)
		eval.ConfusionMatrix[a][p]++
		if pred == y[i] {
			correct++
		}
	}
	if len(x) > 0 {
		eval.Accuracy = float64(correct) / float64(len(x))
	}

	eval.Report = make(map[string]models.ClassMetrics, 2)
	for c := 0; c < 2; c++ {
		tp := eval.ConfusionMatrix[c][c]
		fp := eval.ConfusionMatrix[1-c][c]
		fn := eval.ConfusionMatrix[c][1-c]
		m := models.ClassMetrics{Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		eval.Report[fmt.Sprintf("%d", c)] = m
	}
	return eval
}

func classIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}

func subset(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func subsetBool(y []bool, idx []int) []bool {
	out := make([]bool, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

package service

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/fusion"
	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/trainer"
)

// Orchestrator drives the retrain cycle: fuse all sources, train, persist,
// then swap the serving model. Failures at any stage surface as an error;
// they never corrupt the previously persisted artifact, which stays
// authoritative until the new one is fully written.
type Orchestrator struct {
	fusion    *fusion.Service
	trainer   *trainer.Trainer
	predictor *Predictor
	logger    *zap.Logger

	// Serializes retrains; concurrent requests queue rather than racing on
	// the artifact files.
	mu sync.Mutex
}

// NewOrchestrator wires the retrain pipeline.
func NewOrchestrator(f *fusion.Service, t *trainer.Trainer, p *Predictor, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{fusion: f, trainer: t, predictor: p, logger: logger}
}

// Retrain rebuilds the training set with nSynthetic fresh samples and fits a
// new model. Any internal fault is converted into the returned error.
func (o *Orchestrator) Retrain(nSynthetic int) (run models.TrainingRun, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retraining aborted: %v", r)
		}
	}()

	o.logger.Info("Retraining model with all available data", zap.Int("n_synthetic", nSynthetic))

	ds, err := o.fusion.Prepare(nSynthetic)
	if err != nil {
		return run, fmt.Errorf("data fusion failed: %w", err)
	}

	run, err = o.trainer.Train(ds)
	if err != nil {
		return run, err
	}

	// The new artifact is persisted; a reload failure only delays the swap
	// and the next prediction retries the load.
	if err := o.predictor.Reload(); err != nil {
		o.logger.Warn("Model persisted but reload failed", zap.Error(err))
	}

	o.logger.Info("Model successfully retrained", zap.Float64("accuracy", run.Accuracy))
	return run, nil
}

// Package fusion assembles the training set from every available source:
// synthetic households, hand-authored boundary anchors, operator-verified
// feedback, and the external recipient registry. Each run records a manifest
// of per-source counts in the data-generation history log.
package fusion

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/generator"
	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/registry"
)

// FeedbackSource is the slice of the feedback repository fusion consumes.
type FeedbackSource interface {
	ReadAll() ([]models.FamilyRecord, error)
	Columns() ([]string, error)
}

// HistoryLog records fusion manifests.
type HistoryLog interface {
	AppendGenerationRun(models.DataSources) error
}

// Dataset is one fused training set with its manifest. The invariant
// sum(manifest counts) == len(Records) holds for every run.
type Dataset struct {
	Records  []models.FamilyRecord
	Schema   models.FeatureSchema
	Manifest models.DataSources
}

// Service merges training data from all configured sources.
type Service struct {
	feedback FeedbackSource
	registry registry.Source
	history  HistoryLog
	logger   *zap.Logger
}

// NewService creates a fusion service. feedback and registrySource may be nil
// when the corresponding source is not configured.
func NewService(feedback FeedbackSource, registrySource registry.Source, history HistoryLog, logger *zap.Logger) *Service {
	return &Service{
		feedback: feedback,
		registry: registrySource,
		history:  history,
		logger:   logger,
	}
}

// Prepare generates nSynthetic fresh households and fuses them with the
// boundary anchors, verified feedback, and registry records, in that order.
func (s *Service) Prepare(nSynthetic int) (*Dataset, error) {
	if nSynthetic < 0 {
		return nil, fmt.Errorf("invalid synthetic sample count: %d", nSynthetic)
	}

	seed := generator.NewSeed()
	s.logger.Info("Generating synthetic family records",
		zap.Int("n_samples", nSynthetic), zap.Int64("seed", seed))

	records := generator.Generate(nSynthetic, seed)
	records = append(records, boundaryAnchors(seed)...)
	syntheticCount := len(records)

	verified := s.loadFeedback()
	records = append(records, verified...)

	fromRegistry := s.loadRegistry()
	records = append(records, fromRegistry...)

	manifest := models.DataSources{
		SyntheticSamples: syntheticCount,
		SavedDataSamples: len(verified),
		AsnafDataSamples: len(fromRegistry),
		GenerationSeed:   seed,
		GenerationDate:   time.Now().Format("2006-01-02 15:04:05"),
	}

	if err := s.history.AppendGenerationRun(manifest); err != nil {
		return nil, fmt.Errorf("failed to record data generation history: %w", err)
	}

	s.logger.Info("Training set fused",
		zap.Int("total", len(records)),
		zap.Int("synthetic", manifest.SyntheticSamples),
		zap.Int("verified", manifest.SavedDataSamples),
		zap.Int("registry", manifest.AsnafDataSamples))

	return &Dataset{
		Records:  records,
		Schema:   models.DefaultFeatureSchema(),
		Manifest: manifest,
	}, nil
}

// boundaryAnchors returns the two hand-authored examples that pin the
// decision boundary: one unambiguously eligible, one unambiguously not.
func boundaryAnchors(seed int64) []models.FamilyRecord {
	return []models.FamilyRecord{
		{
			FamilyID:      fmt.Sprintf("FAM_DUMMY_ELIGIBLE_%d", seed),
			MonthlyIncome: 200,
			FamilyMembers: 7,
			StableHousing: false,
			CleanWater:    false,
			Electricity:   false,
			HealthIssues:  true,
			DeservesHelp:  true,
			Provenance:    models.ProvenanceSynthetic,
		},
		{
			FamilyID:      fmt.Sprintf("FAM_DUMMY_NOT_ELIGIBLE_%d", seed),
			MonthlyIncome: 3500,
			FamilyMembers: 2,
			StableHousing: true,
			CleanWater:    true,
			Electricity:   true,
			HealthIssues:  false,
			DeservesHelp:  false,
			Provenance:    models.ProvenanceSynthetic,
		},
	}
}

// loadFeedback pulls verified records, but only if the store's columns still
// cover the fusion schema. A store that has drifted is skipped with a warning
// rather than failing the run.
func (s *Service) loadFeedback() []models.FamilyRecord {
	if s.feedback == nil {
		return nil
	}

	cols, err := s.feedback.Columns()
	if err != nil {
		s.logger.Warn("Could not inspect feedback store columns, skipping saved data", zap.Error(err))
		return nil
	}
	colSet := make(map[string]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}
	required := append(models.DefaultFeatureSchema(), "family_id", "deserves_help")
	for _, col := range required {
		if !colSet[col] {
			s.logger.Warn("Feedback store missing column, skipping saved data",
				zap.String("column", col))
			return nil
		}
	}

	records, err := s.feedback.ReadAll()
	if err != nil {
		s.logger.Warn("Could not read feedback store, skipping saved data", zap.Error(err))
		return nil
	}
	if len(records) > 0 {
		s.logger.Info("Added verified data samples to training data", zap.Int("count", len(records)))
	}
	return records
}

// loadRegistry pulls and relabels recipient-directory records. An absent or
// unreachable directory contributes nothing.
func (s *Service) loadRegistry() []models.FamilyRecord {
	if s.registry == nil {
		return nil
	}

	raw, err := s.registry.Fetch()
	if err != nil {
		s.logger.Warn("Could not load asnaf recipients data, skipping", zap.Error(err))
		return nil
	}

	records := make([]models.FamilyRecord, 0, len(raw))
	for i, rec := range raw {
		records = append(records, registry.Convert(rec, i))
	}
	if len(records) > 0 {
		s.logger.Info("Added asnaf recipient samples to training data", zap.Int("count", len(records)))
	}
	return records
}

// Package artifact persists the trained model bundle and its metadata.
// Every write goes to a temporary file in the target directory followed by a
// rename, so readers see either the previous artifact or the new one in full,
// never a partial write.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/irfpannn/ikhlas/internal/forest"
	"github.com/irfpannn/ikhlas/internal/models"
)

// ErrModelNotFound means no model bundle has been persisted yet.
var ErrModelNotFound = errors.New("model artifact not found")

// ErrMetadataNotFound means no training run has been recorded yet.
var ErrMetadataNotFound = errors.New("model metadata not found")

const (
	bundleFile       = "family_assistance_classifier.json"
	metadataFile     = "model_metadata.json"
	modelHistoryFile = "model_history.json"
	dataHistoryFile  = "data_generation_history.json"
)

// Bundle is the unit of model persistence: the classifier and the feature
// schema it was trained on are versioned together, never separately.
type Bundle struct {
	FeatureColumns models.FeatureSchema `json:"feature_columns"`
	Model          *forest.Forest       `json:"model"`
}

// Store reads and writes artifacts under a single directory. The backing
// layout is plain JSON files; callers go through Store so the backend can be
// swapped without touching training or serving logic.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveBundle atomically replaces the persisted model bundle.
func (s *Store) SaveBundle(b *Bundle) error {
	return s.writeAtomic(bundleFile, b)
}

// LoadBundle reads the persisted model bundle.
func (s *Store) LoadBundle() (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, bundleFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to read model bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle: %w", err)
	}
	return &b, nil
}

// SaveTrainingRun appends the run to the model history log and copies it to
// the current-metadata pointer. History is never rewritten, only extended.
func (s *Store) SaveTrainingRun(run models.TrainingRun) error {
	var history []models.TrainingRun
	// A missing or corrupt history starts a fresh log rather than failing.
	if data, err := os.ReadFile(filepath.Join(s.dir, modelHistoryFile)); err == nil {
		_ = json.Unmarshal(data, &history)
	}
	history = append(history, run)

	if err := s.writeAtomic(modelHistoryFile, history); err != nil {
		return err
	}
	return s.writeAtomic(metadataFile, run)
}

// CurrentRun returns the metadata of the latest successful training run.
func (s *Store) CurrentRun() (models.TrainingRun, error) {
	var run models.TrainingRun
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return run, ErrMetadataNotFound
		}
		return run, fmt.Errorf("failed to read model metadata: %w", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("failed to decode model metadata: %w", err)
	}
	return run, nil
}

// ModelHistory returns the append-only sequence of training runs.
func (s *Store) ModelHistory() ([]models.TrainingRun, error) {
	var history []models.TrainingRun
	data, err := os.ReadFile(filepath.Join(s.dir, modelHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode model history: %w", err)
	}
	return history, nil
}

// AppendGenerationRun records one fusion run's data-source manifest.
func (s *Store) AppendGenerationRun(ds models.DataSources) error {
	history, err := s.GenerationHistory()
	if err != nil {
		return err
	}
	history = append(history, ds)
	return s.writeAtomic(dataHistoryFile, history)
}

// GenerationHistory returns the append-only log of fusion manifests.
func (s *Store) GenerationHistory() ([]models.DataSources, error) {
	var history []models.DataSources
	data, err := os.ReadFile(filepath.Join(s.dir, dataHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	// Tolerate a corrupt log the same way a missing one is tolerated.
	_ = json.Unmarshal(data, &history)
	return history, nil
}

func (s *Store) writeAtomic(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

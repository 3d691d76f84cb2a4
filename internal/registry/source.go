package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// FileSource reads the recipient directory from a JSON file exported by the
// client application. A missing file is not an error: the source just has
// nothing to contribute yet.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a file-backed directory source.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

func (s *FileSource) Fetch() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Asnaf recipients file not found", zap.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recipients file: %w", err)
	}
	recs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipients file: %w", err)
	}
	return recs, nil
}

// HTTPSource fetches the recipient directory from a remote registry service.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSource creates a client for a remote registry endpoint.
func NewHTTPSource(baseURL string, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPSource) Fetch() ([]Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/recipients", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Registry service unreachable", zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Registry returned non-OK status", zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var recs []Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode registry response: %w", err)
	}
	return recs, nil
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/repository"
	"github.com/irfpannn/ikhlas/internal/service"
)

// Handler handles HTTP requests
type Handler struct {
	predictor      *service.Predictor
	orchestrator   *service.Orchestrator
	feedback       *repository.FeedbackRepository
	store          *artifact.Store
	defaultSamples int
	logger         *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(predictor *service.Predictor, orchestrator *service.Orchestrator, feedback *repository.FeedbackRepository, store *artifact.Store, defaultSamples int, logger *zap.Logger) *Handler {
	return &Handler{
		predictor:      predictor,
		orchestrator:   orchestrator,
		feedback:       feedback,
		store:          store,
		defaultSamples: defaultSamples,
		logger:         logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// Prediction endpoints
		api.POST("/assess-eligibility", h.AssessEligibility)
		api.POST("/batch-assess", h.BatchAssess)

		// Model lifecycle
		api.GET("/model-info", h.GetModelInfo)
		api.POST("/save-verified-data", h.SaveVerifiedData)
		api.POST("/retrain-model", h.RetrainModel)

		// Provenance and stats
		api.GET("/data-sources", h.GetDataSources)
		api.GET("/feedback/stats", h.GetFeedbackStats)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// AssessEligibility scores a single family record.
func (h *Handler) AssessEligibility(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	input, err := coerceInput(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.predictor.Predict([]models.FamilyInput{input}, nil)
	if err != nil {
		h.predictionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  results[0],
	})
}

// BatchAssess scores an ordered sequence of family records.
func (h *Handler) BatchAssess(c *gin.Context) {
	var req struct {
		Records []map[string]interface{} `json:"records"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Records == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data format. Expected 'records' array"})
		return
	}

	inputs := make([]models.FamilyInput, 0, len(req.Records))
	for _, raw := range req.Records {
		input, err := coerceInput(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() + " in one of the records"})
			return
		}
		inputs = append(inputs, input)
	}

	results, err := h.predictor.Predict(inputs, nil)
	if err != nil {
		h.predictionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// GetModelInfo returns metadata of the current model.
func (h *Handler) GetModelInfo(c *gin.Context) {
	run, err := h.store.CurrentRun()
	if err != nil {
		if errors.Is(err, artifact.ErrMetadataNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Model metadata not found"})
			return
		}
		h.logger.Error("Failed to read model metadata", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"model_info": run,
	})
}

// SaveVerifiedData stores operator-verified family records for future
// retraining.
func (h *Handler) SaveVerifiedData(c *gin.Context) {
	var req models.SaveVerifiedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FamilyData == nil || req.ActualEligibility == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data format. Expected 'family_data' and 'actual_eligibility'"})
		return
	}

	records, err := parseFamilyData(req.FamilyData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.feedback.Save(records, *req.ActualEligibility)
	if err != nil {
		h.logger.Error("Failed to save verified data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error saving verified data"})
		return
	}
	if !saved {
		// Duplicate feedback is a no-op, not a failure.
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Record already verified; duplicate skipped",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verified data saved successfully",
	})
}

// RetrainModel re-runs fusion and training with all available data. The call
// blocks until training completes.
func (h *Handler) RetrainModel(c *gin.Context) {
	var req models.RetrainRequest
	// An empty body means "use defaults".
	_ = c.ShouldBindJSON(&req)

	n := h.defaultSamples
	if req.NDummySamples != nil {
		n = *req.NDummySamples
	}

	run, err := h.orchestrator.Retrain(n)
	if err != nil {
		h.logger.Error("Retraining failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error retraining model: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Model retrained successfully",
		"model_info": run,
	})
}

// GetDataSources returns the append-only log of fusion manifests.
func (h *Handler) GetDataSources(c *gin.Context) {
	history, err := h.store.GenerationHistory()
	if err != nil {
		h.logger.Error("Failed to read data generation history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if history == nil {
		history = []models.DataSources{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
	})
}

// GetFeedbackStats returns aggregate counts over the verified-data store.
func (h *Handler) GetFeedbackStats(c *gin.Context) {
	stats, err := h.feedback.Stats()
	if err != nil {
		h.logger.Error("Failed to read feedback stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) predictionError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, artifact.ErrModelNotFound):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not trained yet"})
	case errors.Is(err, service.ErrSchemaMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error making prediction"})
	}
}

// coerceInput converts a raw JSON object into a feature map. Numbers pass
// through, booleans become 0/1, numeric strings are parsed, and nulls stay
// null so the predictor can apply its defaults. Non-numeric values on
// non-feature keys (family_id and the like) are dropped.
func coerceInput(raw map[string]interface{}) (models.FamilyInput, error) {
	features := make(map[string]bool)
	for _, col := range models.DefaultFeatureSchema() {
		features[col] = true
	}

	input := make(models.FamilyInput, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			input[key] = nil
		case float64:
			f := v
			input[key] = &f
		case bool:
			f := 0.0
			if v {
				f = 1.0
			}
			input[key] = &f
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				if features[key] {
					return nil, errors.New("invalid value for field: " + key)
				}
				continue
			}
			input[key] = &f
		default:
			if features[key] {
				return nil, errors.New("invalid value for field: " + key)
			}
		}
	}
	return input, nil
}

// parseFamilyData accepts either a single family object or an array of them,
// normalizing to a slice of records.
func parseFamilyData(raw json.RawMessage) ([]models.FamilyRecord, error) {
	var objects []map[string]interface{}
	if err := json.Unmarshal(raw, &objects); err != nil {
		var single map[string]interface{}
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, errors.New("invalid family_data: expected object or array of objects")
		}
		objects = []map[string]interface{}{single}
	}

	records := make([]models.FamilyRecord, 0, len(objects))
	for _, obj := range objects {
		rec, err := toFamilyRecord(obj)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toFamilyRecord(obj map[string]interface{}) (models.FamilyRecord, error) {
	var rec models.FamilyRecord

	input, err := coerceInput(obj)
	if err != nil {
		return rec, err
	}
	for _, col := range models.DefaultFeatureSchema() {
		v, ok := input[col]
		if !ok || v == nil {
			return rec, errors.New("missing required field: " + col)
		}
	}

	if id, ok := obj["family_id"].(string); ok {
		rec.FamilyID = id
	}
	rec.MonthlyIncome = *input[models.FeatureMonthlyIncome]
	rec.FamilyMembers = int(*input[models.FeatureFamilyMembers])
	rec.StableHousing = *input[models.FeatureStableHousing] != 0
	rec.CleanWater = *input[models.FeatureCleanWater] != 0
	rec.Electricity = *input[models.FeatureElectricity] != 0
	rec.HealthIssues = *input[models.FeatureHealthIssues] != 0
	return rec, nil
}

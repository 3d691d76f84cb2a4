package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/fusion"
	"github.com/irfpannn/ikhlas/internal/repository"
	"github.com/irfpannn/ikhlas/internal/service"
	"github.com/irfpannn/ikhlas/internal/trainer"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	repo, err := repository.NewFeedbackRepository(filepath.Join(t.TempDir(), "feedback.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fusionSvc := fusion.NewService(repo, nil, store, logger)
	tr := trainer.New(store, logger)
	predictor := service.NewPredictor(store, logger)
	orch := service.NewOrchestrator(fusionSvc, tr, predictor, logger)

	router := gin.New()
	NewHandler(predictor, orch, repo, store, 100, logger).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func validFamily() map[string]interface{} {
	return map[string]interface{}{
		"monthly_income":                550,
		"family_members":                4,
		"has_stable_housing":            1,
		"access_to_clean_water":         0,
		"access_to_electricity":         0,
		"has_significant_health_issues": 0,
	}
}

func retrain(t *testing.T, router *gin.Engine) {
	t.Helper()
	w, _ := doJSON(t, router, http.MethodPost, "/api/retrain-model", map[string]interface{}{"n_dummy_samples": 80})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)
	w, resp := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestAssessBeforeTraining(t *testing.T) {
	router := newTestRouter(t)
	w, resp := doJSON(t, router, http.MethodPost, "/api/assess-eligibility", validFamily())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, resp["error"], "not trained")
}

func TestAssessMissingField(t *testing.T) {
	router := newTestRouter(t)
	retrain(t, router)

	family := validFamily()
	delete(family, "access_to_clean_water")
	w, resp := doJSON(t, router, http.MethodPost, "/api/assess-eligibility", family)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "access_to_clean_water")
}

func TestAssessEligibility(t *testing.T) {
	router := newTestRouter(t)
	retrain(t, router)

	w, resp := doJSON(t, router, http.MethodPost, "/api/assess-eligibility", validFamily())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, []string{"Deserves Help", "Does Not Currently Qualify"}, result["prediction"])
	assert.Regexp(t, `^\d+\.\d{2}%$`, result["probability_deserves_help"])

	inputData, ok := result["input_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, inputData, 6)
	assert.Equal(t, 550.0, inputData["monthly_income"])
}

func TestAssessCoercesBoolAndStringValues(t *testing.T) {
	router := newTestRouter(t)
	retrain(t, router)

	family := map[string]interface{}{
		"monthly_income":                "550",
		"family_members":                4,
		"has_stable_housing":            true,
		"access_to_clean_water":         false,
		"access_to_electricity":         0,
		"has_significant_health_issues": false,
	}
	w, resp := doJSON(t, router, http.MethodPost, "/api/assess-eligibility", family)
	require.Equal(t, http.StatusOK, w.Code)

	result := resp["result"].(map[string]interface{})
	inputData := result["input_data"].(map[string]interface{})
	assert.Equal(t, 550.0, inputData["monthly_income"])
	assert.Equal(t, 1.0, inputData["has_stable_housing"])
}

func TestBatchAssess(t *testing.T) {
	router := newTestRouter(t)
	retrain(t, router)

	body := map[string]interface{}{
		"records": []map[string]interface{}{validFamily(), validFamily()},
	}
	w, resp := doJSON(t, router, http.MethodPost, "/api/batch-assess", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	results, ok := resp["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 2)
}

func TestBatchAssessInvalidFormat(t *testing.T) {
	router := newTestRouter(t)
	w, resp := doJSON(t, router, http.MethodPost, "/api/batch-assess", map[string]interface{}{"rows": []int{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "records")
}

func TestModelInfoBeforeTraining(t *testing.T) {
	router := newTestRouter(t)
	w, resp := doJSON(t, router, http.MethodGet, "/api/model-info", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, resp["error"], "not found")
}

func TestModelInfoAfterTraining(t *testing.T) {
	router := newTestRouter(t)
	retrain(t, router)

	w, resp := doJSON(t, router, http.MethodGet, "/api/model-info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	info, ok := resp["model_info"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, info["training_date"])
	assert.NotNil(t, info["accuracy"])

	importance, ok := info["feature_importance"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, importance, 6)
}

func TestSaveVerifiedDataAndDuplicate(t *testing.T) {
	router := newTestRouter(t)

	body := map[string]interface{}{
		"family_data":        validFamily(),
		"actual_eligibility": true,
	}
	w, resp := doJSON(t, router, http.MethodPost, "/api/save-verified-data", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	// Second submission with the same dedup key is skipped, not failed.
	w, resp = doJSON(t, router, http.MethodPost, "/api/save-verified-data", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["message"], "duplicate")
}

func TestSaveVerifiedDataInvalidFormat(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/save-verified-data", map[string]interface{}{
		"family_data": validFamily(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "actual_eligibility")

	incomplete := validFamily()
	delete(incomplete, "monthly_income")
	w, resp = doJSON(t, router, http.MethodPost, "/api/save-verified-data", map[string]interface{}{
		"family_data":        incomplete,
		"actual_eligibility": false,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "monthly_income")
}

func TestFeedbackFlowsIntoRetrain(t *testing.T) {
	router := newTestRouter(t)

	body := map[string]interface{}{
		"family_data":        validFamily(),
		"actual_eligibility": true,
	}
	w, _ := doJSON(t, router, http.MethodPost, "/api/save-verified-data", body)
	require.Equal(t, http.StatusOK, w.Code)

	retrain(t, router)

	w, resp := doJSON(t, router, http.MethodGet, "/api/data-sources", nil)
	require.Equal(t, http.StatusOK, w.Code)

	history, ok := resp["history"].([]interface{})
	require.True(t, ok)
	require.Len(t, history, 1)
	manifest := history[0].(map[string]interface{})
	assert.Equal(t, 1.0, manifest["saved_data_samples"], "verified record joined the training set")
	assert.Equal(t, 82.0, manifest["synthetic_samples"])
}

func TestFeedbackStats(t *testing.T) {
	router := newTestRouter(t)

	body := map[string]interface{}{
		"family_data":        validFamily(),
		"actual_eligibility": true,
	}
	w, _ := doJSON(t, router, http.MethodPost, "/api/save-verified-data", body)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, "/api/feedback/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stats, ok := resp["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, stats["total_records"])
	assert.Equal(t, 1.0, stats["eligible_records"])
}

func TestRetrainUsesDefaultSampleCount(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/retrain-model", map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	info := resp["model_info"].(map[string]interface{})
	sources := info["data_sources"].(map[string]interface{})
	assert.Equal(t, 102.0, sources["synthetic_samples"], "default of 100 plus two boundary anchors")
}

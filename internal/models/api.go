package models

import "encoding/json"

// FamilyInput is one prediction-request record as it arrives over the wire.
// Pointer fields distinguish a key that is absent (a validation error at the
// prediction boundary) from a key that is present with a null value (defaulted
// before inference).
type FamilyInput map[string]*float64

// PredictionResult is one prediction response entry.
type PredictionResult struct {
	Prediction              string             `json:"prediction"`
	ProbabilityDeservesHelp string             `json:"probability_deserves_help"`
	InputData               map[string]float64 `json:"input_data"`
}

// SaveVerifiedRequest is the operator-feedback request body. FamilyData may be
// a single object or an array of objects; RawFamilyData keeps the raw JSON so
// the handler can normalize both shapes.
type SaveVerifiedRequest struct {
	FamilyData        json.RawMessage `json:"family_data"`
	ActualEligibility *bool           `json:"actual_eligibility"`
}

// RetrainRequest is the retrain request body.
type RetrainRequest struct {
	NDummySamples *int `json:"n_dummy_samples"`
}

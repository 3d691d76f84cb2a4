package models

// DataSources records how many samples each provenance contributed to one
// fusion run, plus the synthetic-generation seed and timestamp.
type DataSources struct {
	SyntheticSamples int    `json:"synthetic_samples"`
	SavedDataSamples int    `json:"saved_data_samples"`
	AsnafDataSamples int    `json:"asnaf_data_samples"`
	GenerationSeed   int64  `json:"generation_seed"`
	GenerationDate   string `json:"generation_date"`
}

// TrainingRun is the metadata persisted for one training invocation. History
// is an append-only sequence of these; a separate "current" record points at
// the latest successful run.
type TrainingRun struct {
	TrainingDate      string             `json:"training_date"`
	Accuracy          float64            `json:"accuracy"`
	SamplesCount      int                `json:"samples_count"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	DataSources       DataSources        `json:"data_sources"`
}

// ClassMetrics is the per-class slice of an evaluation report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Evaluation holds the held-out-split report for one training run.
type Evaluation struct {
	Accuracy        float64                 `json:"accuracy"`
	Report          map[string]ClassMetrics `json:"classification_report"`
	ConfusionMatrix [2][2]int               `json:"confusion_matrix"`
}

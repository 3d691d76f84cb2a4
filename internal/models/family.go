package models

// Provenance marks where a family record originated.
type Provenance string

const (
	ProvenanceSynthetic Provenance = "synthetic"
	ProvenanceVerified  Provenance = "verified"
	ProvenanceRegistry  Provenance = "registry"
)

// Feature names, in training order. The order is load-bearing: generation,
// fusion, training and prediction all index feature vectors by it.
const (
	FeatureMonthlyIncome = "monthly_income"
	FeatureFamilyMembers = "family_members"
	FeatureStableHousing = "has_stable_housing"
	FeatureCleanWater    = "access_to_clean_water"
	FeatureElectricity   = "access_to_electricity"
	FeatureHealthIssues  = "has_significant_health_issues"
)

// FeatureSchema is the ordered list of feature columns a model is trained on.
type FeatureSchema []string

// DefaultFeatureSchema returns the canonical six-column schema.
func DefaultFeatureSchema() FeatureSchema {
	return FeatureSchema{
		FeatureMonthlyIncome,
		FeatureFamilyMembers,
		FeatureStableHousing,
		FeatureCleanWater,
		FeatureElectricity,
		FeatureHealthIssues,
	}
}

// Equal reports whether two schemas have identical columns in identical order.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// FamilyRecord is one household observation.
type FamilyRecord struct {
	FamilyID         string     `json:"family_id"`
	MonthlyIncome    float64    `json:"monthly_income"`
	FamilyMembers    int        `json:"family_members"`
	StableHousing    bool       `json:"has_stable_housing"`
	CleanWater       bool       `json:"access_to_clean_water"`
	Electricity      bool       `json:"access_to_electricity"`
	HealthIssues     bool       `json:"has_significant_health_issues"`
	DeservesHelp     bool       `json:"deserves_help"`
	VerificationDate string     `json:"verification_date,omitempty"`
	Provenance       Provenance `json:"provenance,omitempty"`
}

// Features returns the record's feature vector in schema order.
func (r FamilyRecord) Features() []float64 {
	return []float64{
		r.MonthlyIncome,
		float64(r.FamilyMembers),
		boolToFloat(r.StableHousing),
		boolToFloat(r.CleanWater),
		boolToFloat(r.Electricity),
		boolToFloat(r.HealthIssues),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

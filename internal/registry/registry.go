// Package registry reads recipient records from an external asnaf directory
// and converts them into labeled family records. The directory is maintained
// elsewhere; fields it does not track are filled with documented defaults
// before relabeling.
package registry

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/irfpannn/ikhlas/internal/models"
)

// Ingestion defaults for fields the directory may omit. Utilities default to
// present: directory entries describe registered aid recipients, for whom
// connection to utilities is the documented baseline assumption. Note the
// prediction boundary defaults the same booleans to absent instead; see
// service.predictionDefaults.
const (
	defaultIncome      = 0
	defaultMembers     = 1
	defaultHousing     = true
	defaultWater       = true
	defaultElectricity = true
	defaultHealth      = false
)

// Record is one raw directory entry. Pointer fields are optional in the feed.
type Record struct {
	FamilyID      string   `json:"family_id"`
	MonthlyIncome *float64 `json:"monthly_income"`
	FamilyMembers *int     `json:"family_members"`
	StableHousing *int     `json:"has_stable_housing"`
	CleanWater    *int     `json:"access_to_clean_water"`
	Electricity   *int     `json:"access_to_electricity"`
	HealthIssues  *int     `json:"has_significant_health_issues"`
	Category      string   `json:"category"`
	MLEligibility *struct {
		Eligible bool `json:"eligible"`
	} `json:"mlEligibility"`
}

// Source yields raw directory records. Implementations must return an empty
// slice rather than failing when the directory is simply absent.
type Source interface {
	Fetch() ([]Record, error)
}

// Parse decodes a raw directory payload (a JSON array of entries).
func Parse(data []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Convert fills defaults and relabels a directory entry. The explicit
// eligibility flag wins when present; otherwise eligibility is inferred from
// the category string (faqir/"Poor" and miskin/"Needy" categories qualify).
func Convert(r Record, index int) models.FamilyRecord {
	out := models.FamilyRecord{
		FamilyID:      r.FamilyID,
		MonthlyIncome: defaultIncome,
		FamilyMembers: defaultMembers,
		StableHousing: defaultHousing,
		CleanWater:    defaultWater,
		Electricity:   defaultElectricity,
		HealthIssues:  defaultHealth,
		Provenance:    models.ProvenanceRegistry,
	}
	if out.FamilyID == "" {
		out.FamilyID = "FAM_ASNAF_" + strconv.Itoa(index)
	}
	if r.MonthlyIncome != nil {
		out.MonthlyIncome = *r.MonthlyIncome
	}
	if r.FamilyMembers != nil {
		out.FamilyMembers = *r.FamilyMembers
	}
	if r.StableHousing != nil {
		out.StableHousing = *r.StableHousing != 0
	}
	if r.CleanWater != nil {
		out.CleanWater = *r.CleanWater != 0
	}
	if r.Electricity != nil {
		out.Electricity = *r.Electricity != 0
	}
	if r.HealthIssues != nil {
		out.HealthIssues = *r.HealthIssues != 0
	}

	if r.MLEligibility != nil {
		out.DeservesHelp = r.MLEligibility.Eligible
	} else {
		out.DeservesHelp = strings.Contains(r.Category, "Poor") || strings.Contains(r.Category, "Needy")
	}
	return out
}

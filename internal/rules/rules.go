// Package rules implements the deterministic eligibility policy used as
// ground truth for synthetic training data. The policy mirrors the asnaf
// (faqir/miskin) criteria: a household qualifies when any one of six
// deprivation conditions holds.
package rules

import "github.com/irfpannn/ikhlas/internal/models"

// Label reports whether a household meets at least one assistance condition.
// All six conditions are plain predicates over the record; evaluation order
// does not matter.
func Label(r models.FamilyRecord) bool {
	// Very low income and lacking a basic necessity.
	if r.MonthlyIncome < 500 && (!r.StableHousing || !r.CleanWater || !r.Electricity) {
		return true
	}
	// Low income, large family, unstable housing.
	if r.MonthlyIncome < 700 && r.FamilyMembers > 5 && !r.StableHousing {
		return true
	}
	// Significant health issues in a very low-income family.
	if r.HealthIssues && r.MonthlyIncome < 800 {
		return true
	}
	// Missing both essential utilities, regardless of income.
	if !r.CleanWater && !r.Electricity {
		return true
	}
	// Low income, large family, no clean water.
	if r.MonthlyIncome < 900 && r.FamilyMembers > 4 && !r.CleanWater {
		return true
	}
	// Moderately low income without electricity.
	if r.MonthlyIncome < 600 && !r.Electricity {
		return true
	}
	return false
}

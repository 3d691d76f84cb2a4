package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/rules"
)

func TestGenerateRanges(t *testing.T) {
	records := Generate(1000, 7)
	require.Len(t, records, 1000)

	for _, rec := range records {
		assert.GreaterOrEqual(t, rec.MonthlyIncome, 100.0)
		assert.Equal(t, rec.MonthlyIncome, float64(int64(rec.MonthlyIncome)), "income is rounded to a whole amount")
		assert.GreaterOrEqual(t, rec.FamilyMembers, 1)
		assert.LessOrEqual(t, rec.FamilyMembers, 8)
		assert.Equal(t, models.ProvenanceSynthetic, rec.Provenance)
		assert.NotEmpty(t, rec.FamilyID)
	}
}

func TestGenerateLabelsMatchRules(t *testing.T) {
	for _, rec := range Generate(500, 99) {
		assert.Equal(t, rules.Label(rec), rec.DeservesHelp)
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	a := Generate(200, 1234)
	b := Generate(200, 1234)
	assert.Equal(t, a, b)

	c := Generate(200, 4321)
	assert.NotEqual(t, a, c)
}

func TestGenerateIncomeCorrelation(t *testing.T) {
	// Utility access probabilities grow with income, so the low-income band
	// must show more deprivation than the high-income band.
	records := Generate(5000, 42)

	var lowDeprived, lowTotal, highDeprived, highTotal int
	for _, rec := range records {
		deprived := !rec.CleanWater || !rec.Electricity || !rec.StableHousing
		switch {
		case rec.MonthlyIncome < 600:
			lowTotal++
			if deprived {
				lowDeprived++
			}
		case rec.MonthlyIncome > 1500:
			highTotal++
			if deprived {
				highDeprived++
			}
		}
	}
	require.Greater(t, lowTotal, 100)
	require.Greater(t, highTotal, 100)
	assert.Greater(t,
		float64(lowDeprived)/float64(lowTotal),
		float64(highDeprived)/float64(highTotal))
}

func TestGenerateZeroSamples(t *testing.T) {
	assert.Empty(t, Generate(0, 5))
}

func TestNewSeedRange(t *testing.T) {
	seed := NewSeed()
	assert.GreaterOrEqual(t, seed, int64(0))
	assert.Less(t, seed, int64(10000))
}

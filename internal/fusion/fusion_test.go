package fusion

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/models"
	"github.com/irfpannn/ikhlas/internal/registry"
)

type fakeFeedback struct {
	records []models.FamilyRecord
	columns []string
	readErr error
}

func (f *fakeFeedback) ReadAll() ([]models.FamilyRecord, error) { return f.records, f.readErr }
func (f *fakeFeedback) Columns() ([]string, error)              { return f.columns, nil }

type fakeRegistry struct {
	records []registry.Record
	err     error
}

func (f *fakeRegistry) Fetch() ([]registry.Record, error) { return f.records, f.err }

type fakeHistory struct {
	entries []models.DataSources
	err     error
}

func (f *fakeHistory) AppendGenerationRun(ds models.DataSources) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, ds)
	return nil
}

func fullColumns() []string {
	return append(models.DefaultFeatureSchema(), "family_id", "deserves_help", "verification_date")
}

func TestPrepareManifestSumEqualsDatasetSize(t *testing.T) {
	feedback := &fakeFeedback{
		columns: fullColumns(),
		records: []models.FamilyRecord{
			{FamilyID: "FAM_REAL_1", MonthlyIncome: 400, FamilyMembers: 5, DeservesHelp: true},
		},
	}
	reg := &fakeRegistry{records: []registry.Record{
		{FamilyID: "FAM_ASNAF_A", Category: "Poor (Fakir)"},
		{FamilyID: "FAM_ASNAF_B", Category: "Wayfarer"},
	}}
	history := &fakeHistory{}

	svc := NewService(feedback, reg, history, zap.NewNop())
	ds, err := svc.Prepare(50)
	require.NoError(t, err)

	m := ds.Manifest
	assert.Equal(t, len(ds.Records), m.SyntheticSamples+m.SavedDataSamples+m.AsnafDataSamples)
	assert.Equal(t, 52, m.SyntheticSamples, "synthetic count includes the two boundary anchors")
	assert.Equal(t, 1, m.SavedDataSamples)
	assert.Equal(t, 2, m.AsnafDataSamples)
	require.Len(t, history.entries, 1)
	assert.Equal(t, m, history.entries[0])
}

func TestPrepareSourceOrder(t *testing.T) {
	feedback := &fakeFeedback{
		columns: fullColumns(),
		records: []models.FamilyRecord{{FamilyID: "FAM_REAL_1", Provenance: models.ProvenanceVerified}},
	}
	reg := &fakeRegistry{records: []registry.Record{{FamilyID: "FAM_ASNAF_A", Category: "Needy"}}}

	svc := NewService(feedback, reg, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(10)
	require.NoError(t, err)
	require.Len(t, ds.Records, 14)

	for i := 0; i < 10; i++ {
		assert.Equal(t, models.ProvenanceSynthetic, ds.Records[i].Provenance)
	}
	assert.True(t, strings.HasPrefix(ds.Records[10].FamilyID, "FAM_DUMMY_ELIGIBLE_"))
	assert.True(t, ds.Records[10].DeservesHelp)
	assert.True(t, strings.HasPrefix(ds.Records[11].FamilyID, "FAM_DUMMY_NOT_ELIGIBLE_"))
	assert.False(t, ds.Records[11].DeservesHelp)
	assert.Equal(t, models.ProvenanceVerified, ds.Records[12].Provenance)
	assert.Equal(t, models.ProvenanceRegistry, ds.Records[13].Provenance)
}

func TestPrepareBoundaryAnchorValues(t *testing.T) {
	svc := NewService(nil, nil, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(0)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	eligible, notEligible := ds.Records[0], ds.Records[1]
	assert.Equal(t, 200.0, eligible.MonthlyIncome)
	assert.Equal(t, 7, eligible.FamilyMembers)
	assert.True(t, eligible.HealthIssues)
	assert.True(t, eligible.DeservesHelp)

	assert.Equal(t, 3500.0, notEligible.MonthlyIncome)
	assert.Equal(t, 2, notEligible.FamilyMembers)
	assert.True(t, notEligible.StableHousing && notEligible.CleanWater && notEligible.Electricity)
	assert.False(t, notEligible.DeservesHelp)
}

func TestPrepareSkipsFeedbackMissingColumns(t *testing.T) {
	feedback := &fakeFeedback{
		columns: []string{"monthly_income", "family_members"}, // drifted store
		records: []models.FamilyRecord{{FamilyID: "FAM_REAL_1"}},
	}

	svc := NewService(feedback, nil, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(5)
	require.NoError(t, err, "a drifted feedback store is a warning, not a failure")
	assert.Equal(t, 0, ds.Manifest.SavedDataSamples)
	assert.Len(t, ds.Records, 7)
}

func TestPrepareSkipsUnreachableRegistry(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("connection refused")}

	svc := NewService(nil, reg, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(5)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Manifest.AsnafDataSamples)
}

func TestPrepareRegistryRelabeling(t *testing.T) {
	reg := &fakeRegistry{records: []registry.Record{
		{Category: "Poor (Fakir)"},
		{Category: "Convert (Muallaf)"},
	}}

	svc := NewService(nil, reg, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(0)
	require.NoError(t, err)
	require.Len(t, ds.Records, 4)

	assert.True(t, ds.Records[2].DeservesHelp)
	assert.False(t, ds.Records[3].DeservesHelp)
	// Registry ingestion defaults: utilities present, no health issues.
	assert.True(t, ds.Records[2].CleanWater)
	assert.True(t, ds.Records[2].Electricity)
	assert.False(t, ds.Records[2].HealthIssues)
}

func TestPrepareNegativeSampleCount(t *testing.T) {
	svc := NewService(nil, nil, &fakeHistory{}, zap.NewNop())
	_, err := svc.Prepare(-1)
	assert.Error(t, err)
}

func TestPrepareFailsWhenHistoryWriteFails(t *testing.T) {
	svc := NewService(nil, nil, &fakeHistory{err: errors.New("disk full")}, zap.NewNop())
	_, err := svc.Prepare(5)
	assert.Error(t, err)
}

func TestPrepareSchemaFixed(t *testing.T) {
	svc := NewService(nil, nil, &fakeHistory{}, zap.NewNop())
	ds, err := svc.Prepare(1)
	require.NoError(t, err)

	require.Len(t, ds.Schema, 6)
	assert.True(t, ds.Schema.Equal(models.DefaultFeatureSchema()))
}

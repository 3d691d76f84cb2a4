package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/irfpannn/ikhlas/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// FeedbackRepository persists operator-verified family records. Writes must
// be serialized per store: the dedup check and the insert are two steps, and
// a second concurrent writer could pass the check before the first commits.
type FeedbackRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFeedbackRepository opens (creating if needed) the verified-data store.
func NewFeedbackRepository(dbPath string, logger *zap.Logger) (*FeedbackRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &FeedbackRepository{db: db, logger: logger}

	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Feedback repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

// migrate creates tables
func (r *FeedbackRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verified_families (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		family_id TEXT NOT NULL,
		monthly_income REAL NOT NULL,
		family_members INTEGER NOT NULL,
		has_stable_housing BOOLEAN NOT NULL,
		access_to_clean_water BOOLEAN NOT NULL,
		access_to_electricity BOOLEAN NOT NULL,
		has_significant_health_issues BOOLEAN NOT NULL,
		deserves_help BOOLEAN NOT NULL,
		verification_date DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dedup ON verified_families(monthly_income, family_members, has_stable_housing, deserves_help);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Save appends verified records with the operator-confirmed eligibility. If
// any incoming record matches an existing row on the dedup key
// (monthly_income, family_members, has_stable_housing, deserves_help) the
// whole save is skipped and Save returns (false, nil), so callers can tell
// "already recorded" apart from a store failure.
func (r *FeedbackRepository) Save(records []models.FamilyRecord, actualEligibility bool) (bool, error) {
	now := time.Now().Format(timeLayout)

	for i := range records {
		records[i].DeservesHelp = actualEligibility
		records[i].VerificationDate = now
		records[i].Provenance = models.ProvenanceVerified
		if records[i].FamilyID == "" {
			records[i].FamilyID = "FAM_REAL_" + uuid.NewString()
		}
	}

	for _, rec := range records {
		dup, err := r.isDuplicate(rec)
		if err != nil {
			return false, err
		}
		if dup {
			r.logger.Info("Skipping duplicate verified record",
				zap.Float64("monthly_income", rec.MonthlyIncome),
				zap.Int("family_members", rec.FamilyMembers))
			return false, nil
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO verified_families (
			family_id, monthly_income, family_members, has_stable_housing,
			access_to_clean_water, access_to_electricity,
			has_significant_health_issues, deserves_help, verification_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.FamilyID, rec.MonthlyIncome, rec.FamilyMembers, rec.StableHousing,
			rec.CleanWater, rec.Electricity, rec.HealthIssues,
			rec.DeservesHelp, rec.VerificationDate,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert verified record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit verified records: %w", err)
	}

	r.logger.Info("Saved verified records", zap.Int("count", len(records)))
	return true, nil
}

func (r *FeedbackRepository) isDuplicate(rec models.FamilyRecord) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM verified_families
		WHERE monthly_income = ? AND family_members = ?
		  AND has_stable_housing = ? AND deserves_help = ?
	`, rec.MonthlyIncome, rec.FamilyMembers, rec.StableHousing, rec.DeservesHelp).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	return count > 0, nil
}

// ReadAll returns every verified record, oldest first.
func (r *FeedbackRepository) ReadAll() ([]models.FamilyRecord, error) {
	rows, err := r.db.Query(`
		SELECT family_id, monthly_income, family_members, has_stable_housing,
		       access_to_clean_water, access_to_electricity,
		       has_significant_health_issues, deserves_help, verification_date
		FROM verified_families
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FamilyRecord
	for rows.Next() {
		var rec models.FamilyRecord
		err := rows.Scan(
			&rec.FamilyID, &rec.MonthlyIncome, &rec.FamilyMembers, &rec.StableHousing,
			&rec.CleanWater, &rec.Electricity, &rec.HealthIssues,
			&rec.DeservesHelp, &rec.VerificationDate,
		)
		if err != nil {
			return nil, err
		}
		rec.Provenance = models.ProvenanceVerified
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Columns returns the store's column set, used by fusion to verify the store
// still covers the training schema before including it as a source.
func (r *FeedbackRepository) Columns() ([]string, error) {
	rows, err := r.db.Query(`PRAGMA table_info(verified_families)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Stats returns aggregate counts over the store.
func (r *FeedbackRepository) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM verified_families`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_records"] = total

	var eligible int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM verified_families WHERE deserves_help`).Scan(&eligible); err != nil {
		return nil, err
	}
	stats["eligible_records"] = eligible
	stats["ineligible_records"] = total - eligible

	return stats, nil
}

// Close closes the underlying database.
func (r *FeedbackRepository) Close() error {
	return r.db.Close()
}

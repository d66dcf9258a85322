package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SubForecast/models"
)

const predictionColumns = `
	id, prediction_date, method_name, predicted_sales_per_month, predicted_revenue_per_month,
	inputs_snapshot, verified, actual_sales, actual_revenue, error_percent_signed, absolute_error_percent`

// GetAccuracyHistory aggregates verified predictions per method
func (db *DB) GetAccuracyHistory(ctx context.Context) ([]models.MethodAccuracy, error) {
	query := `
		SELECT
			method_name,
			COUNT(*) AS verified_count,
			COALESCE(AVG(absolute_error_percent), 0) AS avg_absolute_error,
			COALESCE(AVG(error_percent_signed), 0) AS avg_signed_error
		FROM prediction_records
		WHERE verified = true
		GROUP BY method_name
		ORDER BY method_name`

	var history []models.MethodAccuracy
	if err := db.SelectContext(ctx, &history, query); err != nil {
		return nil, fmt.Errorf("loading accuracy history: %w", err)
	}
	return history, nil
}

// GetUnverifiedPredictions returns the unverified records made on the given day
func (db *DB) GetUnverifiedPredictions(ctx context.Context, date time.Time) ([]models.PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + `
		FROM prediction_records
		WHERE prediction_date = $1::date AND verified = false
		ORDER BY method_name`

	var records []models.PredictionRecord
	if err := db.SelectContext(ctx, &records, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("loading unverified predictions: %w", err)
	}
	return records, nil
}

// ListVerifiedAboveError returns verified records whose absolute error exceeds threshold
func (db *DB) ListVerifiedAboveError(ctx context.Context, threshold float64) ([]models.PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + `
		FROM prediction_records
		WHERE verified = true AND absolute_error_percent > $1
		ORDER BY prediction_date`

	var records []models.PredictionRecord
	if err := db.SelectContext(ctx, &records, query, threshold); err != nil {
		return nil, fmt.Errorf("listing records above %.0f%% error: %w", threshold, err)
	}
	return records, nil
}

// SaveDailyPredictions inserts the records of one run. A rerun on the same day
// replaces that day's records as long as they are not verified yet.
func (db *DB) SaveDailyPredictions(ctx context.Context, records []models.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO prediction_records (
			id, prediction_date, method_name, predicted_sales_per_month,
			predicted_revenue_per_month, inputs_snapshot, verified
		) VALUES (
			:id, :prediction_date, :method_name, :predicted_sales_per_month,
			:predicted_revenue_per_month, :inputs_snapshot, false
		)
		ON CONFLICT (prediction_date, method_name)
		DO UPDATE SET
			predicted_sales_per_month = EXCLUDED.predicted_sales_per_month,
			predicted_revenue_per_month = EXCLUDED.predicted_revenue_per_month,
			inputs_snapshot = EXCLUDED.inputs_snapshot
		WHERE prediction_records.verified = false`

	for _, r := range records {
		if _, err := tx.NamedExecContext(ctx, query, r); err != nil {
			return fmt.Errorf("saving %s prediction: %w", r.MethodName, err)
		}
	}

	return tx.Commit()
}

// UpdatePredictionVerification sets the verification fields of an unverified
// record. They are written once: verified records are left untouched.
func (db *DB) UpdatePredictionVerification(ctx context.Context, id string, v models.Verification) error {
	res, err := db.ExecContext(ctx, `
		UPDATE prediction_records
		SET verified = true,
			actual_sales = $1,
			actual_revenue = $2,
			error_percent_signed = $3,
			absolute_error_percent = $4
		WHERE id = $5 AND verified = false
	`, v.ActualSales, v.ActualRevenue, v.ErrorPercentSigned, v.AbsoluteErrorPercent, id)
	if err != nil {
		return fmt.Errorf("verifying prediction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("prediction %s not found or already verified", id)
	}
	return nil
}

// RepairPredictionError overwrites the error fields of an already verified
// record. Only the legacy migration uses it.
func (db *DB) RepairPredictionError(ctx context.Context, id string, signed, absolute float64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE prediction_records
		SET error_percent_signed = $1, absolute_error_percent = $2
		WHERE id = $3 AND verified = true
	`, signed, absolute, id)
	if err != nil {
		return fmt.Errorf("repairing prediction %s: %w", id, err)
	}
	return nil
}

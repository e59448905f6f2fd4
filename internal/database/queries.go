package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fundraise/internal/models"
)

const submissionColumns = `id, submission_id, campaign_id, sender_address, status,
		       tx_hash, block_number, error_message, created_at, updated_at`

// ==================== Submission Queries ====================

// CreateSubmission inserts a new submission record and fills in its
// generated id and timestamps
func (db *DB) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	query := `
		INSERT INTO submissions (submission_id, campaign_id, sender_address, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return db.QueryRowContext(
		ctx, query,
		sub.SubmissionID,
		sub.CampaignID,
		sub.SenderAddress,
		sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

// GetSubmissionBySubmissionID retrieves a submission by its submission_id string
func (db *DB) GetSubmissionBySubmissionID(ctx context.Context, submissionID string) (*models.Submission, error) {
	var sub models.Submission
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE submission_id = $1
	`
	err := db.GetContext(ctx, &sub, query, submissionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions retrieves submissions, newest first
func (db *DB) ListSubmissions(ctx context.Context, limit, offset int) ([]models.Submission, error) {
	subs := []models.Submission{}
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	err := db.SelectContext(ctx, &subs, query, limit, offset)
	return subs, err
}

// UpdateSubmissionSent records the transaction hash of a submission
func (db *DB) UpdateSubmissionSent(ctx context.Context, id int64, txHash string) error {
	query := `
		UPDATE submissions
		SET status = $1, tx_hash = $2, updated_at = NOW()
		WHERE id = $3
	`
	return db.execOne(ctx, query, models.SubmissionStatusSent, txHash, id)
}

// UpdateSubmissionConfirmed marks a submission as mined
func (db *DB) UpdateSubmissionConfirmed(ctx context.Context, id int64, txHash string, blockNumber int64) error {
	query := `
		UPDATE submissions
		SET status = $1, tx_hash = $2, block_number = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $4
	`
	return db.execOne(ctx, query, models.SubmissionStatusConfirmed, txHash, blockNumber, id)
}

// UpdateSubmissionFailed marks a submission as failed with a reason
func (db *DB) UpdateSubmissionFailed(ctx context.Context, id int64, errorMsg string) error {
	query := `
		UPDATE submissions
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	return db.execOne(ctx, query, models.SubmissionStatusFailed, errorMsg, id)
}

// execOne runs an update expected to touch exactly one row
func (db *DB) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", n)
	}
	return nil
}

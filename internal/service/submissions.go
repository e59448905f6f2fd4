package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fundraise/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SubmissionStore persists submission records. *database.DB implements it.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmissionBySubmissionID(ctx context.Context, submissionID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]models.Submission, error)
	UpdateSubmissionSent(ctx context.Context, id int64, txHash string) error
	UpdateSubmissionConfirmed(ctx context.Context, id int64, txHash string, blockNumber int64) error
	UpdateSubmissionFailed(ctx context.Context, id int64, errorMsg string) error
}

// SubmissionService handles the submission lifecycle:
// PENDING -> SENT -> CONFIRMED, or FAILED from PENDING or SENT
type SubmissionService struct {
	store  SubmissionStore
	logger *zap.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(store SubmissionStore, logger *zap.Logger) *SubmissionService {
	return &SubmissionService{
		store:  store,
		logger: logger.Named("submissions"),
	}
}

// Begin records a new PENDING submission for campaignID sent by sender
func (s *SubmissionService) Begin(ctx context.Context, campaignID string, sender common.Address) (*models.Submission, error) {
	sub := &models.Submission{
		SubmissionID:  uuid.NewString(),
		CampaignID:    campaignID,
		SenderAddress: sender.Hex(),
		Status:        models.SubmissionStatusPending,
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info("Submission created",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("campaign_id", campaignID),
		zap.String("sender", sub.SenderAddress))

	return sub, nil
}

// MarkSent records the transaction hash of a submission
func (s *SubmissionService) MarkSent(ctx context.Context, sub *models.Submission, txHash common.Hash) error {
	if err := checkTransition(sub, models.SubmissionStatusSent); err != nil {
		return err
	}

	hash := txHash.Hex()
	if err := s.store.UpdateSubmissionSent(ctx, sub.ID, hash); err != nil {
		return fmt.Errorf("failed to record sent transaction: %w", err)
	}
	sub.Status = models.SubmissionStatusSent
	sub.TxHash = &hash

	s.logger.Debug("Submission sent",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("tx_hash", hash))

	return nil
}

// MarkConfirmed records the mined receipt of a submission
func (s *SubmissionService) MarkConfirmed(ctx context.Context, sub *models.Submission, receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("submission %s: missing receipt", sub.SubmissionID)
	}
	if err := checkTransition(sub, models.SubmissionStatusConfirmed); err != nil {
		return err
	}

	hash := receipt.TxHash.Hex()
	var block int64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Int64()
	}

	if err := s.store.UpdateSubmissionConfirmed(ctx, sub.ID, hash, block); err != nil {
		return fmt.Errorf("failed to record confirmation: %w", err)
	}
	sub.Status = models.SubmissionStatusConfirmed
	sub.TxHash = &hash
	sub.BlockNumber = &block
	sub.ErrorMessage = nil

	s.logger.Info("Submission confirmed",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("tx_hash", hash),
		zap.Int64("block_number", block))

	return nil
}

// MarkFailed marks a submission as permanently failed
func (s *SubmissionService) MarkFailed(ctx context.Context, sub *models.Submission, reason string) error {
	if err := checkTransition(sub, models.SubmissionStatusFailed); err != nil {
		return err
	}

	if err := s.store.UpdateSubmissionFailed(ctx, sub.ID, reason); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	sub.Status = models.SubmissionStatusFailed
	sub.ErrorMessage = &reason

	s.logger.Warn("Submission failed",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("reason", reason))

	return nil
}

// GetSubmission retrieves a submission by its submission id, nil when unknown
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error) {
	sub, err := s.store.GetSubmissionBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns a page of submissions, newest first.
// limit is clamped to [1, MaxPageSize]; zero selects DefaultPageSize.
func (s *SubmissionService) ListSubmissions(ctx context.Context, limit, offset int) ([]models.Submission, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	subs, err := s.store.ListSubmissions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

func checkTransition(sub *models.Submission, to models.SubmissionStatus) error {
	if sub == nil {
		return fmt.Errorf("no submission to move to %s", to)
	}
	if sub.Status.IsTerminal() {
		return fmt.Errorf("submission %s is already %s", sub.SubmissionID, sub.Status)
	}
	if to == models.SubmissionStatusSent && sub.Status != models.SubmissionStatusPending {
		return fmt.Errorf("submission %s is %s, not %s", sub.SubmissionID, sub.Status, models.SubmissionStatusPending)
	}
	return nil
}

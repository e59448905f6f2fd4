package api

import (
	"time"

	"fundraise/internal/models"
	"fundraise/internal/page"
	"fundraise/internal/units"
)

// ==================== Page State ====================

// StateResponse represents the current page state
type StateResponse struct {
	IsLoading       bool       `json:"is_loading"`
	Error           string     `json:"error,omitempty"`
	CampaignIDInput string     `json:"campaign_id_input"`
	WalletConnected bool       `json:"wallet_connected"`
	Sender          string     `json:"sender,omitempty"`
	Contract        string     `json:"contract"`
	Contributions   []page.Row `json:"contributions"`
}

// ==================== Contributions ====================

// SubmitContributionRequest represents request to contribute to a campaign
type SubmitContributionRequest struct {
	CampaignID string `json:"campaign_id"`
}

// SubmitContributionResponse represents the state after a confirmed contribution
type SubmitContributionResponse struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

// FetchContributionsResponse represents the result of an event query
type FetchContributionsResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// GetContributionsResponse represents the contributions table
type GetContributionsResponse struct {
	Contributions []page.Row `json:"contributions"`
}

// ==================== Conversions ====================

// GetConversionsResponse represents the unit conversion demonstration
type GetConversionsResponse struct {
	Conversions []units.Conversion `json:"conversions"`
}

// ==================== Submissions ====================

// SubmissionSummary represents one ledger record
type SubmissionSummary struct {
	SubmissionID  string                  `json:"submission_id"`
	CampaignID    string                  `json:"campaign_id"`
	SenderAddress string                  `json:"sender_address"`
	Status        models.SubmissionStatus `json:"status"`
	TxHash        *string                 `json:"tx_hash"`
	BlockNumber   *int64                  `json:"block_number"`
	Error         *string                 `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// GetSubmissionsResponse represents a page of ledger records
type GetSubmissionsResponse struct {
	Submissions []SubmissionSummary `json:"submissions"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

func toSubmissionSummary(sub models.Submission) SubmissionSummary {
	return SubmissionSummary{
		SubmissionID:  sub.SubmissionID,
		CampaignID:    sub.CampaignID,
		SenderAddress: sub.SenderAddress,
		Status:        sub.Status,
		TxHash:        sub.TxHash,
		BlockNumber:   sub.BlockNumber,
		Error:         sub.ErrorMessage,
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

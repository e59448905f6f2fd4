package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ContributionEvent is a decoded ContributionMade log of the Fundraise contract
type ContributionEvent struct {
	Contributor common.Address `json:"contributor"`
	CampaignID  *big.Int       `json:"campaign_id"`
	Amount      *big.Int       `json:"amount"` // token base units (18 decimals)

	BlockNumber uint64      `json:"block_number"`
	TxHash      common.Hash `json:"tx_hash"`
	LogIndex    uint        `json:"log_index"`
}

// LogKey identifies the log an event was decoded from
type LogKey struct {
	TxHash   common.Hash
	LogIndex uint
}

// Key returns the identity of the event's source log
func (e ContributionEvent) Key() LogKey {
	return LogKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// SubmissionStatus represents the state of a contribution submission
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusSent      SubmissionStatus = "SENT"
	SubmissionStatusConfirmed SubmissionStatus = "CONFIRMED"
	SubmissionStatusFailed    SubmissionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is expected
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusConfirmed || s == SubmissionStatusFailed
}

// Submission is the ledger record of one contribute() attempt
type Submission struct {
	ID            int64            `db:"id"`
	SubmissionID  string           `db:"submission_id"`
	CampaignID    string           `db:"campaign_id"`
	SenderAddress string           `db:"sender_address"`
	Status        SubmissionStatus `db:"status"`
	TxHash        *string          `db:"tx_hash"`
	BlockNumber   *int64           `db:"block_number"`
	ErrorMessage  *string          `db:"error_message"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

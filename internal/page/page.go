// Package page holds the contribution page view-model: the state behind the
// form, the error banner and the contributions table, and the three actions
// a user can trigger on it.
package page

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"fundraise/internal/models"
	"fundraise/internal/units"
)

var (
	// ErrNoSigner is returned by SubmitContribution when no wallet is connected
	ErrNoSigner = errors.New("no signer")

	// ErrSubmissionInFlight is returned when a submission is already running
	ErrSubmissionInFlight = errors.New("a contribution is already being submitted")
)

// PendingTx is a submitted transaction that can be awaited
type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*types.Receipt, error)
}

// Transactor is the signer capability: it sends state-changing calls
type Transactor interface {
	From() common.Address
	Contribute(ctx context.Context, campaignID *big.Int) (PendingTx, error)
}

// Wallet exposes the signer of the connected wallet, if any
type Wallet interface {
	Signer() (Transactor, bool)
}

// EventReader is the read-only provider capability
type EventReader interface {
	ContributionsMade(ctx context.Context) ([]models.ContributionEvent, error)
}

// Ledger records submission attempts. Implementations must be safe for
// concurrent use; their failures never affect the page.
type Ledger interface {
	Begin(ctx context.Context, campaignID string, sender common.Address) (*models.Submission, error)
	MarkSent(ctx context.Context, sub *models.Submission, txHash common.Hash) error
	MarkConfirmed(ctx context.Context, sub *models.Submission, receipt *types.Receipt) error
	MarkFailed(ctx context.Context, sub *models.Submission, reason string) error
}

// ViewState is a snapshot of the page state
type ViewState struct {
	IsLoading       bool                       `json:"is_loading"`
	Error           string                     `json:"error,omitempty"`
	CampaignIDInput string                     `json:"campaign_id_input"`
	Events          []models.ContributionEvent `json:"events"`
}

// Row is one line of the contributions table
type Row struct {
	Contributor string `json:"contributor"`
	CampaignID  string `json:"campaign_id"`
	Amount      string `json:"amount"`
}

// Page is the contribution page view-model
type Page struct {
	wallet   Wallet
	provider EventReader
	ledger   Ledger
	logger   *zap.Logger

	mu              sync.Mutex
	isLoading       bool
	errMsg          string
	campaignIDInput string
	events          *contributionLog
}

// New creates a page bound to the injected wallet and provider.
// ledger may be nil.
func New(wallet Wallet, provider EventReader, ledger Ledger, logger *zap.Logger) *Page {
	if ledger == nil {
		ledger = nopLedger{}
	}
	return &Page{
		wallet:   wallet,
		provider: provider,
		ledger:   ledger,
		logger:   logger.Named("page"),
		events:   newContributionLog(),
	}
}

// SetCampaignID updates the campaign id input
func (p *Page) SetCampaignID(campaignID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.campaignIDInput = campaignID
}

// SubmitContribution sends contribute(campaignID) through the wallet signer
// and waits for the transaction to be mined.
//
// Without a signer, or while another submission is in flight, nothing
// changes and ErrNoSigner or ErrSubmissionInFlight is returned. Otherwise
// the page is loading until the attempt ends; a failure stores its reason
// as the page error and is also returned.
func (p *Page) SubmitContribution(ctx context.Context, campaignID string) error {
	var signer Transactor
	if p.wallet != nil {
		if s, ok := p.wallet.Signer(); ok {
			signer = s
		}
	}

	p.mu.Lock()
	if p.isLoading {
		p.mu.Unlock()
		p.logger.Warn("Contribution ignored, submission in flight",
			zap.String("campaign_id", campaignID))
		return ErrSubmissionInFlight
	}
	if signer == nil {
		p.mu.Unlock()
		p.logger.Error("No signer", zap.String("campaign_id", campaignID))
		return ErrNoSigner
	}
	p.campaignIDInput = campaignID
	p.errMsg = ""
	p.isLoading = true
	p.mu.Unlock()

	receipt, err := p.contribute(ctx, signer, campaignID)

	p.mu.Lock()
	p.isLoading = false
	if err != nil {
		p.errMsg = reasonOf(err)
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Contribution failed",
			zap.String("campaign_id", campaignID),
			zap.String("reason", reasonOf(err)),
			zap.Error(err))
		return &ContributionError{CampaignID: campaignID, reason: reasonOf(err), Err: err}
	}

	fields := []zap.Field{
		zap.String("campaign_id", campaignID),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	}
	if receipt.BlockNumber != nil {
		fields = append(fields, zap.Uint64("block_number", receipt.BlockNumber.Uint64()))
	}
	p.logger.Info("Contribution confirmed", fields...)

	return nil
}

func (p *Page) contribute(ctx context.Context, signer Transactor, campaignID string) (*types.Receipt, error) {
	// unparsable ids are not submission attempts and never reach the ledger
	id, err := ParseCampaignID(campaignID)
	if err != nil {
		return nil, err
	}

	sub, err := p.ledger.Begin(ctx, id.String(), signer.From())
	if err != nil {
		p.logger.Warn("Failed to record submission", zap.Error(err))
	}

	receipt, err := p.sendAndWait(ctx, signer, sub, id)
	if sub != nil {
		if err != nil {
			p.ledgerErr(p.ledger.MarkFailed(ctx, sub, reasonOf(err)))
		} else {
			p.ledgerErr(p.ledger.MarkConfirmed(ctx, sub, receipt))
		}
	}
	return receipt, err
}

func (p *Page) sendAndWait(ctx context.Context, signer Transactor, sub *models.Submission, id *big.Int) (*types.Receipt, error) {
	tx, err := signer.Contribute(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub != nil {
		p.ledgerErr(p.ledger.MarkSent(ctx, sub, tx.Hash()))
	}

	p.logger.Info("Contribution sent",
		zap.String("campaign_id", id.String()),
		zap.String("tx_hash", tx.Hash().Hex()))

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("no receipt for transaction %s", tx.Hash().Hex())
	}
	return receipt, nil
}

func (p *Page) ledgerErr(err error) {
	if err != nil {
		p.logger.Warn("Failed to update submission record", zap.Error(err))
	}
}

// FetchContributions queries every ContributionMade event through the
// read-only provider and merges them into the table. It returns the number
// of events that were new to the page. A failed query stores its reason as
// the page error and leaves the table unchanged.
func (p *Page) FetchContributions(ctx context.Context) (int, error) {
	events, err := p.provider.ContributionsMade(ctx)
	if err != nil {
		p.mu.Lock()
		p.errMsg = reasonOf(err)
		p.mu.Unlock()

		p.logger.Error("Failed to fetch contributions", zap.Error(err))
		return 0, fmt.Errorf("fetch contributions: %w", err)
	}

	p.mu.Lock()
	added := p.events.merge(events)
	total := p.events.len()
	p.mu.Unlock()

	p.logger.Info("Fetched contributions",
		zap.Int("queried", len(events)),
		zap.Int("added", added),
		zap.Int("total", total))

	return added, nil
}

// ShowConversions logs the unit conversion demonstration and returns it
func (p *Page) ShowConversions() []units.Conversion {
	conversions := units.Demonstrations()
	for _, c := range conversions {
		p.logger.Info("Conversion",
			zap.String("label", c.Label),
			zap.String("value", c.Value),
			zap.String("result", c.Result))
	}
	return conversions
}

// Snapshot returns a copy of the current state
func (p *Page) Snapshot() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ViewState{
		IsLoading:       p.isLoading,
		Error:           p.errMsg,
		CampaignIDInput: p.campaignIDInput,
		Events:          p.events.list(),
	}
}

// Rows returns the contributions table, one row per event
func (p *Page) Rows() []Row {
	return TableRows(p.Snapshot().Events)
}

// TableRows renders events as table rows: campaign id as a plain integer,
// amount with 18 decimals
func TableRows(events []models.ContributionEvent) []Row {
	rows := make([]Row, 0, len(events))
	for _, e := range events {
		campaignID := "0"
		if e.CampaignID != nil {
			campaignID = e.CampaignID.String()
		}
		rows = append(rows, Row{
			Contributor: e.Contributor.Hex(),
			CampaignID:  campaignID,
			Amount:      units.FormatEther(e.Amount),
		})
	}
	return rows
}

// ParseCampaignID parses a non-negative base-10 campaign id
func ParseCampaignID(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	id, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || trimmed == "" || strings.HasPrefix(trimmed, "+") {
		return nil, fmt.Errorf("invalid campaign id %q", s)
	}
	if id.Sign() < 0 {
		return nil, fmt.Errorf("campaign id %q must not be negative", s)
	}
	if id.BitLen() > 256 {
		return nil, fmt.Errorf("campaign id %q overflows uint256", s)
	}
	return id, nil
}

// ContributionError is returned by SubmitContribution when an attempt fails.
// Reason is the text stored as the page error.
type ContributionError struct {
	CampaignID string
	reason     string
	Err        error
}

func (e *ContributionError) Error() string {
	return fmt.Sprintf("contribution to campaign %q failed: %v", e.CampaignID, e.Err)
}

func (e *ContributionError) Unwrap() error {
	return e.Err
}

// Reason returns the human-readable failure reason
func (e *ContributionError) Reason() string {
	return e.reason
}

// reasonOf returns the display reason of err
func reasonOf(err error) string {
	var r interface{ Reason() string }
	if errors.As(err, &r) && r.Reason() != "" {
		return r.Reason()
	}
	return err.Error()
}

type nopLedger struct{}

func (nopLedger) Begin(context.Context, string, common.Address) (*models.Submission, error) {
	return nil, nil
}

func (nopLedger) MarkSent(context.Context, *models.Submission, common.Hash) error { return nil }

func (nopLedger) MarkConfirmed(context.Context, *models.Submission, *types.Receipt) error {
	return nil
}

func (nopLedger) MarkFailed(context.Context, *models.Submission, string) error { return nil }

// Package wallet exposes the configured Fundraise binding as the signer and
// provider capabilities the contribution page is built on.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fundraise/internal/blockchain/evm"
	"fundraise/internal/models"
	"fundraise/internal/page"
)

// Injected is the wallet connection handed to the page
type Injected struct {
	fundraise  *evm.Fundraise
	startBlock uint64
}

// New wraps a Fundraise binding. Events are read from startBlock onwards.
func New(fundraise *evm.Fundraise, startBlock uint64) *Injected {
	return &Injected{fundraise: fundraise, startBlock: startBlock}
}

// Signer returns the signer when the binding holds a wallet key
func (w *Injected) Signer() (page.Transactor, bool) {
	if !w.fundraise.CanSign() {
		return nil, false
	}
	return signer{fundraise: w.fundraise}, true
}

// ContributionsMade reads every ContributionMade event, any contributor
func (w *Injected) ContributionsMade(ctx context.Context) ([]models.ContributionEvent, error) {
	return w.fundraise.ContributionsMade(ctx, w.startBlock)
}

type signer struct {
	fundraise *evm.Fundraise
}

func (s signer) From() common.Address {
	return s.fundraise.Sender()
}

func (s signer) Contribute(ctx context.Context, campaignID *big.Int) (page.PendingTx, error) {
	tx, err := s.fundraise.Contribute(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// PendingTransaction is a sent transaction awaiting inclusion
type PendingTransaction struct {
	tx     *types.Transaction
	from   common.Address
	client *Client
	logger *zap.Logger
}

// Hash returns the transaction hash
func (p *PendingTransaction) Hash() common.Hash {
	return p.tx.Hash()
}

// Wait blocks until the transaction is mined. A reverted transaction is
// reported as a *TxError carrying the revert reason when the node returns one.
func (p *PendingTransaction) Wait(ctx context.Context) (*types.Receipt, error) {
	receipt, err := p.client.WaitForTransaction(ctx, p.tx.Hash())
	if err != nil {
		if receipt != nil && errors.Is(err, ErrTransactionFailed) {
			return receipt, &TxError{Op: "wait", reason: p.replayRevertReason(ctx, receipt), Err: err}
		}
		return nil, newTxError("wait", err)
	}

	p.logger.Info("Transaction confirmed",
		zap.String("tx_hash", p.tx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.Stringer("block_number", receipt.BlockNumber))

	return receipt, nil
}

// replayRevertReason re-executes the reverted call on the parent block state
// to recover its revert reason
func (p *PendingTransaction) replayRevertReason(ctx context.Context, receipt *types.Receipt) string {
	const fallback = "transaction reverted"

	var block *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		block = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}

	_, err := p.client.CallContract(ctx, ethereum.CallMsg{
		From:     p.from,
		To:       p.tx.To(),
		Gas:      p.tx.Gas(),
		GasPrice: p.tx.GasPrice(),
		Value:    p.tx.Value(),
		Data:     p.tx.Data(),
	}, block)
	if err == nil {
		return fallback
	}

	if reason := RevertReason(err); reason != "" {
		return reason
	}
	return fallback
}

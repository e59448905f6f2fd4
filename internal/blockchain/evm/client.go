package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"fundraise/internal/config"
)

var (
	// ErrNoSigningKey is returned for writes on a client opened without a wallet key
	ErrNoSigningKey = errors.New("no signing key configured")

	// ErrTransactionFailed is returned when a mined transaction has status 0
	ErrTransactionFailed = errors.New("transaction failed")
)

// Backend is the subset of the JSON-RPC client the service relies on.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client wraps Ethereum client functionality for the Fundraise chain
type Client struct {
	backend     Backend
	chainConfig *config.ChainConfig
	privateKey  *ecdsa.PrivateKey // nil when no wallet is connected
	fromAddress common.Address
	logger      *zap.Logger
}

// NewClient dials the chain RPC endpoint. operatorPrivateKey may be empty,
// in which case the client can only read.
func NewClient(chainCfg *config.ChainConfig, operatorPrivateKey string, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.Dial(chainCfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", chainCfg.RPCEndpoint, err)
	}

	client, err := newClient(ethClient, chainCfg, operatorPrivateKey, logger)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithBackend creates a client over an existing backend connection
func NewClientWithBackend(backend Backend, chainCfg *config.ChainConfig, operatorPrivateKey string, logger *zap.Logger) (*Client, error) {
	return newClient(backend, chainCfg, operatorPrivateKey, logger)
}

func newClient(backend Backend, chainCfg *config.ChainConfig, operatorPrivateKey string, logger *zap.Logger) (*Client, error) {
	c := &Client{
		backend:     backend,
		chainConfig: chainCfg,
		logger:      logger,
	}

	if operatorPrivateKey != "" {
		// Parse private key (remove 0x prefix if present)
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(operatorPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		c.privateKey = privateKey
		c.fromAddress = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	logger.Info("EVM client initialized",
		zap.String("chain_id", chainCfg.ChainID),
		zap.String("chain_name", chainCfg.Name),
		zap.Bool("signer", c.HasSigner()),
		zap.String("sender_address", c.fromAddress.Hex()))

	return c, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.backend.Close()
}

// HasSigner reports whether the client holds a signing key
func (c *Client) HasSigner() bool {
	return c.privateKey != nil
}

// SenderAddress returns the wallet address, or the zero address when read-only
func (c *Client) SenderAddress() common.Address {
	return c.fromAddress
}

// GetChainIDFromNetwork returns the chain ID reported by the node
func (c *Client) GetChainIDFromNetwork(ctx context.Context) (*big.Int, error) {
	return c.backend.ChainID(ctx)
}

// FilterLogs runs a historical log query
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return c.backend.FilterLogs(ctx, query)
}

// CallContract executes a read-only call at the given block (nil for latest)
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.backend.CallContract(ctx, msg, blockNumber)
}

// IsContractDeployed checks if a contract exists at the given address
func (c *Client) IsContractDeployed(ctx context.Context, address common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code at address: %w", err)
	}
	return len(code) > 0, nil
}

// WaitForTransaction polls for the receipt of txHash until it is mined.
// Without a configured confirm timeout it waits as long as ctx allows.
// A mined transaction with status 0 returns its receipt and ErrTransactionFailed.
func (c *Client) WaitForTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if timeout := c.chainConfig.ConfirmTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	interval := c.chainConfig.ReceiptPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", ErrTransactionFailed, txHash.Hex())
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			c.logger.Debug("Receipt lookup failed, retrying",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err))
		}
		// Transaction not yet mined, continue waiting

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for transaction %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// SignAndSendTransaction creates, signs, and sends a transaction from the wallet address
func (c *Client) SignAndSendTransaction(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
) (*types.Transaction, error) {
	if !c.HasSigner() {
		return nil, ErrNoSigningKey
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	// Estimate gas; reverts surface here with their revert data
	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.fromAddress,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	// Add 20% buffer
	gasLimit = gasLimit * 120 / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit))

	return signedTx, nil
}

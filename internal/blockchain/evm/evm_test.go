package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fundraise/internal/config"
)

// hardhat account #0
const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testSender     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// fakeBackend implements the calls the client makes; anything else panics
// through the nil embedded interface.
type fakeBackend struct {
	Backend

	mu          sync.Mutex
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
	receipts    []*types.Receipt // returned in order; nil means not yet mined
	receiptErr  error
	callErr     error
	logs        []types.Log
	filterErr   error
	queries     []ethereum.FilterQuery
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return 50_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	if len(b.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	r := b.receipts[0]
	b.receipts = b.receipts[1:]
	if r == nil {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, b.callErr
}

func (b *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, q)
	return b.logs, b.filterErr
}

func (b *fakeBackend) Close() {}

// revertError mimics a JSON-RPC error carrying revert data
type revertError struct {
	msg  string
	data string
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	return hexutil.Encode(append(selector, packed...))
}

func testChainConfig() *config.ChainConfig {
	return &config.ChainConfig{
		ChainID:             "31337",
		Name:                "Hardhat",
		ReceiptPollInterval: time.Millisecond,
	}
}

func newTestFundraise(t *testing.T, backend *fakeBackend, privateKey string) *Fundraise {
	t.Helper()
	client, err := newClient(backend, testChainConfig(), privateKey, zap.NewNop())
	require.NoError(t, err)
	f, err := NewFundraise(client, testContract, zap.NewNop())
	require.NoError(t, err)
	return f
}

func contributionLog(t *testing.T, f *Fundraise, contributor common.Address, campaignID, amount int64, block uint64, index uint) types.Log {
	t.Helper()
	return types.Log{
		Address: testContract,
		Topics: []common.Hash{
			f.abi.Events[contributionMadeEvent].ID,
			common.BytesToHash(contributor.Bytes()),
			common.BigToHash(big.NewInt(campaignID)),
		},
		Data:        common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       index,
	}
}

func TestNewClient_ReadOnly(t *testing.T) {
	client, err := newClient(&fakeBackend{}, testChainConfig(), "", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, client.HasSigner())
	assert.Equal(t, common.Address{}, client.SenderAddress())

	_, err = client.SignAndSendTransaction(context.Background(), testContract, nil, big.NewInt(0))
	assert.ErrorIs(t, err, ErrNoSigningKey)
}

func TestNewClient_InvalidKey(t *testing.T) {
	_, err := newClient(&fakeBackend{}, testChainConfig(), "0xnothex", zap.NewNop())
	assert.Error(t, err)
}

func TestFundraise_Contribute(t *testing.T) {
	backend := &fakeBackend{}
	f := newTestFundraise(t, backend, testPrivateKey)

	require.True(t, f.CanSign())
	assert.Equal(t, common.HexToAddress(testSender), f.Sender())

	pending, err := f.Contribute(context.Background(), big.NewInt(3))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash(), pending.Hash())
	assert.Equal(t, testContract, *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(60_000), tx.Gas(), "gas estimate plus 20%")
	assert.Equal(t, f.abi.Methods["contribute"].ID, tx.Data()[:4])
	assert.Equal(t, common.BigToHash(big.NewInt(3)).Bytes(), tx.Data()[4:])

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testSender), sender)
}

func TestFundraise_Contribute_RevertOnEstimate(t *testing.T) {
	backend := &fakeBackend{
		estimateErr: &revertError{msg: "execution reverted", data: encodeRevert(t, "campaign closed")},
	}
	f := newTestFundraise(t, backend, testPrivateKey)

	_, err := f.Contribute(context.Background(), big.NewInt(1))
	require.Error(t, err)

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "campaign closed", txErr.Reason())
	assert.Empty(t, backend.sent)
}

func TestFundraise_Contribute_InsufficientFunds(t *testing.T) {
	backend := &fakeBackend{
		sendErr: errors.New("insufficient funds for gas * price + value: address 0xf39F have 0 want 60000"),
	}
	f := newTestFundraise(t, backend, testPrivateKey)

	_, err := f.Contribute(context.Background(), big.NewInt(1))
	assert.Equal(t, "insufficient funds", RevertReason(err))
}

func TestPendingTransaction_Wait(t *testing.T) {
	backend := &fakeBackend{
		receipts: []*types.Receipt{nil, nil, {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12), GasUsed: 41_000}},
	}
	f := newTestFundraise(t, backend, testPrivateKey)

	pending, err := f.Contribute(context.Background(), big.NewInt(1))
	require.NoError(t, err)

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), receipt.BlockNumber.Uint64())
}

func TestPendingTransaction_WaitReverted(t *testing.T) {
	backend := &fakeBackend{
		receipts: []*types.Receipt{{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(5)}},
		callErr:  &revertError{msg: "execution reverted", data: encodeRevert(t, "goal reached")},
	}
	f := newTestFundraise(t, backend, testPrivateKey)

	pending, err := f.Contribute(context.Background(), big.NewInt(1))
	require.NoError(t, err)

	receipt, err := pending.Wait(context.Background())
	require.Error(t, err)
	require.NotNil(t, receipt)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Equal(t, "goal reached", RevertReason(err))
}

func TestPendingTransaction_WaitRevertedWithoutReason(t *testing.T) {
	backend := &fakeBackend{
		receipts: []*types.Receipt{{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(5)}},
	}
	f := newTestFundraise(t, backend, testPrivateKey)

	pending, err := f.Contribute(context.Background(), big.NewInt(1))
	require.NoError(t, err)

	_, err = pending.Wait(context.Background())
	assert.Equal(t, "transaction reverted", RevertReason(err))
}

func TestPendingTransaction_WaitStopsWithContext(t *testing.T) {
	backend := &fakeBackend{}
	f := newTestFundraise(t, backend, testPrivateKey)

	pending, err := f.Contribute(context.Background(), big.NewInt(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFundraise_ContributionsMade(t *testing.T) {
	backend := &fakeBackend{}
	f := newTestFundraise(t, backend, "")

	alice := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	removed := contributionLog(t, f, bob, 9, 9, 4, 0)
	removed.Removed = true

	backend.logs = []types.Log{
		contributionLog(t, f, alice, 1, 1_000_000_000_000_000_000, 2, 0),
		removed,
		contributionLog(t, f, bob, 2, 500_000_000_000_000_000, 3, 1),
	}

	events, err := f.ContributionsMade(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, alice, events[0].Contributor)
	assert.Equal(t, "1", events[0].CampaignID.String())
	assert.Equal(t, "1000000000000000000", events[0].Amount.String())
	assert.Equal(t, uint64(2), events[0].BlockNumber)

	assert.Equal(t, bob, events[1].Contributor)
	assert.Equal(t, "2", events[1].CampaignID.String())
	assert.Equal(t, uint(1), events[1].LogIndex)

	require.Len(t, backend.queries, 1)
	q := backend.queries[0]
	assert.Equal(t, []common.Address{testContract}, q.Addresses)
	assert.Equal(t, int64(0), q.FromBlock.Int64())
	assert.Nil(t, q.ToBlock)
	require.NotEmpty(t, q.Topics)
	assert.Equal(t, []common.Hash{f.abi.Events[contributionMadeEvent].ID}, q.Topics[0])
	for _, rule := range q.Topics[1:] {
		assert.Empty(t, rule, "contributor must not be filtered")
	}
}

func TestFundraise_ContributionMadeQuery_ByContributor(t *testing.T) {
	f := newTestFundraise(t, &fakeBackend{}, "")
	alice := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	q, err := f.ContributionMadeQuery(100, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), q.FromBlock.Int64())
	require.Len(t, q.Topics, 2)
	assert.Equal(t, []common.Hash{common.BytesToHash(alice.Bytes())}, q.Topics[1])
}

func TestFundraise_ContributionsMade_QueryError(t *testing.T) {
	backend := &fakeBackend{filterErr: errors.New("connection refused")}
	f := newTestFundraise(t, backend, "")

	_, err := f.ContributionsMade(context.Background(), 0)
	assert.ErrorContains(t, err, "connection refused")
}

func TestDecodeContributionMade_WrongEvent(t *testing.T) {
	f := newTestFundraise(t, &fakeBackend{}, "")
	log := contributionLog(t, f, common.Address{}, 1, 1, 1, 0)
	log.Topics[0] = common.HexToHash("0x01")

	_, err := f.DecodeContributionMade(log)
	assert.Error(t, err)
}

func TestRevertReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "revert data", err: &revertError{msg: "execution reverted", data: encodeRevert(t, "not enough")}, want: "not enough"},
		{name: "revert message only", err: errors.New("execution reverted: campaign ended"), want: "campaign ended"},
		{name: "insufficient funds", err: errors.New("insufficient funds for gas * price + value"), want: "insufficient funds"},
		{name: "nonce too low", err: errors.New("failed to send transaction: nonce too low"), want: "nonce too low"},
		{name: "plain error", err: errors.New("connection refused"), want: "connection refused"},
		{name: "tx error keeps reason", err: &TxError{Op: "wait", reason: "goal reached"}, want: "goal reached"},
		{name: "malformed revert data", err: &revertError{msg: "execution reverted", data: "0xzz"}, want: "execution reverted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RevertReason(tt.err))
		})
	}
}

package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"fundraise/internal/models"
)

// FundraiseABI is the subset of the Fundraise contract ABI the service uses
const FundraiseABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "_campaignId", "type": "uint256"}
		],
		"name": "contribute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "contributor", "type": "address"},
			{"indexed": true, "internalType": "uint256", "name": "campaignId", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "ContributionMade",
		"type": "event"
	}
]`

const contributionMadeEvent = "ContributionMade"

// contributionMade mirrors the ContributionMade event arguments
type contributionMade struct {
	Contributor common.Address
	CampaignId  *big.Int
	Amount      *big.Int
}

// Fundraise provides methods to interact with the deployed Fundraise contract
type Fundraise struct {
	client   *Client
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	logger   *zap.Logger
}

// NewFundraise creates a new Fundraise instance bound to address
func NewFundraise(client *Client, address common.Address, logger *zap.Logger) (*Fundraise, error) {
	parsedABI, err := abi.JSON(strings.NewReader(FundraiseABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fundraise ABI: %w", err)
	}

	return &Fundraise{
		client:   client,
		address:  address,
		abi:      parsedABI,
		contract: bind.NewBoundContract(address, parsedABI, client.backend, client.backend, client.backend),
		logger:   logger.Named("fundraise"),
	}, nil
}

// Address returns the contract address
func (f *Fundraise) Address() common.Address {
	return f.address
}

// CanSign reports whether contribute() can be sent from this binding
func (f *Fundraise) CanSign() bool {
	return f.client.HasSigner()
}

// Sender returns the address transactions are sent from
func (f *Fundraise) Sender() common.Address {
	return f.client.SenderAddress()
}

// Contribute calls contribute(campaignId) and returns the pending transaction
func (f *Fundraise) Contribute(ctx context.Context, campaignID *big.Int) (*PendingTransaction, error) {
	f.logger.Info("Calling contribute on fundraise",
		zap.String("contract", f.address.Hex()),
		zap.String("campaign_id", campaignID.String()))

	data, err := f.abi.Pack("contribute", campaignID)
	if err != nil {
		return nil, newTxError("contribute", fmt.Errorf("failed to pack contribute call: %w", err))
	}

	tx, err := f.client.SignAndSendTransaction(ctx, f.address, data, big.NewInt(0))
	if err != nil {
		return nil, newTxError("contribute", err)
	}

	return &PendingTransaction{
		tx:     tx,
		from:   f.client.SenderAddress(),
		client: f.client,
		logger: f.logger,
	}, nil
}

// ContributionMadeQuery builds the log filter for ContributionMade events.
// An empty contributors list matches every contributor.
func (f *Fundraise) ContributionMadeQuery(fromBlock uint64, contributors ...common.Address) (ethereum.FilterQuery, error) {
	contributorRule := make([]interface{}, 0, len(contributors))
	for _, c := range contributors {
		contributorRule = append(contributorRule, c)
	}

	topics, err := abi.MakeTopics(contributorRule)
	if err != nil {
		return ethereum.FilterQuery{}, fmt.Errorf("failed to build topics: %w", err)
	}

	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{f.address},
		Topics:    append([][]common.Hash{{f.abi.Events[contributionMadeEvent].ID}}, topics...),
	}, nil
}

// ContributionsMade queries every ContributionMade event from fromBlock to
// the latest block, in log order
func (f *Fundraise) ContributionsMade(ctx context.Context, fromBlock uint64, contributors ...common.Address) ([]models.ContributionEvent, error) {
	query, err := f.ContributionMadeQuery(fromBlock, contributors...)
	if err != nil {
		return nil, err
	}

	logs, err := f.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution events: %w", err)
	}

	events := make([]models.ContributionEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		event, err := f.DecodeContributionMade(log)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	f.logger.Debug("Queried contribution events",
		zap.Uint64("from_block", fromBlock),
		zap.Int("count", len(events)))

	return events, nil
}

// DecodeContributionMade decodes a ContributionMade log
func (f *Fundraise) DecodeContributionMade(log types.Log) (models.ContributionEvent, error) {
	var out contributionMade
	if err := f.contract.UnpackLog(&out, contributionMadeEvent, log); err != nil {
		return models.ContributionEvent{}, fmt.Errorf("failed to decode ContributionMade log %s/%d: %w",
			log.TxHash.Hex(), log.Index, err)
	}

	return models.ContributionEvent{
		Contributor: out.Contributor,
		CampaignID:  out.CampaignId,
		Amount:      out.Amount,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}

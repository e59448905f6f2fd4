package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fundraise/internal/models"
)

var testSender = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// memoryStore keeps submissions in a map and records the last list call
type memoryStore struct {
	nextID    int64
	subs      map[string]*models.Submission
	byID      map[int64]*models.Submission
	err       error
	lastLimit int
	lastOff   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{subs: map[string]*models.Submission{}, byID: map[int64]*models.Submission{}}
}

func (m *memoryStore) CreateSubmission(_ context.Context, sub *models.Submission) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	sub.ID = m.nextID
	cp := *sub
	m.subs[sub.SubmissionID] = &cp
	m.byID[sub.ID] = &cp
	return nil
}

func (m *memoryStore) GetSubmissionBySubmissionID(_ context.Context, id string) (*models.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	sub, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (m *memoryStore) ListSubmissions(_ context.Context, limit, offset int) ([]models.Submission, error) {
	m.lastLimit, m.lastOff = limit, offset
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Submission{}
	for _, s := range m.subs {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memoryStore) UpdateSubmissionSent(_ context.Context, id int64, txHash string) error {
	if m.err != nil {
		return m.err
	}
	m.byID[id].Status = models.SubmissionStatusSent
	m.byID[id].TxHash = &txHash
	return nil
}

func (m *memoryStore) UpdateSubmissionConfirmed(_ context.Context, id int64, txHash string, block int64) error {
	if m.err != nil {
		return m.err
	}
	m.byID[id].Status = models.SubmissionStatusConfirmed
	m.byID[id].TxHash = &txHash
	m.byID[id].BlockNumber = &block
	return nil
}

func (m *memoryStore) UpdateSubmissionFailed(_ context.Context, id int64, msg string) error {
	if m.err != nil {
		return m.err
	}
	m.byID[id].Status = models.SubmissionStatusFailed
	m.byID[id].ErrorMessage = &msg
	return nil
}

func TestSubmissionService_ConfirmedLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewSubmissionService(store, zap.NewNop())

	sub, err := svc.Begin(ctx, "42", testSender)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(sub.SubmissionID); err != nil {
		t.Errorf("expected uuid submission id, got %q", sub.SubmissionID)
	}
	if sub.Status != models.SubmissionStatusPending {
		t.Errorf("expected status %s, got %s", models.SubmissionStatusPending, sub.Status)
	}
	if sub.SenderAddress != testSender.Hex() {
		t.Errorf("expected sender %s, got %s", testSender.Hex(), sub.SenderAddress)
	}

	txHash := common.HexToHash("0xabc")
	if err := svc.MarkSent(ctx, sub, txHash); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	receipt := &types.Receipt{TxHash: txHash, BlockNumber: big.NewInt(17), Status: types.ReceiptStatusSuccessful}
	if err := svc.MarkConfirmed(ctx, sub, receipt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := svc.GetSubmission(ctx, sub.SubmissionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != models.SubmissionStatusConfirmed {
		t.Errorf("expected status %s, got %s", models.SubmissionStatusConfirmed, stored.Status)
	}
	if stored.TxHash == nil || *stored.TxHash != txHash.Hex() {
		t.Errorf("expected tx hash %s, got %v", txHash.Hex(), stored.TxHash)
	}
	if stored.BlockNumber == nil || *stored.BlockNumber != 17 {
		t.Errorf("expected block 17, got %v", stored.BlockNumber)
	}
}

func TestSubmissionService_FailedLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewSubmissionService(newMemoryStore(), zap.NewNop())

	sub, err := svc.Begin(ctx, "1", testSender)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.MarkFailed(ctx, sub, "insufficient funds"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Status != models.SubmissionStatusFailed {
		t.Errorf("expected status %s, got %s", models.SubmissionStatusFailed, sub.Status)
	}
	if sub.ErrorMessage == nil || *sub.ErrorMessage != "insufficient funds" {
		t.Errorf("expected error message, got %v", sub.ErrorMessage)
	}

	// terminal states do not move
	if err := svc.MarkSent(ctx, sub, common.HexToHash("0x1")); err == nil {
		t.Error("expected error marking a failed submission as sent")
	}
	if err := svc.MarkFailed(ctx, sub, "again"); err == nil {
		t.Error("expected error failing a submission twice")
	}
}

func TestSubmissionService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	svc := NewSubmissionService(newMemoryStore(), zap.NewNop())

	if err := svc.MarkSent(ctx, nil, common.Hash{}); err == nil {
		t.Error("expected error for nil submission")
	}

	sub, err := svc.Begin(ctx, "1", testSender)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.MarkConfirmed(ctx, sub, nil); err == nil {
		t.Error("expected error for missing receipt")
	}
	if err := svc.MarkSent(ctx, sub, common.HexToHash("0x1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.MarkSent(ctx, sub, common.HexToHash("0x2")); err == nil {
		t.Error("expected error sending twice")
	}
}

func TestSubmissionService_StoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection reset")
	svc := NewSubmissionService(store, zap.NewNop())

	if _, err := svc.Begin(context.Background(), "1", testSender); !errors.Is(err, store.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if _, err := svc.GetSubmission(context.Background(), "x"); !errors.Is(err, store.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestSubmissionService_ListSubmissionsPaging(t *testing.T) {
	tests := []struct {
		name           string
		limit, offset  int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "defaults", limit: 0, offset: 0, expectedLimit: DefaultPageSize, expectedOffset: 0},
		{name: "explicit", limit: 5, offset: 10, expectedLimit: 5, expectedOffset: 10},
		{name: "clamped", limit: 1000, offset: -3, expectedLimit: MaxPageSize, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			svc := NewSubmissionService(store, zap.NewNop())

			if _, err := svc.ListSubmissions(context.Background(), tt.limit, tt.offset); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.lastLimit != tt.expectedLimit {
				t.Errorf("expected limit %d, got %d", tt.expectedLimit, store.lastLimit)
			}
			if store.lastOff != tt.expectedOffset {
				t.Errorf("expected offset %d, got %d", tt.expectedOffset, store.lastOff)
			}
		})
	}
}

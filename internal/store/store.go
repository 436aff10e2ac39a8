package store

import (
	"context"
	"errors"
	"time"

	"tron-custody-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrApprovalExists         = errors.New("live approval already exists for intent")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
)

// ListParams pages through list queries. Limit <= 0 means the backend default.
type ListParams struct {
	Limit  int
	Offset int
}

// DefaultListLimit caps list queries when the caller gives no limit.
const DefaultListLimit = 100

// Normalize applies the default limit and clamps a negative offset.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// WalletStore persists multisig and collection wallets.
type WalletStore interface {
	CreateMultisigWallet(ctx context.Context, wallet *models.MultisigWallet) error
	GetMultisigWallet(ctx context.Context, id string) (*models.MultisigWallet, error)
	ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error)
	// MarkPermissionUpdated is the only mutation a multisig wallet accepts.
	// It fails with ErrConcurrentModification when already set.
	MarkPermissionUpdated(ctx context.Context, id string, at time.Time) error
	DeleteMultisigWallet(ctx context.Context, id string) error

	CreateCollectionWallet(ctx context.Context, wallet *models.CollectionWallet) error
	GetCollectionWallet(ctx context.Context, id string) (*models.CollectionWallet, error)
	ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error)
	DeleteCollectionWallet(ctx context.Context, id string) error
}

// ApprovalStore persists withdrawal approval requests.
type ApprovalStore interface {
	// CreateApproval inserts a new request unless a non-executed request with
	// the same intent key exists, in which case it returns ErrApprovalExists.
	CreateApproval(ctx context.Context, approval *models.ApprovalRequest) error
	// FindLiveApproval returns the non-executed request for an intent key.
	FindLiveApproval(ctx context.Context, intentKey string) (*models.ApprovalRequest, error)
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	// UpdateApproval writes approval if its stored version equals approval.Version
	// and the stored record is not executed. On success approval.Version is
	// incremented; otherwise ErrConcurrentModification is returned.
	UpdateApproval(ctx context.Context, approval *models.ApprovalRequest) error
	ListApprovals(ctx context.Context, params ListParams) ([]models.ApprovalRequest, error)
	DeleteApproval(ctx context.Context, id string) error
	// DistinctTokenContracts returns every token contract any approval used.
	DistinctTokenContracts(ctx context.Context) ([]string, error)
}

// LogStore persists the append-only sweep and transaction logs.
type LogStore interface {
	AppendSweepLog(ctx context.Context, entry *models.SweepLogEntry) error
	GetSweepLog(ctx context.Context, id string) (*models.SweepLogEntry, error)
	ListSweepLogs(ctx context.Context, params ListParams) ([]models.SweepLogEntry, error)

	// RecordTransactionLog returns ErrDuplicateTransaction when the hash is known.
	RecordTransactionLog(ctx context.Context, entry *models.TransactionLogEntry) error
	GetTransactionLog(ctx context.Context, id string) (*models.TransactionLogEntry, error)
	ListTransactionLogs(ctx context.Context, address string, params ListParams) ([]models.TransactionLogEntry, error)
}

// Store is the contract every backend (SQLite, MongoDB) must satisfy.
type Store interface {
	WalletStore
	ApprovalStore
	LogStore

	Ping(ctx context.Context) error
	Close()
}

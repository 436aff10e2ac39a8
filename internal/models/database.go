package models

import (
	"time"
)

// Signer is one of the two key holders of a multisig wallet. Passphrase is the
// shared secret a signer presents to approve a withdrawal.
type Signer struct {
	Address    string `db:"address" bson:"address" json:"address"`
	PublicKey  string `db:"public_key" bson:"publicKey" json:"publicKey"`
	PrivateKey string `db:"private_key" bson:"privateKey" json:"-"`
	Passphrase string `db:"passphrase" bson:"passphrase" json:"-"`
}

// MultisigWallet is a 2-of-2 Tron account. The wallet-level key only signs the
// one-time permission update and, before that update, sweeps.
type MultisigWallet struct {
	Id                  string     `db:"id" bson:"_id" json:"id"`
	Address             string     `db:"address" bson:"address" json:"address"`
	PublicKey           string     `db:"public_key" bson:"publicKey" json:"publicKey"`
	PrivateKey          string     `db:"private_key" bson:"privateKey" json:"-"`
	Mnemonic            string     `db:"mnemonic" bson:"mnemonic" json:"-"`
	Signers             []Signer   `db:"-" bson:"signers" json:"signers"`
	CreatedAt           time.Time  `db:"created_at" bson:"createdAt" json:"createdAt"`
	PermissionUpdatedAt *time.Time `db:"permission_updated_at" bson:"permissionUpdatedAt,omitempty" json:"permissionUpdatedAt,omitempty"`
}

// PermissionUpdated reports whether the multisig permission is active on chain.
func (w *MultisigWallet) PermissionUpdated() bool {
	return w.PermissionUpdatedAt != nil
}

// SignerByAddress returns the signer with the given address, or nil.
func (w *MultisigWallet) SignerByAddress(address string) *Signer {
	for i := range w.Signers {
		if w.Signers[i].Address == address {
			return &w.Signers[i]
		}
	}
	return nil
}

// CollectionWallet is a single-signer sweep destination.
type CollectionWallet struct {
	Id         string    `db:"id" bson:"_id" json:"id"`
	Address    string    `db:"address" bson:"address" json:"address"`
	PublicKey  string    `db:"public_key" bson:"publicKey" json:"publicKey"`
	PrivateKey string    `db:"private_key" bson:"privateKey" json:"-"`
	Mnemonic   string    `db:"mnemonic" bson:"mnemonic" json:"-"`
	CreatedAt  time.Time `db:"created_at" bson:"createdAt" json:"createdAt"`
}

// RawTransaction is a ledger transaction in a tagged, versioned envelope.
// Payload is opaque to everything but the ledger client that produced it.
type RawTransaction struct {
	Format  string `bson:"format" json:"format"`
	Version int    `bson:"version" json:"version"`
	TxId    string `bson:"txId" json:"txId"`
	Payload []byte `bson:"payload" json:"payload"`
}

// ApprovalRequest tracks signature collection for one withdrawal intent.
// At most one non-executed request exists per IntentKey.
type ApprovalRequest struct {
	Id                   string          `db:"id" bson:"_id" json:"id"`
	IntentKey            string          `db:"intent_key" bson:"intentKey" json:"-"`
	WalletId             string          `db:"wallet_id" bson:"walletId" json:"walletId"`
	AssetType            AssetType       `db:"asset_type" bson:"assetType" json:"assetType"`
	DestinationAddress   string          `db:"destination_address" bson:"destinationAddress" json:"destinationAddress"`
	Amount               string          `db:"amount" bson:"amount" json:"amount"`
	TokenContractAddress string          `db:"token_contract_address" bson:"tokenContractAddress,omitempty" json:"tokenContractAddress,omitempty"`
	ApproverSet          []string        `db:"approver_set" bson:"approverSet" json:"approverSet"`
	CollectedSignatures  []string        `db:"collected_signatures" bson:"collectedSignatures" json:"collectedSignatures"`
	RawTransaction       *RawTransaction `db:"raw_transaction" bson:"rawTransaction" json:"-"`
	Executed             bool            `db:"executed" bson:"executed" json:"executed"`
	TxId                 string          `db:"txid" bson:"txid,omitempty" json:"txid,omitempty"`
	Version              int64           `db:"version" bson:"version" json:"version"`
	CreatedAt            time.Time       `db:"created_at" bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time       `db:"updated_at" bson:"updatedAt" json:"updatedAt"`
	ExecutedAt           *time.Time      `db:"executed_at" bson:"executedAt,omitempty" json:"executedAt,omitempty"`
}

// HasApprover reports whether the given signer already approved.
func (a *ApprovalRequest) HasApprover(signer string) bool {
	for _, s := range a.ApproverSet {
		if s == signer {
			return true
		}
	}
	return false
}

// SweepStatus is the outcome of one sweep attempt
type SweepStatus string

const (
	SweepStatusSuccess SweepStatus = "SUCCESS"
	SweepStatusFailed  SweepStatus = "FAILED"
)

// SweepLogEntry is an append-only audit record of a sweep attempt
type SweepLogEntry struct {
	Id        string      `db:"id" bson:"_id" json:"id"`
	From      string      `db:"from_address" bson:"from" json:"from"`
	To        string      `db:"to_address" bson:"to" json:"to"`
	Amount    string      `db:"amount" bson:"amount" json:"amount"`
	TxId      string      `db:"txid" bson:"txid,omitempty" json:"txid,omitempty"`
	Status    SweepStatus `db:"status" bson:"status" json:"status"`
	Error     string      `db:"error" bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time   `db:"created_at" bson:"createdAt" json:"createdAt"`
}

// TransactionLogEntry is an incoming transfer observed on a watched wallet
type TransactionLogEntry struct {
	Id            string    `db:"id" bson:"_id" json:"id"`
	Address       string    `db:"address" bson:"address" json:"address"`
	Type          string    `db:"type" bson:"type" json:"type"`
	Hash          string    `db:"hash" bson:"hash" json:"hash"`
	From          string    `db:"from_address" bson:"from" json:"from"`
	To            string    `db:"to_address" bson:"to" json:"to"`
	Amount        string    `db:"amount" bson:"amount" json:"amount"`
	TokenContract string    `db:"token_contract" bson:"tokenContract,omitempty" json:"tokenContract,omitempty"`
	Timestamp     time.Time `db:"timestamp" bson:"timestamp" json:"timestamp"`
}

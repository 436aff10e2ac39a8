package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"tron-custody-go/internal/models"

	"github.com/ethereum/go-ethereum/crypto"
)

// RawFormat tags RawTransaction payloads produced by this package.
const (
	RawFormat  = "tron/http-json"
	RawVersion = 1
)

var (
	ErrAlreadySigned  = errors.New("key has already signed this transaction")
	ErrSignerMismatch = errors.New("private key does not belong to signer")
)

// Transaction is a Tron transaction as exchanged with the HTTP API.
type Transaction struct {
	Visible    bool            `json:"visible"`
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
}

// validate checks that txID is the hash of raw_data_hex.
func (tx *Transaction) validate() error {
	if tx.TxID == "" || tx.RawDataHex == "" {
		return errors.New("transaction is missing txID or raw_data_hex")
	}
	hash, err := tx.hash()
	if err != nil {
		return err
	}
	if hex.EncodeToString(hash) != tx.TxID {
		return fmt.Errorf("transaction %s: txID does not match raw data", tx.TxID)
	}
	return nil
}

func (tx *Transaction) hash() ([]byte, error) {
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid raw_data_hex: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// Signers recovers the address of every signature on the transaction.
func (tx *Transaction) Signers() ([]string, error) {
	hash, err := tx.hash()
	if err != nil {
		return nil, err
	}
	signers := make([]string, 0, len(tx.Signature))
	for _, sigHex := range tx.Signature {
		sig, err := hex.DecodeString(sigHex)
		if err != nil || len(sig) != crypto.SignatureLength {
			return nil, fmt.Errorf("malformed signature %q", sigHex)
		}
		if sig[64] >= 27 {
			sig[64] -= 27
		}
		pub, err := crypto.SigToPub(hash, sig)
		if err != nil {
			return nil, fmt.Errorf("unable to recover signer: %w", err)
		}
		signers = append(signers, AddressFromPublicKey(pub))
	}
	return signers, nil
}

// Encode wraps a transaction in the tagged envelope the store persists.
func Encode(tx *Transaction) (*models.RawTransaction, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("unable to encode transaction: %w", err)
	}
	return &models.RawTransaction{
		Format:  RawFormat,
		Version: RawVersion,
		TxId:    tx.TxID,
		Payload: payload,
	}, nil
}

// Decode unwraps an envelope produced by Encode.
func Decode(raw *models.RawTransaction) (*Transaction, error) {
	if raw == nil {
		return nil, errors.New("raw transaction is nil")
	}
	if raw.Format != RawFormat || raw.Version != RawVersion {
		return nil, fmt.Errorf("unsupported raw transaction format %s v%d", raw.Format, raw.Version)
	}
	var tx Transaction
	if err := json.Unmarshal(raw.Payload, &tx); err != nil {
		return nil, fmt.Errorf("unable to decode transaction: %w", err)
	}
	if err := tx.validate(); err != nil {
		return nil, err
	}
	if tx.TxID != raw.TxId {
		return nil, fmt.Errorf("envelope txid %s does not match payload %s", raw.TxId, tx.TxID)
	}
	return &tx, nil
}

// SignTransaction appends a signature by privateKeyHex. The key must derive
// signerAddress and must not have signed already. The signature is returned
// hex encoded as r || s || v with v in {27, 28}.
func SignTransaction(tx *Transaction, privateKeyHex, signerAddress string) (string, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	if AddressFromPublicKey(&key.PublicKey) != signerAddress {
		return "", ErrSignerMismatch
	}

	existing, err := tx.Signers()
	if err != nil {
		return "", err
	}
	for _, s := range existing {
		if s == signerAddress {
			return "", ErrAlreadySigned
		}
	}

	hash, err := tx.hash()
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("unable to sign transaction: %w", err)
	}
	sig[64] += 27

	sigHex := hex.EncodeToString(sig)
	tx.Signature = append(tx.Signature, sigHex)
	return sigHex, nil
}

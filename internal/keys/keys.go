/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	bip39 "github.com/tyler-smith/go-bip39"
)

// TronPath is the BIP44 derivation path of the first Tron account.
const TronPath = "m/44'/195'/0'/0/0"

const mnemonicEntropyBits = 128

// Account is a Tron key pair in the hex forms the stores persist.
type Account struct {
	Address    string
	PublicKey  string
	PrivateKey string
}

// NewMnemonic returns a fresh 12-word BIP39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("unable to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("unable to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// AccountFromMnemonic derives the account at TronPath from mnemonic.
func AccountFromMnemonic(mnemonic string) (*Account, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("unable to create master key: %w", err)
	}

	indices, err := parseDerivationPath(TronPath)
	if err != nil {
		return nil, err
	}

	key := master
	for _, idx := range indices {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %s: %w", TronPath, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("unable to extract private key: %w", err)
	}
	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("unable to convert private key: %w", err)
	}
	return accountFromKey(ecdsaKey), nil
}

// NewRandomAccount returns an account for a freshly generated key.
func NewRandomAccount() (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("unable to generate key: %w", err)
	}
	return accountFromKey(key), nil
}

func accountFromKey(key *ecdsa.PrivateKey) *Account {
	return &Account{
		Address:    tron.AddressFromPublicKey(&key.PublicKey),
		PublicKey:  hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}
}

// NewMultisigWallet creates a wallet key from a new mnemonic plus two signer
// keys, each holding its own mnemonic passphrase.
func NewMultisigWallet() (*models.MultisigWallet, error) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, err
	}
	account, err := AccountFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}

	signers := make([]models.Signer, 0, 2)
	for len(signers) < 2 {
		signerAccount, err := NewRandomAccount()
		if err != nil {
			return nil, err
		}
		passphrase, err := NewMnemonic()
		if err != nil {
			return nil, err
		}
		if len(signers) == 1 && signers[0].Passphrase == passphrase {
			continue
		}
		signers = append(signers, models.Signer{
			Address:    signerAccount.Address,
			PublicKey:  signerAccount.PublicKey,
			PrivateKey: signerAccount.PrivateKey,
			Passphrase: passphrase,
		})
	}

	return &models.MultisigWallet{
		Id:         uuid.New().String(),
		Address:    account.Address,
		PublicKey:  account.PublicKey,
		PrivateKey: account.PrivateKey,
		Mnemonic:   mnemonic,
		Signers:    signers,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NewCollectionWallet creates a single-key wallet from a new mnemonic.
func NewCollectionWallet() (*models.CollectionWallet, error) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, err
	}
	account, err := AccountFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return &models.CollectionWallet{
		Id:         uuid.New().String(),
		Address:    account.Address,
		PublicKey:  account.PublicKey,
		PrivateKey: account.PrivateKey,
		Mnemonic:   mnemonic,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func parseDerivationPath(path string) ([]uint32, error) {
	if !strings.HasPrefix(path, "m/") {
		return nil, errors.New("path must start with m/")
	}

	parts := strings.Split(path[2:], "/")
	indices := make([]uint32, 0, len(parts))
	for _, p := range parts {
		hardened := strings.HasSuffix(p, "'")
		p = strings.TrimSuffix(p, "'")

		num, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", p, err)
		}
		idx := uint32(num)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

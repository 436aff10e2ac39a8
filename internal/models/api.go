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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawTRXRequest is the body of POST /api/withdraw/trx
type WithdrawTRXRequest struct {
	WalletId         string `json:"walletId" binding:"required"`
	ToAddress        string `json:"toAddress" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	SignerPassphrase string `json:"signerPassphrase" binding:"required"`
}

// WithdrawTRC20Request is the body of POST /api/withdraw/trc20
type WithdrawTRC20Request struct {
	WalletId             string `json:"walletId" binding:"required"`
	ToAddress            string `json:"toAddress" binding:"required"`
	Amount               string `json:"amount" binding:"required"`
	TokenContractAddress string `json:"tokenContractAddress" binding:"required"`
	SignerPassphrase     string `json:"signerPassphrase" binding:"required"`
}

// UpdatePermissionRequest is the body of POST /api/wallets/update-permission
type UpdatePermissionRequest struct {
	WalletId string `json:"walletId" binding:"required"`
}

// SendTRXRequest sends native coin from a collection wallet
type SendTRXRequest struct {
	WalletId  string `json:"walletId" binding:"required"`
	ToAddress string `json:"toAddress" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// SendTRC20Request sends a token from a collection wallet
type SendTRC20Request struct {
	WalletId             string `json:"walletId" binding:"required"`
	ToAddress            string `json:"toAddress" binding:"required"`
	Amount               string `json:"amount" binding:"required"`
	TokenContractAddress string `json:"tokenContractAddress" binding:"required"`
}

// GeneratedSigner is returned once at wallet creation. It is the only time the
// signer passphrase leaves the service.
type GeneratedSigner struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	Passphrase string `json:"passphrase"`
}

// GeneratedMultisigWallet is the creation response for a multisig wallet
type GeneratedMultisigWallet struct {
	Id        string            `json:"id"`
	Address   string            `json:"address"`
	PublicKey string            `json:"publicKey"`
	Mnemonic  string            `json:"mnemonic"`
	Signers   []GeneratedSigner `json:"signers"`
	CreatedAt time.Time         `json:"createdAt"`
}

// GeneratedCollectionWallet is the creation response for a collection wallet
type GeneratedCollectionWallet struct {
	Id        string    `json:"id"`
	Address   string    `json:"address"`
	PublicKey string    `json:"publicKey"`
	Mnemonic  string    `json:"mnemonic"`
	CreatedAt time.Time `json:"createdAt"`
}

// BalanceResponse reports a balance in display units
type BalanceResponse struct {
	Address       string          `json:"address"`
	Asset         string          `json:"asset"`
	TokenContract string          `json:"tokenContract,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
}

// TransferResult reports a single-signer transfer
type TransferResult struct {
	TxId    string `json:"txid"`
	Message string `json:"msg"`
}

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

import "strings"

// AssetType distinguishes the native coin from contract tokens
type AssetType string

const (
	AssetNative AssetType = "NATIVE"
	AssetToken  AssetType = "TOKEN"
)

// Transaction log types as reported by the watcher
const (
	TransferTypeTRX   = "TRX"
	TransferTypeTRC20 = "TRC20"
)

// Stage is the position of an approval request in the withdrawal state machine
type Stage string

const (
	StageAwaitingSecondSignature Stage = "AWAITING_SECOND_SIGNATURE"
	StageAwaitingBroadcast       Stage = "AWAITING_BROADCAST"
	StageExecuted                Stage = "EXECUTED"
)

// WithdrawalIntent is the idempotency tuple of a withdrawal. Amount must be in
// canonical decimal form so equal amounts produce equal keys.
type WithdrawalIntent struct {
	WalletId             string
	AssetType            AssetType
	DestinationAddress   string
	Amount               string
	TokenContractAddress string
}

// Key returns the string form of the tuple used for live-approval lookups.
func (i WithdrawalIntent) Key() string {
	return strings.Join([]string{
		i.WalletId,
		string(i.AssetType),
		i.DestinationAddress,
		i.Amount,
		i.TokenContractAddress,
	}, "|")
}

// WithdrawalRequest is one signer's approval of a withdrawal intent
type WithdrawalRequest struct {
	WithdrawalIntent
	SignerPassphrase string
}

// WithdrawalResult reports where the approval request stands after a call
type WithdrawalResult struct {
	ApprovalId string `json:"approvalId"`
	Stage      Stage  `json:"stage"`
	TxId       string `json:"txid,omitempty"`
	Message    string `json:"msg"`
}

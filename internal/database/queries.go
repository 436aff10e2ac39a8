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

package database

const schema = `
	CREATE TABLE IF NOT EXISTS multisig_wallets (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		public_key TEXT NOT NULL,
		private_key TEXT NOT NULL,
		mnemonic TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		permission_updated_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS wallet_signers (
		wallet_id TEXT NOT NULL REFERENCES multisig_wallets(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		address TEXT NOT NULL,
		public_key TEXT NOT NULL,
		private_key TEXT NOT NULL,
		passphrase TEXT NOT NULL,
		PRIMARY KEY (wallet_id, position)
	);

	CREATE TABLE IF NOT EXISTS collection_wallets (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		public_key TEXT NOT NULL,
		private_key TEXT NOT NULL,
		mnemonic TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		intent_key TEXT NOT NULL,
		wallet_id TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		token_contract_address TEXT NOT NULL DEFAULT '',
		approver_set TEXT NOT NULL,
		collected_signatures TEXT NOT NULL,
		raw_format TEXT NOT NULL DEFAULT '',
		raw_version INTEGER NOT NULL DEFAULT 0,
		raw_txid TEXT NOT NULL DEFAULT '',
		raw_payload BLOB,
		executed INTEGER NOT NULL DEFAULT 0,
		txid TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		executed_at TIMESTAMP
	);

	-- At most one live approval per withdrawal intent
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_live_intent ON approvals(intent_key) WHERE executed = 0;
	CREATE INDEX IF NOT EXISTS idx_approvals_wallet ON approvals(wallet_id);
	CREATE INDEX IF NOT EXISTS idx_approvals_created_at ON approvals(created_at);

	CREATE TABLE IF NOT EXISTS sweep_logs (
		id TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		txid TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_logs_created_at ON sweep_logs(created_at);

	CREATE TABLE IF NOT EXISTS transaction_logs (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		type TEXT NOT NULL,
		hash TEXT NOT NULL UNIQUE,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		token_contract TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_logs_address ON transaction_logs(address, timestamp);
`

const (
	// Multisig wallet queries
	queryInsertMultisigWallet = `
		INSERT INTO multisig_wallets (id, address, public_key, private_key, mnemonic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryInsertSigner = `
		INSERT INTO wallet_signers (wallet_id, position, address, public_key, private_key, passphrase)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetMultisigWallet = `
		SELECT id, address, public_key, private_key, mnemonic, created_at, permission_updated_at
		FROM multisig_wallets
		WHERE id = ?`

	queryListMultisigWallets = `
		SELECT id, address, public_key, private_key, mnemonic, created_at, permission_updated_at
		FROM multisig_wallets
		ORDER BY created_at`

	queryGetSigners = `
		SELECT wallet_id, address, public_key, private_key, passphrase
		FROM wallet_signers
		WHERE wallet_id = ?
		ORDER BY position`

	queryListSigners = `
		SELECT wallet_id, address, public_key, private_key, passphrase
		FROM wallet_signers
		ORDER BY wallet_id, position`

	queryMarkPermissionUpdated = `
		UPDATE multisig_wallets
		SET permission_updated_at = ?
		WHERE id = ? AND permission_updated_at IS NULL`

	queryMultisigWalletExists = `
		SELECT COUNT(1) FROM multisig_wallets WHERE id = ?`

	queryDeleteSigners = `
		DELETE FROM wallet_signers WHERE wallet_id = ?`

	queryDeleteMultisigWallet = `
		DELETE FROM multisig_wallets WHERE id = ?`

	// Collection wallet queries
	queryInsertCollectionWallet = `
		INSERT INTO collection_wallets (id, address, public_key, private_key, mnemonic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetCollectionWallet = `
		SELECT id, address, public_key, private_key, mnemonic, created_at
		FROM collection_wallets
		WHERE id = ?`

	queryListCollectionWallets = `
		SELECT id, address, public_key, private_key, mnemonic, created_at
		FROM collection_wallets
		ORDER BY created_at`

	queryDeleteCollectionWallet = `
		DELETE FROM collection_wallets WHERE id = ?`

	// Approval queries
	approvalColumns = `
		id, intent_key, wallet_id, asset_type, destination_address, amount, token_contract_address,
		approver_set, collected_signatures, raw_format, raw_version, raw_txid, raw_payload,
		executed, txid, version, created_at, updated_at, executed_at`

	queryInsertApproval = `
		INSERT INTO approvals (` + approvalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryFindLiveApproval = `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE intent_key = ? AND executed = 0`

	queryGetApproval = `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE id = ?`

	queryListApprovals = `
		SELECT ` + approvalColumns + `
		FROM approvals
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryUpdateApproval = `
		UPDATE approvals
		SET approver_set = ?, collected_signatures = ?,
		    raw_format = ?, raw_version = ?, raw_txid = ?, raw_payload = ?,
		    executed = ?, txid = ?, version = version + 1, updated_at = ?, executed_at = ?
		WHERE id = ? AND version = ? AND executed = 0`

	queryDeleteApproval = `
		DELETE FROM approvals WHERE id = ?`

	queryDistinctTokenContracts = `
		SELECT DISTINCT token_contract_address
		FROM approvals
		WHERE token_contract_address != ''
		ORDER BY token_contract_address`

	// Log queries
	queryInsertSweepLog = `
		INSERT INTO sweep_logs (id, from_address, to_address, amount, txid, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSweepLog = `
		SELECT id, from_address, to_address, amount, txid, status, error, created_at
		FROM sweep_logs
		WHERE id = ?`

	queryListSweepLogs = `
		SELECT id, from_address, to_address, amount, txid, status, error, created_at
		FROM sweep_logs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryInsertTransactionLog = `
		INSERT INTO transaction_logs (id, address, type, hash, from_address, to_address, amount, token_contract, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionLog = `
		SELECT id, address, type, hash, from_address, to_address, amount, token_contract, timestamp
		FROM transaction_logs
		WHERE id = ?`

	queryListTransactionLogs = `
		SELECT id, address, type, hash, from_address, to_address, amount, token_contract, timestamp
		FROM transaction_logs
		WHERE (? = '' OR address = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`
)

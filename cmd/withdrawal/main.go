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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/common"
	"tron-custody-go/internal/config"
	"tron-custody-go/internal/models"

	"go.uber.org/zap"
)

const passphraseEnv = "SIGNER_PASSPHRASE"

func parseAndValidateFlags() (*models.WithdrawalRequest, error) {
	walletFlag := flag.String("wallet", "", "Multisig wallet id (required)")
	toFlag := flag.String("to", "", "Destination address (required)")
	amountFlag := flag.String("amount", "", "Amount to withdraw in display units (required)")
	tokenFlag := flag.String("token", "", "TRC20 contract address (omit for TRX)")
	flag.Parse()

	// Read from the environment so the secret stays out of shell history.
	passphrase := os.Getenv(passphraseEnv)

	if *walletFlag == "" || *toFlag == "" || *amountFlag == "" || passphrase == "" {
		return nil, fmt.Errorf("--wallet, --to, --amount and %s are required", passphraseEnv)
	}

	assetType := models.AssetNative
	if *tokenFlag != "" {
		assetType = models.AssetToken
	}

	return &models.WithdrawalRequest{
		WithdrawalIntent: models.WithdrawalIntent{
			WalletId:             *walletFlag,
			AssetType:            assetType,
			DestinationAddress:   *toFlag,
			Amount:               *amountFlag,
			TokenContractAddress: *tokenFlag,
		},
		SignerPassphrase: passphrase,
	}, nil
}

func printRequest(req *models.WithdrawalRequest) {
	common.PrintHeader("WITHDRAWAL APPROVAL", common.DefaultWidth)
	fmt.Printf("Wallet:      %s\n", req.WalletId)
	fmt.Printf("Asset:       %s\n", req.AssetType)
	if req.TokenContractAddress != "" {
		fmt.Printf("Token:       %s\n", req.TokenContractAddress)
	}
	fmt.Printf("Amount:      %s\n", req.Amount)
	fmt.Printf("Destination: %s\n", req.DestinationAddress)
}

func printResult(result *models.WithdrawalResult) {
	fmt.Printf("Approval:    %s\n", result.ApprovalId)
	fmt.Printf("Stage:       %s\n", result.Stage)
	if result.TxId != "" {
		fmt.Printf("TxId:        %s\n", result.TxId)
	}
	common.PrintFooter(result.Message, common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	printRequest(req)

	result, err := services.Withdrawals.RequestWithdrawal(ctx, *req)
	if err != nil {
		common.PrintFooter(fmt.Sprintf("FAILED (%s): %s", apperrors.CodeOf(err), apperrors.Message(err)), common.DefaultWidth)
		zap.L().Fatal("Withdrawal approval failed", zap.Error(err))
	}

	printResult(result)
}

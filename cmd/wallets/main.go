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

	"tron-custody-go/internal/common"
	"tron-custody-go/internal/config"
	"tron-custody-go/internal/models"

	"go.uber.org/zap"
)

type reportStats struct {
	multisig    int
	updated     int
	collections int
}

func printMultisig(ctx context.Context, services *common.Services, wallet models.MultisigWallet, withBalance bool) {
	permission := "owner key only"
	if wallet.PermissionUpdated() {
		permission = "2-of-2 since " + wallet.PermissionUpdatedAt.Format("2006-01-02 15:04:05")
	}

	common.PrintSection(fmt.Sprintf("Multisig: %s", wallet.Address), common.WideWidth-2)
	fmt.Printf("%s ID:         %s\n", common.BoxPrefix(false), wallet.Id)
	fmt.Printf("%s Permission: %s\n", common.BoxPrefix(false), permission)
	if withBalance {
		printBalance(ctx, services, wallet.Address, false)
	}
	for i, signer := range wallet.Signers {
		fmt.Printf("%s Signer %d:   %s\n", common.BoxPrefix(i == len(wallet.Signers)-1), i+1, signer.Address)
	}
}

func printCollection(ctx context.Context, services *common.Services, wallet models.CollectionWallet, withBalance bool) {
	common.PrintSection(fmt.Sprintf("Collection: %s", wallet.Address), common.WideWidth-2)
	fmt.Printf("%s ID:         %s\n", common.BoxPrefix(!withBalance), wallet.Id)
	if withBalance {
		printBalance(ctx, services, wallet.Address, true)
	}
}

func printBalance(ctx context.Context, services *common.Services, address string, isLast bool) {
	balance, err := services.Wallets.TRXBalance(ctx, address)
	if err != nil {
		zap.L().Warn("Failed to query balance", zap.String("address", address), zap.Error(err))
		fmt.Printf("%s Balance:    unavailable\n", common.BoxPrefix(isLast))
		return
	}
	fmt.Printf("%s Balance:    %s TRX\n", common.BoxPrefix(isLast), balance.Balance.String())
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	balancesFlag := flag.Bool("balances", false, "Query the TRX balance of every wallet")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	multisig, err := services.Wallets.ListMultisigWallets(ctx)
	if err != nil {
		logger.Fatal("Failed to list multisig wallets", zap.Error(err))
	}
	collections, err := services.Wallets.ListCollectionWallets(ctx)
	if err != nil {
		logger.Fatal("Failed to list collection wallets", zap.Error(err))
	}

	common.PrintHeader("CUSTODY WALLETS REPORT", common.WideWidth)

	stats := reportStats{}
	for _, wallet := range multisig {
		stats.multisig++
		if wallet.PermissionUpdated() {
			stats.updated++
		}
		printMultisig(ctx, services, wallet, *balancesFlag)
	}
	for _, wallet := range collections {
		stats.collections++
		printCollection(ctx, services, wallet, *balancesFlag)
	}

	summary := fmt.Sprintf("SUMMARY: %d multisig wallets (%d with multisig permission), %d collection wallets",
		stats.multisig, stats.updated, stats.collections)
	common.PrintFooter(summary, common.WideWidth)
}

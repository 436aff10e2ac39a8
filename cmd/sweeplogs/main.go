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
	"tron-custody-go/internal/store"

	"go.uber.org/zap"
)

type logStats struct {
	total   int
	success int
	failed  int
}

func printSweep(entry models.SweepLogEntry, isLast bool) {
	prefix := common.BoxPrefix(isLast)
	fmt.Printf("%s %-7s %14s TRX  %s -> %s  tx: %s  at: %s\n",
		prefix,
		entry.Status,
		entry.Amount,
		entry.From,
		entry.To,
		common.ShortId(entry.TxId),
		entry.CreatedAt.Format("2006-01-02 15:04:05"))
	if entry.Error != "" {
		fmt.Printf("%s         error: %s\n", common.BoxPrefix(true), entry.Error)
	}
}

func printTransaction(entry models.TransactionLogEntry, isLast bool) {
	prefix := common.BoxPrefix(isLast)
	asset := entry.Type
	if entry.TokenContract != "" {
		asset = entry.Type + ":" + common.ShortId(entry.TokenContract)
	}
	fmt.Printf("%s %-22s %14s  from %s  hash: %s  at: %s\n",
		prefix,
		asset,
		entry.Amount,
		entry.From,
		common.ShortId(entry.Hash),
		entry.Timestamp.Format("2006-01-02 15:04:05"))
}

func printSweeps(ctx context.Context, st store.LogStore, params store.ListParams) (logStats, error) {
	var stats logStats

	entries, err := st.ListSweepLogs(ctx, params)
	if err != nil {
		return stats, fmt.Errorf("failed to list sweep logs: %w", err)
	}

	common.PrintSection(fmt.Sprintf("Sweep attempts (%d)", len(entries)), common.WideWidth-2)
	for i, entry := range entries {
		printSweep(entry, i == len(entries)-1)
		stats.total++
		if entry.Status == models.SweepStatusSuccess {
			stats.success++
		} else {
			stats.failed++
		}
	}
	return stats, nil
}

func printTransactions(ctx context.Context, st store.LogStore, address string, params store.ListParams) error {
	entries, err := st.ListTransactionLogs(ctx, address, params)
	if err != nil {
		return fmt.Errorf("failed to list transaction logs: %w", err)
	}

	title := fmt.Sprintf("Incoming transfers (%d)", len(entries))
	if address != "" {
		title += " for " + address
	}
	common.PrintSection(title, common.WideWidth-2)
	for i, entry := range entries {
		printTransaction(entry, i == len(entries)-1)
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	limit := flag.Int("limit", store.DefaultListLimit, "Maximum number of entries to print")
	offset := flag.Int("offset", 0, "Number of entries to skip")
	transactions := flag.Bool("transactions", false, "Also print incoming transfers recorded by the watcher")
	address := flag.String("address", "", "Limit incoming transfers to one address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	params := store.ListParams{Limit: *limit, Offset: *offset}

	common.PrintHeader("SWEEP AUDIT LOG", common.WideWidth)

	stats, err := printSweeps(ctx, st, params)
	if err != nil {
		logger.Fatal("Failed to print sweep logs", zap.Error(err))
	}

	if *transactions {
		if err := printTransactions(ctx, st, *address, params); err != nil {
			logger.Fatal("Failed to print transaction logs", zap.Error(err))
		}
	}

	common.PrintFooter(fmt.Sprintf("Summary: %d attempts, %d succeeded, %d failed",
		stats.total, stats.success, stats.failed), common.WideWidth)
}

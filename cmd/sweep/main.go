package main

import (
	"context"
	"flag"
	"fmt"

	"tron-custody-go/internal/common"
	"tron-custody-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	dryRun := flag.Bool("dry-run", false, "Print the sweep configuration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	if *dryRun {
		fmt.Printf("Reserve threshold: %s TRX\n", cfg.Sweep.ReserveThreshold)
		fmt.Printf("Fee reserve:       %s TRX\n", cfg.Sweep.FeeReserve)
		fmt.Printf("Interval:          %s\n", cfg.Sweep.Interval)
		return
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	scheduler, err := services.NewScheduler(cfg.Sweep)
	if err != nil {
		zap.L().Fatal("Failed to create sweep scheduler", zap.Error(err))
	}

	summary := scheduler.RunCycle(ctx)

	common.PrintHeader("SWEEP CYCLE", common.DefaultWidth)
	fmt.Printf("Destination: %s\n", summary.Destination)
	fmt.Printf("Wallets:     %d\n", summary.Wallets)
	fmt.Printf("Swept:       %d\n", summary.Swept)
	fmt.Printf("Skipped:     %d\n", summary.Skipped)
	fmt.Printf("Failed:      %d\n", summary.Failed)
	common.PrintFooter("Run sweeplogs to see the recorded attempts", common.DefaultWidth)
}

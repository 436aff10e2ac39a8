package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"tron-custody-go/internal/common"
	"tron-custody-go/internal/config"
	"tron-custody-go/internal/models"

	"go.uber.org/zap"
)

// printSecret writes generated key material to stdout once. It is never logged.
func printSecret(title string, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		zap.L().Error("Error marshaling wallet to JSON", zap.Error(err))
		return
	}
	common.PrintHeader(title, common.DefaultWidth)
	fmt.Println(string(out))
	common.PrintFooter("Store the mnemonic and signer passphrases offline; they are not shown again", common.DefaultWidth)
}

func runInit(ctx context.Context, cfg *models.Config) {
	zap.L().Info("Initializing store")

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		zap.L().Fatal("Store is not reachable", zap.Error(err))
	}

	if cfg.Database.IsMongo() {
		zap.L().Info("MongoDB collections and indexes ready", zap.String("database", cfg.Database.MongoDatabase))
	} else {
		zap.L().Info("SQLite schema ready", zap.String("file", cfg.Database.URL))
	}
}

func generateWallets(ctx context.Context, cfg *models.Config, collection, multisig bool) {
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if collection {
		wallet, err := services.Wallets.GenerateCollectionWallet(ctx)
		if err != nil {
			zap.L().Fatal("Failed to generate collection wallet", zap.Error(err))
		}
		zap.L().Info("Collection wallet created", zap.String("id", wallet.Id), zap.String("address", wallet.Address))
		printSecret("COLLECTION WALLET", wallet)
	}

	if multisig {
		wallet, err := services.Wallets.GenerateMultisigWallet(ctx)
		if err != nil {
			zap.L().Fatal("Failed to generate multisig wallet", zap.Error(err))
		}
		zap.L().Info("Multisig wallet created", zap.String("id", wallet.Id), zap.String("address", wallet.Address))
		printSecret("MULTISIG WALLET", wallet)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	collectionFlag := flag.Bool("collection", false, "Generate a collection wallet after initialization")
	multisigFlag := flag.Bool("multisig", false, "Generate a multisig wallet after initialization")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	runInit(ctx, cfg)

	if *collectionFlag || *multisigFlag {
		generateWallets(ctx, cfg, *collectionFlag, *multisigFlag)
	}

	zap.L().Info("Initialization complete")
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/vault"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

const (
	collMultisigWallets   = "multisig_wallets"
	collCollectionWallets = "collection_wallets"
	collApprovals         = "approvals"
	collSweepLogs         = "sweep_logs"
	collTransactionLogs   = "transaction_logs"
)

// Service implements store.Store on MongoDB.
type Service struct {
	client *mongo.Client
	db     *mongo.Database
	vault  *vault.Vault

	multisig    *mongo.Collection
	collection  *mongo.Collection
	approvals   *mongo.Collection
	sweepLogs   *mongo.Collection
	txLogs      *mongo.Collection
	pingTimeout time.Duration
}

// NewService connects, pings and ensures the indexes the store relies on.
func NewService(ctx context.Context, cfg models.DatabaseConfig, v *vault.Vault) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb url cannot be empty")
	}
	if cfg.MongoDatabase == "" {
		return nil, fmt.Errorf("mongodb database name cannot be empty")
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Connecting to MongoDB", zap.String("database", cfg.MongoDatabase))

	clientOpts := options.Client().ApplyURI(cfg.URL)
	if cfg.MaxOpenConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(cfg.MaxOpenConns))
	}
	if cfg.ConnMaxIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(cfg.ConnMaxIdleTime)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	s := &Service{
		client:      client,
		db:          db,
		vault:       v,
		multisig:    db.Collection(collMultisigWallets),
		collection:  db.Collection(collCollectionWallets),
		approvals:   db.Collection(collApprovals),
		sweepLogs:   db.Collection(collSweepLogs),
		txLogs:      db.Collection(collTransactionLogs),
		pingTimeout: cfg.PingTimeout,
	}

	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ensure indexes: %w", err)
	}

	zap.L().Info("MongoDB store initialized successfully")
	return s, nil
}

// EnsureIndexes creates every index the store depends on. Safe to run repeatedly.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	for coll, indexes := range indexModels() {
		col := s.db.Collection(coll)
		for _, idx := range indexes {
			if err := createIndexSafe(ctx, col, idx); err != nil {
				return fmt.Errorf("%s index error: %w", coll, err)
			}
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		collMultisigWallets: {
			{Keys: bson.M{"address": 1}, Options: options.Index().SetUnique(true)},
		},
		collCollectionWallets: {
			{Keys: bson.M{"address": 1}, Options: options.Index().SetUnique(true)},
		},
		collApprovals: {
			// At most one live approval per withdrawal intent.
			{
				Keys: bson.M{"intentKey": 1},
				Options: options.Index().
					SetName("live_intent_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"executed": false}),
			},
			{Keys: bson.M{"walletId": 1}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		collSweepLogs: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		collTransactionLogs: {
			{Keys: bson.M{"hash": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "address", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}

func createIndexSafe(ctx context.Context, col *mongo.Collection, index mongo.IndexModel) error {
	_, err := col.Indexes().CreateOne(ctx, index)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.client.Ping(pingCtx, nil)
}

func (s *Service) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		zap.L().Warn("Failed to disconnect from mongodb", zap.Error(err))
	}
}

func findOptions(params store.ListParams, sortField string) *options.FindOptions {
	params = params.Normalize()
	return options.Find().
		SetSort(bson.D{{Key: sortField, Value: -1}}).
		SetLimit(int64(params.Limit)).
		SetSkip(int64(params.Offset))
}

func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("unable to query %s: %w", what, err)
}

func expectDeleted(res *mongo.DeleteResult, err error, what, id string) error {
	if err != nil {
		return fmt.Errorf("unable to delete %s: %w", what, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return nil
}

package mongostore

import (
	"context"
	"fmt"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func (s *Service) CreateMultisigWallet(ctx context.Context, wallet *models.MultisigWallet) error {
	zap.L().Info("Creating multisig wallet", zap.String("id", wallet.Id), zap.String("address", wallet.Address))

	sealed, err := s.vault.SealMultisig(wallet)
	if err != nil {
		return fmt.Errorf("unable to seal wallet secrets: %w", err)
	}
	if _, err := s.multisig.InsertOne(ctx, sealed); err != nil {
		return fmt.Errorf("unable to insert multisig wallet: %w", err)
	}
	return nil
}

func (s *Service) GetMultisigWallet(ctx context.Context, id string) (*models.MultisigWallet, error) {
	var w models.MultisigWallet
	if err := s.multisig.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, notFound(err, "multisig wallet", id)
	}
	if err := s.vault.OpenMultisig(&w); err != nil {
		return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
	}
	return &w, nil
}

func (s *Service) ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error) {
	cursor, err := s.multisig.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("unable to query multisig wallets: %w", err)
	}
	var wallets []models.MultisigWallet
	if err := cursor.All(ctx, &wallets); err != nil {
		return nil, fmt.Errorf("unable to decode multisig wallets: %w", err)
	}
	for i := range wallets {
		if err := s.vault.OpenMultisig(&wallets[i]); err != nil {
			return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
		}
	}
	return wallets, nil
}

func (s *Service) MarkPermissionUpdated(ctx context.Context, id string, at time.Time) error {
	res, err := s.multisig.UpdateOne(ctx,
		bson.M{"_id": id, "permissionUpdatedAt": nil},
		bson.M{"$set": bson.M{"permissionUpdatedAt": at}})
	if err != nil {
		return fmt.Errorf("unable to mark permission updated: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := s.multisig.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("unable to check wallet existence: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("multisig wallet %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("permission already updated - %w", store.ErrConcurrentModification)
	}
	return nil
}

func (s *Service) DeleteMultisigWallet(ctx context.Context, id string) error {
	res, err := s.multisig.DeleteOne(ctx, bson.M{"_id": id})
	return expectDeleted(res, err, "multisig wallet", id)
}

func (s *Service) CreateCollectionWallet(ctx context.Context, wallet *models.CollectionWallet) error {
	zap.L().Info("Creating collection wallet", zap.String("id", wallet.Id), zap.String("address", wallet.Address))

	sealed, err := s.vault.SealCollection(wallet)
	if err != nil {
		return fmt.Errorf("unable to seal wallet secrets: %w", err)
	}
	if _, err := s.collection.InsertOne(ctx, sealed); err != nil {
		return fmt.Errorf("unable to insert collection wallet: %w", err)
	}
	return nil
}

func (s *Service) GetCollectionWallet(ctx context.Context, id string) (*models.CollectionWallet, error) {
	var w models.CollectionWallet
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, notFound(err, "collection wallet", id)
	}
	if err := s.vault.OpenCollection(&w); err != nil {
		return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
	}
	return &w, nil
}

func (s *Service) ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("unable to query collection wallets: %w", err)
	}
	var wallets []models.CollectionWallet
	if err := cursor.All(ctx, &wallets); err != nil {
		return nil, fmt.Errorf("unable to decode collection wallets: %w", err)
	}
	for i := range wallets {
		if err := s.vault.OpenCollection(&wallets[i]); err != nil {
			return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
		}
	}
	return wallets, nil
}

func (s *Service) DeleteCollectionWallet(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return expectDeleted(res, err, "collection wallet", id)
}

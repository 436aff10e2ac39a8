package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func liveApprovalFilter(intentKey string) bson.M {
	return bson.M{"intentKey": intentKey, "executed": false}
}

func casFilter(id string, version int64) bson.M {
	return bson.M{"_id": id, "version": version, "executed": false}
}

func approvalUpdate(a *models.ApprovalRequest, now time.Time) bson.M {
	set := bson.M{
		"approverSet":         a.ApproverSet,
		"collectedSignatures": a.CollectedSignatures,
		"rawTransaction":      a.RawTransaction,
		"executed":            a.Executed,
		"txid":                a.TxId,
		"updatedAt":           now,
	}
	if a.ExecutedAt != nil {
		set["executedAt"] = *a.ExecutedAt
	}
	return bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
}

func (s *Service) CreateApproval(ctx context.Context, approval *models.ApprovalRequest) error {
	if _, err := s.approvals.InsertOne(ctx, approval); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			zap.L().Info("Live approval already exists for intent",
				zap.String("wallet_id", approval.WalletId),
				zap.String("intent_key", approval.IntentKey))
			return store.ErrApprovalExists
		}
		return fmt.Errorf("unable to insert approval: %w", err)
	}
	return nil
}

func (s *Service) FindLiveApproval(ctx context.Context, intentKey string) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	if err := s.approvals.FindOne(ctx, liveApprovalFilter(intentKey)).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("unable to query live approval: %w", err)
	}
	return &a, nil
}

func (s *Service) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	if err := s.approvals.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, notFound(err, "approval", id)
	}
	return &a, nil
}

func (s *Service) UpdateApproval(ctx context.Context, approval *models.ApprovalRequest) error {
	now := time.Now().UTC()
	res, err := s.approvals.UpdateOne(ctx, casFilter(approval.Id, approval.Version), approvalUpdate(approval, now))
	if err != nil {
		return fmt.Errorf("unable to update approval: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("approval update failed - %w", store.ErrConcurrentModification)
	}
	approval.Version++
	approval.UpdatedAt = now
	return nil
}

func (s *Service) ListApprovals(ctx context.Context, params store.ListParams) ([]models.ApprovalRequest, error) {
	cursor, err := s.approvals.Find(ctx, bson.M{}, findOptions(params, "createdAt"))
	if err != nil {
		return nil, fmt.Errorf("unable to query approvals: %w", err)
	}
	var approvals []models.ApprovalRequest
	if err := cursor.All(ctx, &approvals); err != nil {
		return nil, fmt.Errorf("unable to decode approvals: %w", err)
	}
	return approvals, nil
}

func (s *Service) DeleteApproval(ctx context.Context, id string) error {
	res, err := s.approvals.DeleteOne(ctx, bson.M{"_id": id})
	return expectDeleted(res, err, "approval", id)
}

func (s *Service) DistinctTokenContracts(ctx context.Context) ([]string, error) {
	values, err := s.approvals.Distinct(ctx, "tokenContractAddress",
		bson.M{"tokenContractAddress": bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return nil, fmt.Errorf("unable to query token contracts: %w", err)
	}
	contracts := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok && str != "" {
			contracts = append(contracts, str)
		}
	}
	sort.Strings(contracts)
	return contracts, nil
}

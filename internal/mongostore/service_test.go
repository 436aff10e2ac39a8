package mongostore

import (
	"testing"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// ---------- Unit tests for pure helpers (no MongoDB server needed) ----------

func TestLiveApprovalIndexIsPartialAndUnique(t *testing.T) {
	indexes := indexModels()[collApprovals]
	require.NotEmpty(t, indexes)

	live := indexes[0]
	assert.Equal(t, bson.M{"intentKey": 1}, live.Keys)
	require.NotNil(t, live.Options.Unique)
	assert.True(t, *live.Options.Unique)
	assert.Equal(t, bson.M{"executed": false}, live.Options.PartialFilterExpression)
}

func TestTransactionLogHashIsUnique(t *testing.T) {
	idx := indexModels()[collTransactionLogs][0]
	assert.Equal(t, bson.M{"hash": 1}, idx.Keys)
	require.NotNil(t, idx.Options.Unique)
	assert.True(t, *idx.Options.Unique)
}

func TestCasFilterRequiresVersionAndLiveRecord(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "a1", "version": int64(3), "executed": false}, casFilter("a1", 3))
	assert.Equal(t, bson.M{"intentKey": "k", "executed": false}, liveApprovalFilter("k"))
}

func TestApprovalUpdateIncrementsVersion(t *testing.T) {
	now := time.Now().UTC()
	a := &models.ApprovalRequest{
		ApproverSet:         []string{"s1", "s2"},
		CollectedSignatures: []string{"g1", "g2"},
		Executed:            true,
		TxId:                "tx",
		ExecutedAt:          &now,
	}
	update := approvalUpdate(a, now)

	assert.Equal(t, bson.M{"version": 1}, update["$inc"])
	set := update["$set"].(bson.M)
	assert.Equal(t, true, set["executed"])
	assert.Equal(t, now, set["executedAt"])
	assert.Equal(t, []string{"s1", "s2"}, set["approverSet"])
}

func TestFindOptionsDefaults(t *testing.T) {
	opts := findOptions(store.ListParams{}, "createdAt")
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(store.DefaultListLimit), *opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(0), *opts.Skip)
}

func TestTransactionLogFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, transactionLogFilter(""))
	assert.Equal(t, bson.M{"address": "TA"}, transactionLogFilter("TA"))
}

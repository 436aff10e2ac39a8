package api

import (
	"net/http"

	"tron-custody-go/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) ListApprovals(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	approvals, err := s.store.ListApprovals(c.Request.Context(), params)
	if err != nil {
		respondError(c, storeError("api.ListApprovals", "", err))
		return
	}
	c.JSON(http.StatusOK, approvals)
}

func (s *Server) GetApproval(c *gin.Context) {
	approval, err := s.store.GetApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, storeError("api.GetApproval", "approval not found", err))
		return
	}
	c.JSON(http.StatusOK, approval)
}

// DeleteApproval purges an approval request. A purged pending request frees
// its intent for a fresh first signature.
func (s *Server) DeleteApproval(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteApproval(c.Request.Context(), id); err != nil {
		respondError(c, storeError("api.DeleteApproval", "approval not found", err))
		return
	}
	zap.L().Info("Approval purged",
		zap.String("request_id", models.RequestId(c.Request.Context())),
		zap.String("approval_id", id))
	c.JSON(http.StatusOK, gin.H{"msg": "Approval deleted"})
}

func (s *Server) ListSweeps(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	logs, err := s.store.ListSweepLogs(c.Request.Context(), params)
	if err != nil {
		respondError(c, storeError("api.ListSweeps", "", err))
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) GetSweep(c *gin.Context) {
	entry, err := s.store.GetSweepLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, storeError("api.GetSweep", "sweep log not found", err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ListTransactions lists recorded incoming transfers, optionally for one address.
func (s *Server) ListTransactions(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	logs, err := s.store.ListTransactionLogs(c.Request.Context(), c.Query("address"), params)
	if err != nil {
		respondError(c, storeError("api.ListTransactions", "", err))
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) GetTransaction(c *gin.Context) {
	entry, err := s.store.GetTransactionLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, storeError("api.GetTransaction", "transaction not found", err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

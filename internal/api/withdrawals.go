package api

import (
	"errors"
	"net/http"
	"strconv"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgMissingFields = "Missing required fields"

func (s *Server) WithdrawTRX(c *gin.Context) {
	var req models.WithdrawTRXRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgMissingFields})
		return
	}

	s.withdraw(c, models.WithdrawalRequest{
		WithdrawalIntent: models.WithdrawalIntent{
			WalletId:           req.WalletId,
			AssetType:          models.AssetNative,
			DestinationAddress: req.ToAddress,
			Amount:             req.Amount,
		},
		SignerPassphrase: req.SignerPassphrase,
	})
}

func (s *Server) WithdrawTRC20(c *gin.Context) {
	var req models.WithdrawTRC20Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgMissingFields})
		return
	}

	s.withdraw(c, models.WithdrawalRequest{
		WithdrawalIntent: models.WithdrawalIntent{
			WalletId:             req.WalletId,
			AssetType:            models.AssetToken,
			DestinationAddress:   req.ToAddress,
			Amount:               req.Amount,
			TokenContractAddress: req.TokenContractAddress,
		},
		SignerPassphrase: req.SignerPassphrase,
	})
}

func (s *Server) withdraw(c *gin.Context, req models.WithdrawalRequest) {
	result, err := s.withdrawals.RequestWithdrawal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondError writes the status and client-facing message for err.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("request_id", models.RequestId(c.Request.Context())),
			zap.String("code", string(code)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"msg": apperrors.Message(err), "code": code})
}

// storeError maps a store error to an app error for respondError.
func storeError(op, notFoundMsg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, op, notFoundMsg)
	}
	return apperrors.WrapWithCode(apperrors.CodeStore, op, err)
}

func listParams(c *gin.Context) (store.ListParams, error) {
	var params store.ListParams
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return params, apperrors.New(apperrors.CodeValidation, "api.listParams", "invalid limit")
		}
		params.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return params, apperrors.New(apperrors.CodeValidation, "api.listParams", "invalid offset")
		}
		params.Offset = offset
	}
	return params, nil
}

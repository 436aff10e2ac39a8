package api

import (
	"net/http"

	"tron-custody-go/internal/models"

	"github.com/gin-gonic/gin"
)

func (s *Server) GenerateWallet(c *gin.Context) {
	wallet, err := s.wallets.GenerateMultisigWallet(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet)
}

func (s *Server) UpdatePermission(c *gin.Context) {
	var req models.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgMissingFields})
		return
	}

	result, err := s.wallets.UpdatePermission(c.Request.Context(), req.WalletId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListWallets(c *gin.Context) {
	wallets, err := s.wallets.ListMultisigWallets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

func (s *Server) GetWallet(c *gin.Context) {
	wallet, err := s.wallets.GetMultisigWallet(c.Request.Context(), c.Param("walletId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *Server) DeleteWallet(c *gin.Context) {
	if err := s.wallets.DeleteMultisigWallet(c.Request.Context(), c.Param("walletId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Wallet deleted"})
}

func (s *Server) TRXBalance(c *gin.Context) {
	balance, err := s.wallets.TRXBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *Server) TRC20Balance(c *gin.Context) {
	balance, err := s.wallets.TokenBalance(c.Request.Context(), c.Param("address"), c.Param("contractAddress"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *Server) GenerateCollectionWallet(c *gin.Context) {
	wallet, err := s.wallets.GenerateCollectionWallet(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet)
}

func (s *Server) ListCollectionWallets(c *gin.Context) {
	wallets, err := s.wallets.ListCollectionWallets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

func (s *Server) DeleteCollectionWallet(c *gin.Context) {
	if err := s.wallets.DeleteCollectionWallet(c.Request.Context(), c.Param("walletId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Wallet deleted"})
}

func (s *Server) SendTRX(c *gin.Context) {
	var req models.SendTRXRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgMissingFields})
		return
	}

	result, err := s.wallets.SendTRX(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) SendTRC20(c *gin.Context) {
	var req models.SendTRC20Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgMissingFields})
		return
	}

	result, err := s.wallets.SendTRC20(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

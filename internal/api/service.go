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

package api

import (
	"context"
	"fmt"
	"net/http"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"github.com/gin-gonic/gin"
)

// Withdrawals collects signer approvals for multisig withdrawals.
type Withdrawals interface {
	RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest) (*models.WithdrawalResult, error)
}

// Wallets manages multisig and collection wallets.
type Wallets interface {
	GenerateMultisigWallet(ctx context.Context) (*models.GeneratedMultisigWallet, error)
	UpdatePermission(ctx context.Context, walletId string) (*models.TransferResult, error)
	GetMultisigWallet(ctx context.Context, walletId string) (*models.MultisigWallet, error)
	ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error)
	DeleteMultisigWallet(ctx context.Context, walletId string) error
	TRXBalance(ctx context.Context, address string) (*models.BalanceResponse, error)
	TokenBalance(ctx context.Context, address, contract string) (*models.BalanceResponse, error)

	GenerateCollectionWallet(ctx context.Context) (*models.GeneratedCollectionWallet, error)
	ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error)
	DeleteCollectionWallet(ctx context.Context, walletId string) error
	SendTRX(ctx context.Context, req models.SendTRXRequest) (*models.TransferResult, error)
	SendTRC20(ctx context.Context, req models.SendTRC20Request) (*models.TransferResult, error)
}

// AuditStore is the read and purge surface over approvals and logs.
type AuditStore interface {
	ListApprovals(ctx context.Context, params store.ListParams) ([]models.ApprovalRequest, error)
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	DeleteApproval(ctx context.Context, id string) error
	ListSweepLogs(ctx context.Context, params store.ListParams) ([]models.SweepLogEntry, error)
	GetSweepLog(ctx context.Context, id string) (*models.SweepLogEntry, error)
	ListTransactionLogs(ctx context.Context, address string, params store.ListParams) ([]models.TransactionLogEntry, error)
	GetTransactionLog(ctx context.Context, id string) (*models.TransactionLogEntry, error)
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	withdrawals Withdrawals
	wallets     Wallets
	store       AuditStore
}

func NewServer(withdrawals Withdrawals, wallets Wallets, st AuditStore) *Server {
	return &Server{
		withdrawals: withdrawals,
		wallets:     wallets,
		store:       st,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestContext(), requestLogger(), recovery())

	r.GET("/healthz", s.Health)

	api := r.Group("/api")

	api.POST("/withdraw/trx", s.WithdrawTRX)
	api.POST("/withdraw/trc20", s.WithdrawTRC20)

	wallets := api.Group("/wallets")
	wallets.POST("/generate", s.GenerateWallet)
	wallets.POST("/update-permission", s.UpdatePermission)
	wallets.GET("", s.ListWallets)
	wallets.GET("/balance/trx/:address", s.TRXBalance)
	wallets.GET("/balance/trc20/:address/:contractAddress", s.TRC20Balance)
	wallets.GET("/:walletId", s.GetWallet)
	wallets.DELETE("/:walletId", s.DeleteWallet)

	single := api.Group("/single-wallets")
	single.POST("/generate", s.GenerateCollectionWallet)
	single.GET("", s.ListCollectionWallets)
	single.DELETE("/:walletId", s.DeleteCollectionWallet)
	single.POST("/trx", s.SendTRX)
	single.POST("/trc20", s.SendTRC20)

	api.GET("/approvals", s.ListApprovals)
	api.GET("/approvals/:id", s.GetApproval)
	api.DELETE("/approvals/:id", s.DeleteApproval)
	api.GET("/sweeps", s.ListSweeps)
	api.GET("/sweeps/:id", s.GetSweep)
	api.GET("/transactions", s.ListTransactions)
	api.GET("/transactions/:id", s.GetTransaction)

	return r
}

func (s *Server) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Server) Health(c *gin.Context) {
	if err := s.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

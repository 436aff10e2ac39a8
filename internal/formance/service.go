package formance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tron-custody-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const (
	defaultLedgerName = "tron-custody"
	trxPrecision      = 6
	trxSymbol         = "TRX"
	tokenFallback     = "TRC20"
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,16}$`)

// Service mirrors executed withdrawals and successful sweeps into a Formance
// Stack ledger. It is write-only; the store remains the source of truth.
type Service struct {
	client        *v3.Formance
	ledger        string
	tokenDecimals int32
	// token contract address -> ledger symbol
	tokenSymbols map[string]string
}

// NewService connects to the stack and creates the ledger if it doesn't
// already exist. tokenSymbols maps contract addresses to asset symbols; unknown
// contracts are booked as TRC20.
func NewService(ctx context.Context, cfg models.FormanceConfig, tokenDecimals int32, tokenSymbols map[string]string) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = defaultLedgerName
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := newService(client, cfg.LedgerName, tokenDecimals, tokenSymbols)

	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance service initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

func newService(client *v3.Formance, ledger string, tokenDecimals int32, tokenSymbols map[string]string) *Service {
	symbols := make(map[string]string, len(tokenSymbols))
	for contract, symbol := range tokenSymbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbolPattern.MatchString(symbol) {
			symbols[contract] = symbol
		} else {
			zap.L().Warn("Token symbol is not a valid ledger asset, using fallback",
				zap.String("token_contract", contract),
				zap.String("symbol", symbol))
		}
	}
	return &Service{client: client, ledger: ledger, tokenDecimals: tokenDecimals, tokenSymbols: symbols}
}

// ensureLedger creates the ledger if it does not already exist.
func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "tron-custody",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// Close is a no-op for the Formance backend (HTTP client needs no teardown).
func (s *Service) Close() {}

// ---------- helpers ----------

// nativeAsset is the UMN notation for TRX, e.g. "TRX/6".
func nativeAsset() string {
	return fmt.Sprintf("%s/%d", trxSymbol, trxPrecision)
}

// tokenAsset returns the UMN notation for a token contract, e.g. "USDT/6".
func (s *Service) tokenAsset(contract string) string {
	symbol, ok := s.tokenSymbols[contract]
	if !ok {
		symbol = tokenFallback
	}
	return fmt.Sprintf("%s/%d", symbol, s.tokenDecimals)
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}

func strPtr(s string) *string { return &s }

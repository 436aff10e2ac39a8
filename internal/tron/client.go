package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tron-custody-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	// ActivePermissionId is the permission a 2-of-2 wallet signs transfers under.
	ActivePermissionId int32 = 2
	// OwnerPermissionId signs with the account's owner permission.
	OwnerPermissionId int32 = 0

	// activeOperations enables every contract type except account permission updates.
	activeOperations = "7fff1fc0033e0000000000000000000000000000000000000000000000000000"

	defaultTokenFeeLimit = 100 * SunPerTRX
	maxErrorBody         = 512
)

// BroadcastError is a rejection reported by the node.
type BroadcastError struct {
	Code    string
	Message string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast rejected: %s %s", e.Code, e.Message)
}

// IncomingTransfer is a transfer received by a watched address.
type IncomingTransfer struct {
	Hash          string
	From          string
	To            string
	Amount        *big.Int
	TokenContract string
	Timestamp     time.Time
}

// Client talks to a Tron full node HTTP API (and the TronGrid v1 API for history).
type Client struct {
	baseURL    string
	apiKey     string
	feeLimit   int64
	httpClient http.Client
}

func NewClient(cfg models.TronConfig) (*Client, error) {
	if cfg.FullHost == "" {
		return nil, errors.New("tron full host cannot be empty")
	}
	if _, err := url.Parse(cfg.FullHost); err != nil {
		return nil, fmt.Errorf("invalid tron full host: %w", err)
	}

	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	feeLimit := cfg.TokenFeeLimit
	if feeLimit <= 0 {
		feeLimit = defaultTokenFeeLimit
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.FullHost, "/"),
		apiKey:     cfg.ApiKey,
		feeLimit:   feeLimit,
		httpClient: httpClient,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("unable to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: unable to read response: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: unable to decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

type transactionResponse struct {
	Transaction
	Error string `json:"Error"`
}

type triggerResult struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type triggerResponse struct {
	Result         triggerResult `json:"result"`
	Transaction    *Transaction  `json:"transaction"`
	ConstantResult []string      `json:"constant_result"`
}

func (r triggerResult) err() error {
	return fmt.Errorf("contract call failed: %s %s", r.Code, decodeHexMessage(r.Message))
}

func (c *Client) encodeBuilt(resp transactionResponse) (*models.RawTransaction, error) {
	if resp.Error != "" {
		return nil, fmt.Errorf("node rejected transaction: %s", resp.Error)
	}
	tx := resp.Transaction
	if err := tx.validate(); err != nil {
		return nil, err
	}
	tx.Signature = nil
	return Encode(&tx)
}

// BuildNativeTransfer builds an unsigned TRX transfer of amountSun.
func (c *Client) BuildNativeTransfer(ctx context.Context, from, to string, amountSun int64, permissionId int32) (*models.RawTransaction, error) {
	if amountSun <= 0 {
		return nil, errors.New("transfer amount must be positive")
	}
	body := map[string]any{
		"owner_address": from,
		"to_address":    to,
		"amount":        amountSun,
		"visible":       true,
	}
	if permissionId != OwnerPermissionId {
		body["Permission_id"] = permissionId
	}

	var resp transactionResponse
	if err := c.post(ctx, "/wallet/createtransaction", body, &resp); err != nil {
		return nil, err
	}
	return c.encodeBuilt(resp)
}

// BuildTokenTransfer builds an unsigned TRC20 transfer(to, amount) call.
func (c *Client) BuildTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int, permissionId int32) (*models.RawTransaction, error) {
	param, err := encodeTransferParams(to, amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"owner_address":     from,
		"contract_address":  contract,
		"function_selector": selectorTransfer,
		"parameter":         param,
		"fee_limit":         c.feeLimit,
		"call_value":        0,
		"visible":           true,
	}
	if permissionId != OwnerPermissionId {
		body["Permission_id"] = permissionId
	}

	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggersmartcontract", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return nil, resp.Result.err()
	}
	return c.encodeBuilt(transactionResponse{Transaction: *resp.Transaction})
}

type permissionKey struct {
	Address string `json:"address"`
	Weight  int64  `json:"weight"`
}

type permission struct {
	Type           int             `json:"type"`
	PermissionName string          `json:"permission_name"`
	Threshold      int64           `json:"threshold"`
	Operations     string          `json:"operations,omitempty"`
	Keys           []permissionKey `json:"keys"`
}

// BuildPermissionUpdate builds the transaction that hands the owner and active
// permissions of owner to signers, each with weight 1, at the given threshold.
func (c *Client) BuildPermissionUpdate(ctx context.Context, owner string, signers []string, threshold int64) (*models.RawTransaction, error) {
	if len(signers) == 0 || threshold <= 0 || threshold > int64(len(signers)) {
		return nil, fmt.Errorf("invalid permission: %d signers, threshold %d", len(signers), threshold)
	}
	keys := make([]permissionKey, len(signers))
	for i, s := range signers {
		keys[i] = permissionKey{Address: s, Weight: 1}
	}
	body := map[string]any{
		"owner_address": owner,
		"owner": permission{
			Type:           0,
			PermissionName: "owner",
			Threshold:      threshold,
			Keys:           keys,
		},
		"actives": []permission{{
			Type:           2,
			PermissionName: "active",
			Threshold:      threshold,
			Operations:     activeOperations,
			Keys:           keys,
		}},
		"visible": true,
	}

	var resp transactionResponse
	if err := c.post(ctx, "/wallet/accountpermissionupdate", body, &resp); err != nil {
		return nil, err
	}
	return c.encodeBuilt(resp)
}

// Sign adds the first signature to an unsigned transaction.
func (c *Client) Sign(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error) {
	tx, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}
	if len(tx.Signature) > 0 {
		return nil, "", errors.New("transaction is already signed, combine signatures instead")
	}
	return signAndEncode(tx, privateKeyHex, signerAddress)
}

// CombineSignatures adds a further signature to a partially signed transaction.
func (c *Client) CombineSignatures(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error) {
	tx, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}
	if len(tx.Signature) == 0 {
		return nil, "", errors.New("transaction has no signature to combine with")
	}
	return signAndEncode(tx, privateKeyHex, signerAddress)
}

func signAndEncode(tx *Transaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error) {
	sig, err := SignTransaction(tx, privateKeyHex, signerAddress)
	if err != nil {
		return nil, "", err
	}
	out, err := Encode(tx)
	if err != nil {
		return nil, "", err
	}
	return out, sig, nil
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcast submits a signed transaction and returns its id. A node reporting
// the transaction as a duplicate counts as success.
func (c *Client) Broadcast(ctx context.Context, raw *models.RawTransaction) (string, error) {
	tx, err := Decode(raw)
	if err != nil {
		return "", err
	}
	if len(tx.Signature) == 0 {
		return "", errors.New("refusing to broadcast an unsigned transaction")
	}

	var resp broadcastResponse
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return "", err
	}
	if resp.Result {
		if resp.TxID != "" {
			return resp.TxID, nil
		}
		return tx.TxID, nil
	}
	if resp.Code == "DUP_TRANSACTION_ERROR" {
		zap.L().Info("Transaction already known to node", zap.String("txid", tx.TxID))
		return tx.TxID, nil
	}
	return "", &BroadcastError{Code: resp.Code, Message: decodeHexMessage(resp.Message)}
}

// GetBalance returns the TRX balance of address in sun. Unactivated accounts report zero.
func (c *Client) GetBalance(ctx context.Context, address string) (int64, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.post(ctx, "/wallet/getaccount", map[string]any{"address": address, "visible": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetTokenBalance returns balanceOf(owner) on a TRC20 contract in base units.
func (c *Client) GetTokenBalance(ctx context.Context, contract, owner string) (*big.Int, error) {
	param, err := encodeBalanceOfParams(owner)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"owner_address":     owner,
		"contract_address":  contract,
		"function_selector": selectorBalanceOf,
		"parameter":         param,
		"visible":           true,
	}
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggerconstantcontract", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result {
		return nil, resp.Result.err()
	}
	if len(resp.ConstantResult) == 0 {
		return new(big.Int), nil
	}
	return decodeUint256(resp.ConstantResult[0])
}

type trxHistoryResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		TxID           string `json:"txID"`
		BlockTimestamp int64  `json:"block_timestamp"`
		RawData        struct {
			Contract []struct {
				Type      string `json:"type"`
				Parameter struct {
					Value struct {
						OwnerAddress string `json:"owner_address"`
						ToAddress    string `json:"to_address"`
						Amount       int64  `json:"amount"`
					} `json:"value"`
				} `json:"parameter"`
			} `json:"contract"`
		} `json:"raw_data"`
		Ret []struct {
			ContractRet string `json:"contractRet"`
		} `json:"ret"`
	} `json:"data"`
}

// ListIncomingTRX returns recent successful TRX transfers received by address.
func (c *Client) ListIncomingTRX(ctx context.Context, address string, limit int) ([]IncomingTransfer, error) {
	query := url.Values{}
	query.Set("only_to", "true")
	query.Set("limit", fmt.Sprint(limit))

	var resp trxHistoryResponse
	if err := c.get(ctx, "/v1/accounts/"+url.PathEscape(address)+"/transactions", query, &resp); err != nil {
		return nil, err
	}

	var transfers []IncomingTransfer
	for _, tx := range resp.Data {
		if len(tx.RawData.Contract) == 0 || tx.RawData.Contract[0].Type != "TransferContract" {
			continue
		}
		if len(tx.Ret) > 0 && tx.Ret[0].ContractRet != "" && tx.Ret[0].ContractRet != "SUCCESS" {
			continue
		}
		value := tx.RawData.Contract[0].Parameter.Value
		from, err := FromHexAddress(value.OwnerAddress)
		if err != nil {
			return nil, err
		}
		to, err := FromHexAddress(value.ToAddress)
		if err != nil {
			return nil, err
		}
		if to != address {
			continue
		}
		transfers = append(transfers, IncomingTransfer{
			Hash:      tx.TxID,
			From:      from,
			To:        to,
			Amount:    big.NewInt(value.Amount),
			Timestamp: time.UnixMilli(tx.BlockTimestamp).UTC(),
		})
	}
	return transfers, nil
}

type trc20HistoryResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		TransactionId  string `json:"transaction_id"`
		BlockTimestamp int64  `json:"block_timestamp"`
		From           string `json:"from"`
		To             string `json:"to"`
		Type           string `json:"type"`
		Value          string `json:"value"`
		TokenInfo      struct {
			Address string `json:"address"`
		} `json:"token_info"`
	} `json:"data"`
}

// ListIncomingTRC20 returns recent transfers of contract received by address.
func (c *Client) ListIncomingTRC20(ctx context.Context, address, contract string, limit int) ([]IncomingTransfer, error) {
	query := url.Values{}
	query.Set("only_to", "true")
	query.Set("limit", fmt.Sprint(limit))
	query.Set("contract_address", contract)

	var resp trc20HistoryResponse
	if err := c.get(ctx, "/v1/accounts/"+url.PathEscape(address)+"/transactions/trc20", query, &resp); err != nil {
		return nil, err
	}

	var transfers []IncomingTransfer
	for _, e := range resp.Data {
		if e.Type != "Transfer" || e.To != address {
			continue
		}
		amount, ok := new(big.Int).SetString(e.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid token amount %q in %s", e.Value, e.TransactionId)
		}
		transfers = append(transfers, IncomingTransfer{
			Hash:          e.TransactionId,
			From:          e.From,
			To:            e.To,
			Amount:        amount,
			TokenContract: contract,
			Timestamp:     time.UnixMilli(e.BlockTimestamp).UTC(),
		})
	}
	return transfers, nil
}

// decodeHexMessage returns the text of a hex-encoded node message, or the
// input when it is not hex.
func decodeHexMessage(msg string) string {
	if raw, err := hex.DecodeString(msg); err == nil && len(raw) > 0 {
		return string(raw)
	}
	return msg
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

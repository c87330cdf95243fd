package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// RPCClient implements Client over the JSON-RPC HTTP API of a Solana-style
// node fronted by its wallet service.
type RPCClient struct {
	Endpoint string
	Client   *http.Client

	nextID atomic.Int64
}

// NewRPCClient creates a client for one endpoint.
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RPCClient) Name() string { return c.Endpoint }

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RPCClient) call(ctx context.Context, method string, params any, result any) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d, body: %s", method, resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *RPCClient) Health(ctx context.Context) error {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("%w: %s reported %q", ErrUnhealthy, c.Endpoint, status)
	}
	return nil
}

func (c *RPCClient) TokenSupply(ctx context.Context, mint string) (uint64, error) {
	var result struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []any{mint}, &result); err != nil {
		return 0, err
	}
	supply, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse supply %q: %w", result.Value.Amount, err)
	}
	return supply, nil
}

func (c *RPCClient) TokenHolders(ctx context.Context, mint string) ([]HolderBalance, error) {
	var result struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenLargestAccounts", []any{mint}, &result); err != nil {
		return nil, err
	}
	holders := make([]HolderBalance, 0, len(result.Value))
	for _, v := range result.Value {
		balance, err := strconv.ParseUint(v.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q for %s: %w", v.Amount, v.Address, err)
		}
		holders = append(holders, HolderBalance{Address: v.Address, Balance: balance})
	}
	return holders, nil
}

func (c *RPCClient) AccountBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *RPCClient) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

func (c *RPCClient) SubmitTransfer(ctx context.Context, req *TransferRequest) (string, error) {
	type leg struct {
		To            string `json:"to"`
		Amount        uint64 `json:"amount"`
		CreateAccount bool   `json:"createAccount,omitempty"`
	}
	legs := make([]leg, len(req.Transfers))
	for i, t := range req.Transfers {
		legs[i] = leg{To: t.To, Amount: t.Amount, CreateAccount: t.CreateAccount}
	}
	params := map[string]any{
		"payer":           req.Payer,
		"signingKey":      req.SigningKey,
		"recentBlockhash": req.RecentBlockhash,
		"transfers":       legs,
	}
	if req.Memo != "" {
		params["memo"] = req.Memo
	}
	var signature string
	if err := c.call(ctx, "submitTransfer", []any{params}, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

func (c *RPCClient) ConfirmTransaction(ctx context.Context, signature string) error {
	var result struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := c.call(ctx, "confirmTransaction", []any{signature}, &result); err != nil {
		return err
	}
	if !result.Confirmed {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, signature)
	}
	return nil
}

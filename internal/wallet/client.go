// Package wallet is the JSON-RPC 2.0 client for the walletd service the
// faucet disburses from. The faucet treats it as an opaque collaborator:
// a disburse call that may fail or time out, and a balance query used for
// health and sufficiency checks.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
)

const jsonRPCVersion = "2.0"

// Options configures a walletd client.
type Options struct {
	// RPCURL is the walletd json_rpc endpoint.
	RPCURL  string
	Timeout time.Duration
	// Fee and Mixin are fixed per deployment and passed to sendTransaction.
	Fee   uint64
	Mixin int
	// Address is the faucet wallet address used as the change address.
	Address string
}

// Client talks to walletd over HTTP. Safe for concurrent use.
type Client struct {
	opts       Options
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type transfer struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type sendTransactionParams struct {
	Anonymity     int        `json:"anonymity"`
	Fee           uint64     `json:"fee"`
	Transfers     []transfer `json:"transfers"`
	ChangeAddress string     `json:"changeAddress,omitempty"`
}

type sendTransactionResult struct {
	TransactionHash string `json:"transactionHash"`
}

type getBalanceResult struct {
	AvailableBalance uint64 `json:"availableBalance"`
	LockedAmount     uint64 `json:"lockedAmount"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s", faucet.ErrUpstreamTimeout, method)
		}
		return fmt.Errorf("%w: %s: %v", faucet.ErrUpstreamFailure, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", faucet.ErrUpstreamFailure, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", faucet.ErrUpstreamFailure, method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %s (code %d)", faucet.ErrUpstreamFailure, method, rpcResp.Error.Message, rpcResp.Error.Code)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: failed to decode %s result: %v", faucet.ErrUpstreamFailure, method, err)
		}
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// Disburse sends amount atomic units to address and returns the transaction
// hash. At-most-one invocation per consumed session is guaranteed by the
// caller, not here.
func (c *Client) Disburse(ctx context.Context, address string, amount uint64) (string, error) {
	var result sendTransactionResult
	err := c.call(ctx, "sendTransaction", sendTransactionParams{
		Anonymity:     c.opts.Mixin,
		Fee:           c.opts.Fee,
		Transfers:     []transfer{{Address: address, Amount: amount}},
		ChangeAddress: c.opts.Address,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.TransactionHash == "" {
		return "", fmt.Errorf("%w: sendTransaction returned no transaction hash", faucet.ErrUpstreamFailure)
	}
	return result.TransactionHash, nil
}

// Balance returns the wallet's available (unlocked) balance in atomic units.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	var result getBalanceResult
	if err := c.call(ctx, "getBalance", struct{}{}, &result); err != nil {
		return 0, err
	}
	return result.AvailableBalance, nil
}

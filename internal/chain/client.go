package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const receiptPollInterval = 2 * time.Second

type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
}

// Client talks to the wallet daemon over HTTP. The daemon owns keys and
// signing; this client only submits intents and reads receipts.
type Client struct {
	http           *http.Client
	baseURL        string
	apiKey         string
	confirmTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout == 0 {
		confirmTimeout = 60 * time.Second
	}
	return &Client{
		http:           &http.Client{Timeout: requestTimeout},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		confirmTimeout: confirmTimeout,
	}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type routedTransferRequest struct {
	Router string `json:"router"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
	Ref    string `json:"ref,omitempty"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
}

func (c *Client) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	var out balanceResponse
	path := fmt.Sprintf("/v1/balance/%s", address)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return decimal.Zero, fmt.Errorf("balance of %s: %w", address, err)
	}
	return out.Balance, nil
}

func (c *Client) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error) {
	var out transferResponse
	req := transferRequest{From: from, To: to, Amount: amount.String(), Memo: memo}
	if err := c.call(ctx, http.MethodPost, "/v1/transfers", req, &out); err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	return out.TxHash, nil
}

func (c *Client) TransferRouted(ctx context.Context, router, from, to string, amount, fee decimal.Decimal, ref string) (string, error) {
	var out transferResponse
	req := routedTransferRequest{
		Router: router,
		From:   from,
		To:     to,
		Amount: amount.String(),
		Fee:    fee.String(),
		Ref:    ref,
	}
	if err := c.call(ctx, http.MethodPost, "/v1/transfers/routed", req, &out); err != nil {
		return "", fmt.Errorf("routed transfer: %w", err)
	}
	return out.TxHash, nil
}

func (c *Client) WaitForConfirmation(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt Receipt
		path := fmt.Sprintf("/v1/receipts/%s", txHash)
		if err := c.call(ctx, http.MethodGet, path, nil, &receipt); err == nil {
			switch receipt.Status {
			case "confirmed":
				return nil
			case "reverted":
				return fmt.Errorf("%w: %s", ErrTxReverted, txHash)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, txHash)
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

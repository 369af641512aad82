package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a Spreedly-compatible payment gateway over basic-auth
// JSON. All calls are synchronous request/response; checkout is an
// interactive flow, so the client carries a short timeout and callers wrap
// calls in a request-scoped context.
type Client struct {
	baseURL      string
	envKey       string
	accessSecret string
	gatewayToken string
	httpClient   *http.Client
}

// Result is the outcome of one gateway attempt. A decline is a normal
// result with Succeeded=false, not an error; errors are reserved for
// transport and protocol failures.
type Result struct {
	Succeeded        bool
	TransactionToken string
	State            string
	Message          string
	ErrorCode        string
	AmountCents      int64
	Currency         string
}

// PaymentMethod is the gateway's view of a tokenized card, for display
// only.
type PaymentMethod struct {
	Token    string `json:"token"`
	CardType string `json:"card_type"`
	LastFour string `json:"last_four_digits"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
}

func NewClient(baseURL, envKey, accessSecret, gatewayToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		envKey:       envKey,
		accessSecret: accessSecret,
		gatewayToken: gatewayToken,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type transactionRequest struct {
	Transaction transactionBody `json:"transaction"`
}

type transactionBody struct {
	PaymentMethodToken string `json:"payment_method_token,omitempty"`
	Amount             int64  `json:"amount,omitempty"`
	CurrencyCode       string `json:"currency_code,omitempty"`
}

type transactionResponse struct {
	Transaction struct {
		Token        string `json:"token"`
		Succeeded    bool   `json:"succeeded"`
		State        string `json:"state"`
		Message      string `json:"message"`
		Amount       int64  `json:"amount"`
		CurrencyCode string `json:"currency_code"`
		Response     struct {
			Message   string `json:"message"`
			ErrorCode string `json:"error_code"`
		} `json:"response"`
	} `json:"transaction"`
}

// Purchase charges a tokenized payment method. Amount is in the currency's
// minor unit.
func (c *Client) Purchase(ctx context.Context, paymentMethodToken string, amountCents int64, currency string) (*Result, error) {
	path := fmt.Sprintf("/gateways/%s/purchase.json", c.gatewayToken)
	return c.transact(ctx, path, paymentMethodToken, amountCents, currency)
}

// Authorize places a hold without capturing, for preauth-only campaigns.
func (c *Client) Authorize(ctx context.Context, paymentMethodToken string, amountCents int64, currency string) (*Result, error) {
	path := fmt.Sprintf("/gateways/%s/authorize.json", c.gatewayToken)
	return c.transact(ctx, path, paymentMethodToken, amountCents, currency)
}

// Capture settles a previous authorization.
func (c *Client) Capture(ctx context.Context, transactionToken string) (*Result, error) {
	path := fmt.Sprintf("/transactions/%s/capture.json", transactionToken)
	return c.transact(ctx, path, "", 0, "")
}

// Void cancels an unsettled transaction.
func (c *Client) Void(ctx context.Context, transactionToken string) (*Result, error) {
	path := fmt.Sprintf("/transactions/%s/void.json", transactionToken)
	return c.transact(ctx, path, "", 0, "")
}

// Credit refunds a settled transaction, fully or partially.
func (c *Client) Credit(ctx context.Context, transactionToken string, amountCents int64) (*Result, error) {
	path := fmt.Sprintf("/transactions/%s/credit.json", transactionToken)
	return c.transact(ctx, path, "", amountCents, "")
}

func (c *Client) transact(ctx context.Context, path, paymentMethodToken string, amountCents int64, currency string) (*Result, error) {
	body, err := json.Marshal(transactionRequest{
		Transaction: transactionBody{
			PaymentMethodToken: paymentMethodToken,
			Amount:             amountCents,
			CurrencyCode:       currency,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.envKey, c.accessSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	// The gateway reports declines in the body with a 2xx or 402-class
	// status; anything else without a parseable transaction is a protocol
	// failure.
	var txResp transactionResponse
	if err := json.Unmarshal(respBody, &txResp); err != nil || txResp.Transaction.Token == "" && txResp.Transaction.State == "" {
		return nil, fmt.Errorf("unexpected gateway response: status=%d", resp.StatusCode)
	}

	message := txResp.Transaction.Response.Message
	if message == "" {
		message = txResp.Transaction.Message
	}

	return &Result{
		Succeeded:        txResp.Transaction.Succeeded,
		TransactionToken: txResp.Transaction.Token,
		State:            txResp.Transaction.State,
		Message:          message,
		ErrorCode:        txResp.Transaction.Response.ErrorCode,
		AmountCents:      txResp.Transaction.Amount,
		Currency:         txResp.Transaction.CurrencyCode,
	}, nil
}

// ShowPaymentMethod looks up a tokenized payment method for display.
func (c *Client) ShowPaymentMethod(ctx context.Context, token string) (*PaymentMethod, error) {
	url := fmt.Sprintf("%s/payment_methods/%s.json", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.envKey, c.accessSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment method lookup failed: status=%d", resp.StatusCode)
	}

	var wrapper struct {
		PaymentMethod PaymentMethod `json:"payment_method"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode payment method: %w", err)
	}
	return &wrapper.PaymentMethod, nil
}

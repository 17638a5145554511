// Package client provides the Go client for the payment gateway's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the server reports an unknown payment or user.
var ErrNotFound = errors.New("not found")

// Payment represents a payment created by the gateway. The WalletAddress is
// the deposit address the payer must fund; it doubles as the payment ID.
type Payment struct {
	PaymentID     string
	WalletAddress string
	SolAmount     decimal.Decimal
	Status        string
	FundsSent     bool
	PaymentURL    string
	QRCodeData    string
}

// Status is the result of a payment status check.
type Status struct {
	PaymentID       string `json:"payment_id"`
	Status          string `json:"status"`
	PaymentReceived bool   `json:"payment_received"`
	FundsSent       bool   `json:"funds_sent"`
}

// UserInfo is a user's payout configuration.
type UserInfo struct {
	UserID        string
	OutputWallet  string
	FeePercentage *decimal.Decimal
}

// Client is the HTTP client for the payment gateway service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new payment gateway client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreatePayment asks the server to create a new payment and returns the
// deposit address the payer must fund.
func (c *Client) CreatePayment(ctx context.Context, usdAmount decimal.Decimal, userID string) (*Payment, error) {
	reqBody := map[string]interface{}{
		"usd_amount": usdAmount.String(),
		"user_id":    userID,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/create_payment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var apiPayment paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiPayment); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	payment, err := responseToPayment(&apiPayment)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("payment created",
		"payment_id", payment.PaymentID,
		"sol_amount", payment.SolAmount.String(),
	)
	return payment, nil
}

// CheckPayment runs a status check on a payment. Checks drive the payment
// forward server-side: a check verifies the deposit and triggers forwarding,
// so callers poll this until FundsSent is true.
func (c *Client) CheckPayment(ctx context.Context, paymentID string) (*Status, error) {
	u := fmt.Sprintf("%s/check_payment/%s", c.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// Await polls CheckPayment at the given interval until the payment's funds
// have been forwarded or the context is done. It returns the final status.
func (c *Client) Await(ctx context.Context, paymentID string, interval time.Duration) (*Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.CheckPayment(ctx, paymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			// Transient failures are retried until the context expires.
			c.logger.Warn("payment check failed, retrying",
				"payment_id", paymentID,
				"error", err,
			)
		} else if status.FundsSent {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetUserInfo creates or updates a user's payout configuration.
func (c *Client) SetUserInfo(ctx context.Context, userID, outputWallet string, feePercentage decimal.Decimal) (*UserInfo, error) {
	reqBody := map[string]interface{}{
		"output_wallet":  outputWallet,
		"fee_percentage": feePercentage.String(),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/user_info/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "PUT", u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var apiInfo userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiInfo); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return responseToUserInfo(&apiInfo)
}

// GetUserInfo retrieves a user's payout configuration.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	u := fmt.Sprintf("%s/user_info/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var apiInfo userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiInfo); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return responseToUserInfo(&apiInfo)
}

// Health checks whether the server is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// paymentResponse is the API response format for a payment.
// The server returns sol_amount as a decimal string.
type paymentResponse struct {
	PaymentID     string `json:"payment_id"`
	WalletAddress string `json:"wallet_address"`
	SolAmount     string `json:"sol_amount"`
	Status        string `json:"status"`
	FundsSent     bool   `json:"funds_sent"`
	PaymentURL    string `json:"payment_url"`
	QRCodeData    string `json:"qr_code_data"`
}

func responseToPayment(resp *paymentResponse) (*Payment, error) {
	solAmount, err := decimal.NewFromString(resp.SolAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid sol_amount %q: %w", resp.SolAmount, err)
	}

	return &Payment{
		PaymentID:     resp.PaymentID,
		WalletAddress: resp.WalletAddress,
		SolAmount:     solAmount,
		Status:        resp.Status,
		FundsSent:     resp.FundsSent,
		PaymentURL:    resp.PaymentURL,
		QRCodeData:    resp.QRCodeData,
	}, nil
}

// userInfoResponse is the API response format for user payout configuration.
type userInfoResponse struct {
	UserID        string  `json:"user_id"`
	OutputWallet  *string `json:"output_wallet"`
	FeePercentage *string `json:"fee_percentage"`
}

func responseToUserInfo(resp *userInfoResponse) (*UserInfo, error) {
	info := &UserInfo{UserID: resp.UserID}
	if resp.OutputWallet != nil {
		info.OutputWallet = *resp.OutputWallet
	}
	if resp.FeePercentage != nil {
		feePct, err := decimal.NewFromString(*resp.FeePercentage)
		if err != nil {
			return nil, fmt.Errorf("invalid fee_percentage %q: %w", *resp.FeePercentage, err)
		}
		info.FeePercentage = &feePct
	}
	return info, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}

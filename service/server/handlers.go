package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/payment"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for payment requests
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxUserIDLength    = 256
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

	oneHundred = decimal.NewFromInt(100)
)

type paymentResponse struct {
	PaymentID     string `json:"payment_id"`
	WalletAddress string `json:"wallet_address"`
	SolAmount     string `json:"sol_amount"`
	Status        string `json:"status"`
	FundsSent     bool   `json:"funds_sent"`
	PaymentURL    string `json:"payment_url"`
	QRCodeData    string `json:"qr_code_data,omitempty"`
}

type checkResponse struct {
	PaymentID       string `json:"payment_id"`
	Status          string `json:"status"`
	PaymentReceived bool   `json:"payment_received"`
	FundsSent       bool   `json:"funds_sent"`
}

type userInfoResponse struct {
	UserID        string  `json:"user_id"`
	OutputWallet  *string `json:"output_wallet"`
	FeePercentage *string `json:"fee_percentage"`
}

// handleCreatePayment returns a handler that creates a new payment with a
// fresh deposit address.
// POST /create_payment
func handleCreatePayment(payments PaymentService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			UsdAmount json.Number `json:"usd_amount"`
			UserID    string      `json:"user_id"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode create payment request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		usdAmount, err := decimal.NewFromString(req.UsdAmount.String())
		if err != nil {
			writeError(w, "invalid usd_amount: must be a number", http.StatusBadRequest)
			return
		}
		if !usdAmount.IsPositive() {
			writeError(w, "invalid usd_amount: must be positive", http.StatusBadRequest)
			return
		}

		if err := validateUserID(req.UserID); err != nil {
			logger.Debug("invalid user id", "user_id", req.UserID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := payments.CreatePayment(r.Context(), usdAmount, req.UserID)
		if err != nil {
			if errors.Is(err, payment.ErrPriceUnavailable) {
				logger.Error("price feed unavailable", "error", err)
				writeError(w, "price feed unavailable", http.StatusBadGateway)
				return
			}
			logger.Error("failed to create payment", "user_id", req.UserID, "error", err)
			writeError(w, "failed to create payment", http.StatusInternalServerError)
			return
		}

		paymentURL := buildSolanaPayURL(p.WalletAddress, p.SolAmount)
		qrCodeData, err := generateQRCode(paymentURL)
		if err != nil {
			// QR code is a convenience; the payment itself succeeded.
			logger.Warn("failed to generate QR code", "payment_id", p.PaymentID, "error", err)
			qrCodeData = ""
		}

		writeJSON(w, paymentResponse{
			PaymentID:     p.PaymentID,
			WalletAddress: p.WalletAddress,
			SolAmount:     p.SolAmount.String(),
			Status:        p.Status,
			FundsSent:     p.FundsSent,
			PaymentURL:    paymentURL,
			QRCodeData:    qrCodeData,
		}, http.StatusOK)
	})
}

// handleCheckPayment returns a handler that runs a status check on a payment.
// A check is not a passive read: it verifies the deposit and forwards funds
// when the payment has progressed far enough.
// GET /check_payment/{payment_id}
func handleCheckPayment(payments PaymentService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paymentID := r.PathValue("payment_id")

		if err := validateAddress(paymentID); err != nil {
			logger.Debug("invalid payment id", "payment_id", paymentID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		status, err := payments.CheckPayment(r.Context(), paymentID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "payment not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to check payment", "payment_id", paymentID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, checkResponse{
			PaymentID:       status.PaymentID,
			Status:          status.Status,
			PaymentReceived: status.PaymentReceived,
			FundsSent:       status.FundsSent,
		}, http.StatusOK)
	})
}

// handleUpsertUserInfo returns a handler that creates or updates a user's
// payout configuration.
// PUT /user_info/{user_id}
func handleUpsertUserInfo(users UserStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		userID := r.PathValue("user_id")
		if err := validateUserID(userID); err != nil {
			logger.Debug("invalid user id", "user_id", userID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			OutputWallet  string      `json:"output_wallet"`
			FeePercentage json.Number `json:"fee_percentage"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode user info request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.OutputWallet); err != nil {
			logger.Debug("invalid output wallet", "wallet", req.OutputWallet, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		// A well-formed base58 string is not necessarily a valid public key.
		if _, err := solanago.PublicKeyFromBase58(req.OutputWallet); err != nil {
			writeError(w, "invalid output_wallet: not a valid Solana public key", http.StatusBadRequest)
			return
		}

		feePct, err := decimal.NewFromString(req.FeePercentage.String())
		if err != nil {
			writeError(w, "invalid fee_percentage: must be a number", http.StatusBadRequest)
			return
		}
		if feePct.IsNegative() || feePct.GreaterThanOrEqual(oneHundred) {
			writeError(w, "invalid fee_percentage: must be in [0, 100)", http.StatusBadRequest)
			return
		}

		uc, err := users.UpsertUserConfig(r.Context(), db.UpsertUserConfigParams{
			UserID:        userID,
			OutputWallet:  req.OutputWallet,
			FeePercentage: feePct,
		})
		if err != nil {
			logger.Error("failed to upsert user info", "user_id", userID, "error", err)
			writeError(w, "failed to save user info", http.StatusInternalServerError)
			return
		}

		logger.Info("user info updated",
			"user_id", userID,
			"output_wallet", req.OutputWallet,
			"fee_percentage", feePct.String(),
		)
		writeJSON(w, userInfoToResponse(uc), http.StatusOK)
	})
}

// handleGetUserInfo returns a handler that retrieves a user's payout
// configuration.
// GET /user_info/{user_id}
func handleGetUserInfo(users UserStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		if err := validateUserID(userID); err != nil {
			logger.Debug("invalid user id", "user_id", userID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		uc, err := users.GetUserConfig(r.Context(), userID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "user not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get user info", "user_id", userID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, userInfoToResponse(uc), http.StatusOK)
	})
}

func userInfoToResponse(uc *db.UserConfig) userInfoResponse {
	resp := userInfoResponse{
		UserID:       uc.UserID,
		OutputWallet: uc.OutputWallet,
	}
	if uc.FeePercentage != nil {
		s := uc.FeePercentage.String()
		resp.FeePercentage = &s
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	// Validate against Solana base58 format
	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// validateUserID validates a user identifier.
func validateUserID(userID string) error {
	if userID == "" {
		return errorf("user_id is required")
	}

	if len(userID) > maxUserIDLength {
		return errorf("user_id too long: maximum length is %d characters", maxUserIDLength)
	}

	for _, r := range userID {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in user_id: control characters not allowed")
		}
	}

	return nil
}

// errorf creates a validation error with a formatted message.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

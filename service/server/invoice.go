package server

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// buildSolanaPayURL creates a Solana Pay-compatible URL for a deposit.
// Format: solana:{recipient}?amount={amount}&label={label}&message={message}
func buildSolanaPayURL(recipient string, amount decimal.Decimal) string {
	params := url.Values{}
	params.Set("amount", amount.StringFixed(9))
	params.Set("label", "SolPay Gateway")
	params.Set("message", "Payment deposit")

	return fmt.Sprintf("solana:%s?%s", recipient, params.Encode())
}

// generateQRCode creates a QR code image from a payment URL and returns it as base64-encoded PNG.
func generateQRCode(data string) (string, error) {
	// Generate QR code with medium error correction
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	// Encode as PNG (256x256 pixels)
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}

	// Return base64-encoded PNG for easy embedding in JSON/HTML
	return base64.StdEncoding.EncodeToString(png), nil
}

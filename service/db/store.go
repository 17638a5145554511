package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// PaymentStatus values for the payments table.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Payment represents a custodial payment in our system.
// The payment ID doubles as the deposit address; the row holds the encoded
// private key controlling that address.
type Payment struct {
	PaymentID     string
	WalletAddress string
	SolAmount     decimal.Decimal
	Status        string
	UserID        string
	PrivateKey    string
	FundsSent     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreatePaymentParams contains the parameters for creating a payment.
type CreatePaymentParams struct {
	PaymentID     string
	WalletAddress string
	SolAmount     decimal.Decimal
	UserID        string
	PrivateKey    string
}

// UserConfig holds per-user payout configuration. It is owned by an external
// account-management process; the core treats it as read-mostly.
type UserConfig struct {
	UserID        string
	OutputWallet  *string
	FeePercentage *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UpsertUserConfigParams contains the parameters for upserting user configuration.
type UpsertUserConfigParams struct {
	UserID        string
	OutputWallet  string
	FeePercentage decimal.Decimal
}

const paymentColumns = `payment_id, wallet_address, sol_amount, status, user_id, private_key, funds_sent, created_at, updated_at`

// CreatePayment inserts a new payment row with status=pending and funds_sent=false.
func (s *Store) CreatePayment(ctx context.Context, params CreatePaymentParams) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO payments (payment_id, wallet_address, sol_amount, status, user_id, private_key, funds_sent)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING `+paymentColumns,
		params.PaymentID,
		params.WalletAddress,
		numericFromDecimal(params.SolAmount),
		StatusPending,
		params.UserID,
		params.PrivateKey,
	)
	return scanPayment(row)
}

// GetPayment retrieves a payment by its ID.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE payment_id = $1`,
		paymentID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// ListPayments retrieves payments ordered by creation time, newest first.
func (s *Store) ListPayments(ctx context.Context, limit, offset int32) ([]*Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkCompleted transitions a payment from pending to completed.
// The update is conditional on the current status so the transition happens
// at most once. Returns true if this call performed the transition.
func (s *Store) MarkCompleted(ctx context.Context, paymentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET status = $1, updated_at = now()
		WHERE payment_id = $2 AND status = $3`,
		StatusCompleted, paymentID, StatusPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFundsSent transitions funds_sent from false to true.
// The conditional WHERE clause is the optimistic-concurrency guard against
// double forwarding: only one caller can ever win this update.
// Returns true if this call performed the transition.
func (s *Store) MarkFundsSent(ctx context.Context, paymentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET funds_sent = TRUE, updated_at = now()
		WHERE payment_id = $1 AND funds_sent = FALSE`,
		paymentID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetUserConfig retrieves a user's payout configuration.
func (s *Store) GetUserConfig(ctx context.Context, userID string) (*UserConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, output_wallet, fee_percentage, created_at, updated_at
		FROM user_info
		WHERE user_id = $1`,
		userID,
	)

	var (
		uc        UserConfig
		wallet    pgtype.Text
		feePct    pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&uc.UserID, &wallet, &feePct, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	uc.OutputWallet = stringPtrFromPgtext(wallet)
	uc.FeePercentage = decimalPtrFromNumeric(feePct)
	uc.CreatedAt = createdAt.Time
	uc.UpdatedAt = updatedAt.Time
	return &uc, nil
}

// UpsertUserConfig creates or updates a user's payout configuration.
func (s *Store) UpsertUserConfig(ctx context.Context, params UpsertUserConfigParams) (*UserConfig, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_info (user_id, output_wallet, fee_percentage)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET output_wallet = EXCLUDED.output_wallet,
		    fee_percentage = EXCLUDED.fee_percentage,
		    updated_at = now()
		RETURNING user_id, output_wallet, fee_percentage, created_at, updated_at`,
		params.UserID,
		params.OutputWallet,
		numericFromDecimal(params.FeePercentage),
	)

	var (
		uc        UserConfig
		wallet    pgtype.Text
		feePct    pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&uc.UserID, &wallet, &feePct, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	uc.OutputWallet = stringPtrFromPgtext(wallet)
	uc.FeePercentage = decimalPtrFromNumeric(feePct)
	uc.CreatedAt = createdAt.Time
	uc.UpdatedAt = updatedAt.Time
	return &uc, nil
}

// Helper functions to convert between pgx types and domain types

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p         Payment
		solAmount pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&p.PaymentID,
		&p.WalletAddress,
		&solAmount,
		&p.Status,
		&p.UserID,
		&p.PrivateKey,
		&p.FundsSent,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SolAmount = decimalFromNumeric(solAmount)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalPtrFromNumeric(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid || t.String == "" {
		return nil
	}
	return &t.String
}

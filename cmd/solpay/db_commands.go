package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/solpay/gateway/service/db"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(c *cli.Context) error {
			dbURL, err := requireDatabaseURL(c)
			if err != nil {
				return err
			}

			if err := db.Migrate(context.Background(), dbURL); err != nil {
				return err
			}

			fmt.Println("migrations applied")
			return nil
		},
	}
}

func listPaymentsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-payments",
		Usage:   "List payments, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of payments to show",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of payments to skip",
			},
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Filter by status (pending, completed)",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			payments, err := store.ListPayments(context.Background(), int32(c.Int("limit")), int32(c.Int("offset")))
			if err != nil {
				return fmt.Errorf("failed to list payments: %w", err)
			}

			// Filter by status if specified
			statusFilter := c.String("status")
			if statusFilter != "" {
				filtered := make([]*db.Payment, 0)
				for _, p := range payments {
					if p.Status == statusFilter {
						filtered = append(filtered, p)
					}
				}
				payments = filtered
			}

			if c.Bool("json") {
				return outputJSON(paymentsToOutput(payments))
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PAYMENT ID\tSOL AMOUNT\tSTATUS\tFUNDS SENT\tUSER\tCREATED")
			for _, p := range payments {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
					p.PaymentID,
					p.SolAmount.String(),
					p.Status,
					p.FundsSent,
					p.UserID,
					p.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d payments\n", len(payments))
			return nil
		},
	}
}

func getPaymentCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-payment",
		Usage:     "Get payment details",
		Aliases:   []string{"get"},
		ArgsUsage: "<payment_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: payment ID")
			}

			paymentID := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			p, err := store.GetPayment(context.Background(), paymentID)
			if err != nil {
				return fmt.Errorf("failed to get payment: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(paymentToOutput(p))
			}

			fmt.Printf("Payment ID:      %s\n", p.PaymentID)
			fmt.Printf("Deposit Address: %s\n", p.WalletAddress)
			fmt.Printf("SOL Amount:      %s\n", p.SolAmount.String())
			fmt.Printf("Status:          %s\n", p.Status)
			fmt.Printf("Funds Sent:      %t\n", p.FundsSent)
			fmt.Printf("User:            %s\n", p.UserID)
			fmt.Printf("Created:         %s\n", p.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Updated:         %s\n", p.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

// paymentOutput is the JSON shape for CLI output. The custodial private key
// is deliberately omitted.
type paymentOutput struct {
	PaymentID     string    `json:"payment_id"`
	WalletAddress string    `json:"wallet_address"`
	SolAmount     string    `json:"sol_amount"`
	Status        string    `json:"status"`
	FundsSent     bool      `json:"funds_sent"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func paymentToOutput(p *db.Payment) paymentOutput {
	return paymentOutput{
		PaymentID:     p.PaymentID,
		WalletAddress: p.WalletAddress,
		SolAmount:     p.SolAmount.String(),
		Status:        p.Status,
		FundsSent:     p.FundsSent,
		UserID:        p.UserID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func paymentsToOutput(payments []*db.Payment) []paymentOutput {
	out := make([]paymentOutput, len(payments))
	for i, p := range payments {
		out[i] = paymentToOutput(p)
	}
	return out
}

func requireDatabaseURL(c *cli.Context) (string, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return "", fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return dbURL, nil
}

// getStore creates a database store from global flags.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL, err := requireDatabaseURL(c)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// outputJSON prints a value as indented JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

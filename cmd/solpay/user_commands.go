package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/urfave/cli/v2"
)

func setUserCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a user's payout wallet and fee percentage",
		ArgsUsage: "<user_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output-wallet",
				Aliases:  []string{"w"},
				Usage:    "Solana address that receives forwarded funds",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "fee-percentage",
				Aliases: []string{"f"},
				Usage:   "Service fee percentage in [0, 100)",
				Value:   "2.0",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: user ID")
			}
			userID := c.Args().First()

			feePct, err := decimal.NewFromString(c.String("fee-percentage"))
			if err != nil {
				return fmt.Errorf("invalid fee-percentage: %w", err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			uc, err := store.UpsertUserConfig(context.Background(), db.UpsertUserConfigParams{
				UserID:        userID,
				OutputWallet:  c.String("output-wallet"),
				FeePercentage: feePct,
			})
			if err != nil {
				return fmt.Errorf("failed to save user config: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(userConfigToOutput(uc))
			}

			fmt.Printf("User %s updated\n", uc.UserID)
			printUserConfig(uc)
			return nil
		},
	}
}

func getUserCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a user's payout configuration",
		ArgsUsage: "<user_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: user ID")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			uc, err := store.GetUserConfig(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get user config: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(userConfigToOutput(uc))
			}

			printUserConfig(uc)
			return nil
		},
	}
}

type userConfigOutput struct {
	UserID        string    `json:"user_id"`
	OutputWallet  *string   `json:"output_wallet"`
	FeePercentage *string   `json:"fee_percentage"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func userConfigToOutput(uc *db.UserConfig) userConfigOutput {
	out := userConfigOutput{
		UserID:       uc.UserID,
		OutputWallet: uc.OutputWallet,
		CreatedAt:    uc.CreatedAt,
		UpdatedAt:    uc.UpdatedAt,
	}
	if uc.FeePercentage != nil {
		s := uc.FeePercentage.String()
		out.FeePercentage = &s
	}
	return out
}

func printUserConfig(uc *db.UserConfig) {
	fmt.Printf("User ID:        %s\n", uc.UserID)
	fmt.Printf("Output Wallet:  %s\n", formatOptional(uc.OutputWallet))
	feePct := "(default)"
	if uc.FeePercentage != nil {
		feePct = uc.FeePercentage.String()
	}
	fmt.Printf("Fee Percentage: %s\n", feePct)
	fmt.Printf("Updated:        %s\n", uc.UpdatedAt.Format(time.RFC3339))
}

func formatOptional(s *string) string {
	if s != nil && *s != "" {
		return *s
	}
	return "(unset)"
}

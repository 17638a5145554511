package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/client"
	"github.com/urfave/cli/v2"
)

func createPaymentCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new payment and print its deposit address",
		ArgsUsage: "<usd_amount> <user_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires two arguments: USD amount and user ID")
			}

			usdAmount, err := decimal.NewFromString(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid USD amount: %w", err)
			}
			userID := c.Args().Get(1)

			gw := getGatewayClient(c)
			p, err := gw.CreatePayment(context.Background(), usdAmount, userID)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(p)
			}

			fmt.Printf("Payment ID:      %s\n", p.PaymentID)
			fmt.Printf("Deposit Address: %s\n", p.WalletAddress)
			fmt.Printf("SOL Amount:      %s\n", p.SolAmount.String())
			fmt.Printf("Payment URL:     %s\n", p.PaymentURL)
			return nil
		},
	}
}

func checkPaymentCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Run a status check on a payment",
		ArgsUsage: "<payment_id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: payment ID")
			}

			gw := getGatewayClient(c)
			status, err := gw.CheckPayment(context.Background(), c.Args().First())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(status)
			}

			printStatus(status)
			return nil
		},
	}
}

func awaitPaymentCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Poll a payment until its funds have been forwarded",
		ArgsUsage: "<payment_id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Poll interval",
				Value:   5 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Give up after this duration",
				Value:   30 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: payment ID")
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			gw := getGatewayClient(c)
			status, err := gw.Await(ctx, c.Args().First(), c.Duration("interval"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(status)
			}

			printStatus(status)
			return nil
		},
	}
}

func printStatus(status *client.Status) {
	fmt.Printf("Payment ID:       %s\n", status.PaymentID)
	fmt.Printf("Status:           %s\n", status.Status)
	fmt.Printf("Payment Received: %t\n", status.PaymentReceived)
	fmt.Printf("Funds Sent:       %t\n", status.FundsSent)
}

// getGatewayClient creates an API client from global flags.
func getGatewayClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, nil)
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "solpay",
		Usage: "Solana payment gateway CLI",
		Description: `A command-line tool for managing and debugging the payment gateway.

Use this CLI to run migrations, inspect database state, manage user payout
configuration, and exercise the payment API.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listPaymentsCommand(),
					getPaymentCommand(),
				},
			},
			// User payout configuration commands
			{
				Name:  "user",
				Usage: "User payout configuration commands",
				Subcommands: []*cli.Command{
					setUserCommand(),
					getUserCommand(),
				},
			},
			// Payment commands (HTTP API)
			{
				Name:  "payment",
				Usage: "Payment commands",
				Subcommands: []*cli.Command{
					createPaymentCommand(),
					checkPaymentCommand(),
					awaitPaymentCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Payment gateway server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

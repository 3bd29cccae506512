package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"loan-payment-service/internal/adapters/analytics/clickhouse"
	httphandler "loan-payment-service/internal/adapters/http"
	"loan-payment-service/internal/client"
	"loan-payment-service/internal/config"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	var serverURL, token, configPath string
	api := func() *client.Client { return client.New(serverURL, token) }

	rootCmd := &cobra.Command{
		Use:           "loanctl",
		Short:         "Command line client for the loan service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("LOANCTL_SERVER", "http://localhost:8080"), "loan service base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("LOANCTL_TOKEN"), "bearer token for /api/v1")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "config file, used by report commands")

	loanCmd := &cobra.Command{Use: "loan", Short: "Manage loans"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a loan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, _ := cmd.Flags().GetString("principal")
			term, _ := cmd.Flags().GetInt("term")
			amount, err := decimal.NewFromString(principal)
			if err != nil {
				return fmt.Errorf("invalid principal %q: %w", principal, err)
			}
			loan, err := api().CreateLoan(cmd.Context(), amount, term)
			if err != nil {
				return err
			}
			okColor.Printf("✅ loan %s created\n", loan.ID)
			printLoan(loan)
			return nil
		},
	}
	createCmd.Flags().String("principal", "", "loan principal, e.g. 1000.00")
	createCmd.Flags().Int("term", 12, "term in months")
	_ = createCmd.MarkFlagRequired("principal")

	getCmd := &cobra.Command{
		Use:   "get [loan-id]",
		Short: "Show a loan and its outstanding balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := api().GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLoan(loan)
			return nil
		},
	}

	statementCmd := &cobra.Command{
		Use:   "statement [loan-id]",
		Short: "Show a loan with its payment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := api()
			loan, err := c.GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			payments, err := c.ListPayments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLoan(loan)
			fmt.Println()
			return printPayments(payments)
		},
	}
	loanCmd.AddCommand(createCmd, getCmd, statementCmd)

	payCmd := &cobra.Command{
		Use:   "pay [loan-id] [amount]",
		Short: "Apply a payment to a loan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			c := api()
			payment, err := c.Pay(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			okColor.Printf("✅ payment %s accepted\n", payment.ID)
			loan, err := c.GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLoan(loan)
			return nil
		},
	}

	paymentsCmd := &cobra.Command{
		Use:   "payments [loan-id]",
		Short: "List the payments of a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payments, err := api().ListPayments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPayments(payments)
		},
	}

	reportCmd := &cobra.Command{Use: "report", Short: "Reports from the ClickHouse audit store"}
	settledCmd := &cobra.Command{
		Use:   "settled",
		Short: "Most recently settled loans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sink, err := clickhouse.Open(cmd.Context(), clickhouse.Config(cfg.ClickHouse))
			if err != nil {
				return err
			}
			defer sink.Close()

			rows, err := sink.SettledLoans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "LOAN ID\tPRINCIPAL\tPAYMENTS\tSETTLED AT")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.LoanID, r.Principal.StringFixed(2), r.PaymentCount, r.SettledAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	settledCmd.Flags().Int("limit", 20, "number of loans to show")
	reportCmd.AddCommand(settledCmd)

	rootCmd.AddCommand(loanCmd, payCmd, paymentsCmd, reportCmd)
	if err := rootCmd.Execute(); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			errColor.Fprintf(os.Stderr, "❌ %s: %s\n", apiErr.Kind, apiErr.Message)
		} else {
			errColor.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func printLoan(l *httphandler.LoanResponse) {
	status := okColor.Sprint(l.Status)
	if l.Status == "ACTIVE" {
		status = warnColor.Sprint(l.Status)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", l.ID)
	fmt.Fprintf(w, "Principal:\t%s\n", l.Principal)
	fmt.Fprintf(w, "Term:\t%s months\n", strconv.Itoa(l.TermMonths))
	fmt.Fprintf(w, "Status:\t%s\n", status)
	if l.OutstandingBalance != nil {
		fmt.Fprintf(w, "Outstanding:\t%s\n", *l.OutstandingBalance)
	}
	fmt.Fprintf(w, "Created:\t%s\n", l.CreatedAt.Format(time.RFC3339))
	if l.SettledAt != nil {
		fmt.Fprintf(w, "Settled:\t%s\n", l.SettledAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func printPayments(payments []httphandler.PaymentResponse) error {
	if len(payments) == 0 {
		warnColor.Println("no payments")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PAYMENT ID\tAMOUNT\tPAID AT")
	for _, p := range payments {
		amount := "-"
		if p.Amount != nil {
			amount = *p.Amount
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, amount, p.PaidAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

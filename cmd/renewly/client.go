package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/store"
)

var (
	clientID     string
	clientName   string
	clientEmail  string
	clientMobile string
	clientStart  string
	clientExpiry string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Client record commands",
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a client record to the store",
	RunE:  runClientAdd,
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List client records",
	RunE:  runClientList,
}

func init() {
	clientAddCmd.Flags().StringVar(&clientID, "id", "", "Client ID (required)")
	clientAddCmd.Flags().StringVar(&clientName, "name", "", "Client name (required)")
	clientAddCmd.Flags().StringVar(&clientEmail, "email", "", "Client email (required)")
	clientAddCmd.Flags().StringVar(&clientMobile, "mobile", "", "Client mobile number")
	clientAddCmd.Flags().StringVar(&clientStart, "start", "", "Subscription start date (YYYY-MM-DD)")
	clientAddCmd.Flags().StringVar(&clientExpiry, "expiry", "", "Subscription expiry date (YYYY-MM-DD, required)")
	clientAddCmd.MarkFlagRequired("id")
	clientAddCmd.MarkFlagRequired("name")
	clientAddCmd.MarkFlagRequired("email")
	clientAddCmd.MarkFlagRequired("expiry")

	clientCmd.AddCommand(clientAddCmd, clientListCmd)
	rootCmd.AddCommand(clientCmd)
}

func runClientAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open client store: %w", err)
	}
	defer st.Close()

	rec := &client.Record{
		ClientID:           clientID,
		Name:               clientName,
		Email:              clientEmail,
		Mobile:             clientMobile,
		StartDate:          clientStart,
		ExpiryDate:         clientExpiry,
		SubscriptionStatus: client.StatusActive,
		PaymentStatus:      client.PaymentPaid,
	}
	rec.Normalize()

	if problems := rec.Validate(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("  invalid: %s\n", p)
		}
		return fmt.Errorf("record failed validation")
	}

	row, err := st.Append(context.Background(), rec)
	if err != nil {
		return fmt.Errorf("failed to add client: %w", err)
	}

	fmt.Printf("Client %s added at row %d\n", rec.ClientID, row)
	return nil
}

func runClientList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open client store: %w", err)
	}
	defer st.Close()

	records, err := st.FetchAll(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch clients: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No client records")
		return nil
	}

	fmt.Printf("%-4s %-12s %-24s %-28s %-12s %-10s %-14s\n", "ROW", "ID", "NAME", "EMAIL", "EXPIRY", "REMINDED", "RESPONSE")
	for _, rec := range records {
		fmt.Printf("%-4d %-12s %-24s %-28s %-12s %-10s %-14s\n",
			rec.RowIndex, rec.ClientID, rec.Name, rec.Email,
			rec.ExpiryDate, rec.ReminderSent, rec.Response)
	}

	return nil
}

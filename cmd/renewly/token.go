package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/renewly/internal/token"
)

var (
	tokenClientID string
	tokenExpiry   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Reminder token commands",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Inspect a reminder token",
	Long: `Split a reminder token into its identifier and signature parts.
With --client-id and --expiry (and a config file for the secret key),
also verify the signature.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenInspect,
}

func init() {
	tokenInspectCmd.Flags().StringVar(&tokenClientID, "client-id", "", "Client ID to verify the signature against")
	tokenInspectCmd.Flags().StringVar(&tokenExpiry, "expiry", "", "Subscription expiry date to verify the signature against")

	tokenCmd.AddCommand(tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenInspect(cmd *cobra.Command, args []string) error {
	tok := args[0]

	id, sig, ok := token.Inspect(tok)
	if !ok {
		return fmt.Errorf("token does not have the <id>.<signature> structure")
	}

	fmt.Printf("Token structure: ok\n")
	fmt.Printf("  ID:        %s\n", id)
	fmt.Printf("  Signature: %s (%d hex chars)\n", sig, len(sig))

	if tokenClientID == "" && tokenExpiry == "" {
		return nil
	}
	if tokenClientID == "" || tokenExpiry == "" {
		return fmt.Errorf("--client-id and --expiry must be given together")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine := token.NewEngine(token.Config{
		SecretKey:       cfg.Security.SecretKey,
		SignatureLength: cfg.Reminder.SignatureLength,
		ExpiryDays:      cfg.Reminder.TokenExpiryDays,
	})

	if engine.VerifySignature(tok, tokenClientID, tokenExpiry) {
		fmt.Printf("  Signature: valid for client %s\n", tokenClientID)
		return nil
	}
	return fmt.Errorf("signature does not match client %s with expiry %s", tokenClientID, tokenExpiry)
}

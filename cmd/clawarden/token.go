package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/clawarden/clawarden-go/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the forge API token in the OS keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the forge token in the OS keychain",
	RunE:  runTokenSet,
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored forge token",
	RunE:  runTokenClear,
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	fmt.Print("Forge token (input hidden): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return fmt.Errorf("empty token")
	}

	if err := config.NewKeyringManager(logger).SaveForgeToken(token); err != nil {
		return err
	}
	fmt.Println("✓ Token stored in OS keychain")
	return nil
}

func runTokenClear(cmd *cobra.Command, args []string) error {
	if err := config.NewKeyringManager(logger).DeleteForgeToken(); err != nil {
		return err
	}
	fmt.Println("✓ Token removed from OS keychain")
	return nil
}

package main

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var agreementsCmd = &cobra.Command{
	Use:   "agreements",
	Short: "Agreement helpers",
}

var agreementsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the agreement signing page in the browser",
	RunE:  runAgreementsOpen,
}

func init() {
	agreementsCmd.AddCommand(agreementsOpenCmd)
}

func runAgreementsOpen(cmd *cobra.Command, args []string) error {
	if cfg.Agreements.SigningURL == "" {
		return fmt.Errorf("agreements.signing_url is not configured")
	}
	return browser.OpenURL(cfg.Agreements.SigningURL)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/clawarden/clawarden-go/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".clawarden", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Printf("✓ Wrote %s\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  1. clawarden token set")
	fmt.Println("  2. Edit the config: watched repositories, webhook secret, public URL")
	fmt.Println("  3. clawarden hook install")
	fmt.Println("  4. clawarden serve")
	return nil
}

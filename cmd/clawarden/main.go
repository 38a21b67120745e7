package main

import (
	"fmt"
	"os"

	"github.com/clawarden/clawarden-go/internal/config"
	"github.com/clawarden/clawarden-go/internal/forge"
	"github.com/clawarden/clawarden-go/internal/signatures"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clawarden",
	Short: "CLAWarden - CLA compliance verification for watched repositories",
	Long: `CLAWarden verifies that every commit author and committer on a push or
pull request has signed the applicable Contributor License Agreement, and
reports the aggregate result to the forge's commit-status API.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		// Secrets may live in a .env next to the working directory.
		if err := config.NewEnvLoader().Load(); err != nil {
			logger.WithError(err).Warn("could not load .env")
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("failed to load config, using defaults")
			cfg = config.Default()
		}

		// Keychain token wins over file/env when present.
		if token, err := config.NewKeyringManager(logger).GetForgeToken(); err == nil {
			cfg.Forge.Token = token
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .clawarden/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`CLAWarden {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(agreementsCmd)
}

// newForgeClient builds the authenticated forge client from configuration.
func newForgeClient() (*forge.Client, error) {
	if cfg.Forge.Token == "" {
		return nil, fmt.Errorf("no forge token configured (run 'clawarden token set' or set GITHUB_TOKEN)")
	}
	return forge.NewClient(cfg.Forge.Token, cfg.Forge.RateLimit, logger), nil
}

// newChecker builds the configured signature store.
func newChecker() (signatures.Checker, func() error, error) {
	switch cfg.Signatures.Type {
	case "postgres":
		c, err := signatures.NewPostgresChecker(cfg.Signatures.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "sqlite":
		c, err := signatures.NewSQLiteChecker(cfg.Signatures.LocalPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown signatures.type %q", cfg.Signatures.Type)
	}
}

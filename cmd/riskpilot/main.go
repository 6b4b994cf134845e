package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/config"
	"github.com/riskpilot/riskpilot/internal/logging"
	"github.com/riskpilot/riskpilot/internal/storage"
)

const version = "0.1.0"

// needsStore marks commands that open the database
const needsStore = "needs-store"

var (
	cfgFile string
	dbPath  string
	actor   string

	appCfg *config.Config
	logger *slog.Logger
	store  storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "riskpilot",
	Short: "Pension risk copilot with a human approval gate",
	Long: `riskpilot answers questions about a pension fund's risk position, runs
stress tests and proposes hedge changes. Every hedge proposal is audited
against the fund's limits. Proposals that breach a limit are held for a
human reviewer instead of being applied.

Every step of every turn is written to an audit trail in .riskpilot/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appCfg = cfg

		logger, err = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return err
		}

		if cmd.Annotations[needsStore] != "true" {
			return nil
		}
		// A failed command skips PersistentPostRun
		closeStore()
		dbPath = resolveDBPath(dbPath, cfg.Storage.Path)
		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: dbPath})
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", dbPath, err)
		}
		logger.Debug("database opened", "path", dbPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeStore()
	},
}

func closeStore() {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
	store = nil
}

// resolveDBPath prefers the --db flag, then a configured non-default path,
// then discovery of .riskpilot/*.db in the working directory.
func resolveDBPath(flag, configured string) string {
	explicit := flag
	if explicit == "" && configured != storage.DefaultPath {
		explicit = configured
	}
	return storage.ResolvePath(explicit)
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "user"
}

func storeCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[needsStore] = "true"
	return cmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (YAML); RISKPILOT_* env vars override it")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: discover .riskpilot/*.db)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "Name recorded on turns and approvals")
	rootCmd.Version = version
}

func main() {
	err := rootCmd.Execute()
	closeStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

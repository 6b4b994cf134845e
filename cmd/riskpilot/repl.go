package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riskpilot/riskpilot/internal/repl"
	"github.com/riskpilot/riskpilot/internal/storage"
)

var replCmd = storeCommand(&cobra.Command{
	Use:   "repl",
	Short: "Start the interactive copilot shell",
	Long: `Start an interactive shell for the copilot.

Plain text runs a turn. Slash commands list and resolve pending approvals,
show limits, the risk context, the last trace and the audit trail.

Type /help in the shell for available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg, store, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		if a.file != nil && appCfg.Context.Watch {
			go func() {
				if err := a.file.Watch(ctx); err != nil {
					logger.Warn("risk context watch stopped", "error", err)
				}
			}()
		}

		r, err := repl.New(&repl.Config{
			Copilot:     a.gate,
			Context:     a.context,
			HedgeLimits: a.auditor.Limits(),
			Events:      store,
			Actor:       actor,
			HistoryFile: historyFile(dbPath),
		})
		if err != nil {
			return fmt.Errorf("failed to create REPL: %w", err)
		}
		return r.Run(ctx)
	},
})

// historyFile keeps shell history beside the database, or in the home
// directory when the database is not in a project data directory.
func historyFile(db string) string {
	if root, err := storage.GetProjectRoot(db); err == nil {
		return filepath.Join(root, storage.DataDir, "history")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".riskpilot_history")
	}
	return ""
}

func init() {
	rootCmd.AddCommand(replCmd)
}

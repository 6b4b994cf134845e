package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/riskpilot/riskpilot/internal/api"
	"github.com/riskpilot/riskpilot/internal/storage"
)

var serveCmd = storeCommand(&cobra.Command{
	Use:   "serve",
	Short: "Serve the copilot over HTTP",
	Long: `Start the HTTP API.

The server holds an exclusive lock on the database, runs the event retention
cleanup in the background and, with context.watch enabled, reloads the risk
context whenever its file changes. Stop it with Ctrl+C.

Routes:
  POST /v1/ask                       Run a turn
  GET  /v1/approvals                 List approvals (?status=pending|approved|rejected|all)
  POST /v1/approvals/{id}/approve    Approve a held proposal
  POST /v1/approvals/{id}/reject     Reject a held proposal
  GET  /v1/runs, /v1/runs/{id}       Turn history
  GET  /v1/events                    Audit trail
  GET  /v1/limits, /v1/context       Limit monitor and risk context
  GET  /v1/scenarios                 Preset stress scenarios
  POST /v1/scenarios/run, /v1/stress Run stress scenarios
  GET  /v1/metrics                   Loop and cost statistics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = appCfg.Server.Addr
		}

		lockPath, err := storage.AcquireExclusiveLock(dbPath, "riskpilot serve", version)
		if err != nil {
			return err
		}
		defer func() {
			if err := storage.ReleaseExclusiveLock(lockPath); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to release exclusive lock: %v\n", err)
			}
		}()

		a, err := newApp(appCfg, store, logger)
		if err != nil {
			return err
		}
		srv, err := api.New(&api.Config{
			Copilot: a.gate,
			Store:   store,
			Context: a.context,
			Auditor: a.auditor,
			Global:  appCfg.Compliance.Global,
			Metrics: a.metrics,
			Cost:    a.tracker,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s riskpilot %s listening on %s\n", green("✓"), version, cyan(addr))
		fmt.Fprintf(cmd.OutOrStdout(), "  Approval policy: %s\n", a.gate.Policy())
		if a.model != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  Model: %s\n", a.model)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  Model: none (deterministic mode)\n")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Press Ctrl+C to stop\n\n")

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, addr)
		})
		g.Go(func() error {
			storage.EventCleanupLoop(ctx, store, appCfg.Events, logger)
			return nil
		})
		if a.file != nil && appCfg.Context.Watch {
			g.Go(func() error {
				return a.file.Watch(ctx)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Server stopped\n", green("✓"))
		return nil
	},
})

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

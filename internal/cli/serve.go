package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/worker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Listen port (overrides config)")
	serveCmd.Flags().Bool("no-worker", false, "Do not start the background worker")
	serveCmd.Flags().Bool("quiet", false, "Skip the startup banner")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background worker",
	Long: `Start the HTTP API. Unless disabled in [worker] or with --no-worker, the
background worker also runs: it records the audit trail from bus events and
runs the SLA and renewal sweeps on their configured intervals.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	quiet, _ := cmd.Flags().GetBool("quiet")

	slog.Info("starting heron",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"attachments", cfg.Attachments.Backend,
	)
	if cfg.Tracing.Enabled {
		slog.Info("tracing uses the global OpenTelemetry provider", "service_name", cfg.Tracing.ServiceName)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var bg *worker.Worker
	if cfg.Worker.Enabled && !noWorker {
		bg = worker.NewWorker(a.bus, a.repo, a.tracker, a.renewals)
		err := bg.Start(worker.Config{
			SLASweepInterval:     cfg.Worker.SLASweepInterval,
			RenewalSweepInterval: cfg.Worker.RenewalSweepInterval,
		})
		if err != nil {
			slog.Error("failed to start worker", "error", err)
			bg = nil
		} else {
			slog.Info("worker started",
				"sla_sweep_interval", cfg.Worker.SLASweepInterval,
				"renewal_sweep_interval", cfg.Worker.RenewalSweepInterval,
			)
		}
	}

	srv := api.NewServer(cfg.Server, a.services(), build.Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("heron is ready", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if !quiet {
		printBanner(cmd.OutOrStdout(), cfg, build.Version)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// After the server, so events from in-flight requests still reach the audit trail.
	if bg != nil {
		if err := bg.Stop(); err != nil {
			slog.Error("failed to stop worker", "error", err)
		}
	}

	slog.Info("heron shutdown complete")
	return serveErr
}

func printBanner(w io.Writer, cfg *domain.Config, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  ╔═══════════════════════════════════════════╗")
	fmt.Fprintln(w, "  ║                  HERON                    ║")
	fmt.Fprintln(w, "  ║      Claim Intake and Fraud Scoring       ║")
	fmt.Fprintln(w, "  ╚═══════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Version:  %s\n", version)
	fmt.Fprintf(w, "  Tier:     %s\n", cfg.Tier)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	fmt.Fprintln(w, "    POST /claims              - Submit a claim (multipart)")
	fmt.Fprintln(w, "    GET  /claims              - List claims")
	fmt.Fprintln(w, "    POST /claims/{id}/decision - Approve, reject or pay a claim")
	fmt.Fprintln(w, "    POST /eligibility         - Check claim eligibility")
	fmt.Fprintln(w, "    POST /policies            - Apply for a policy")
	fmt.Fprintln(w, "    GET  /underwriting        - Underwriter queue")
	fmt.Fprintln(w, "    GET  /sla                 - SLA summary")
	fmt.Fprintln(w, "    POST /renewals            - Schedule renewal reminders")
	fmt.Fprintln(w, "    GET  /notifications       - Notifications for the caller")
	fmt.Fprintln(w, "    GET  /workflows           - Workflow definitions")
	fmt.Fprintln(w, "    GET  /rules               - List fraud rules")
	fmt.Fprintln(w, "    POST /rules/reload        - Hot-reload fraud rules")
	fmt.Fprintln(w, "    GET  /health              - Health check")
	fmt.Fprintln(w, "    GET  /metrics             - Prometheus metrics")
	fmt.Fprintln(w)
}

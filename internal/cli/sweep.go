package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(slaCmd)
	slaCmd.AddCommand(slaSweepCmd)

	rootCmd.AddCommand(renewalsCmd)
	renewalsCmd.AddCommand(renewalsSweepCmd)
}

var slaCmd = &cobra.Command{
	Use:   "sla",
	Short: "Inspect and maintain SLA records",
}

var renewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "Maintain renewal reminders",
}

// ─── sla sweep ──────────────────────────────────────────────────────────────

var slaSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag open SLA records past their deadline",
	Long: `Run one SLA sweep: every open record whose deadline has passed is marked
breached. The worker runs the same sweep on [worker].sla_sweep_interval.`,
	Args: cobra.NoArgs,
	RunE: runSLASweep,
}

func runSLASweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	flagged, err := a.tracker.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sla sweep: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Breaches flagged: %d\n", flagged)
	return nil
}

// ─── renewals sweep ─────────────────────────────────────────────────────────

var renewalsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send reminders for policies nearing expiry",
	Long: `Run one renewal sweep: active policies expiring within [renewals].window get a
reminder notification unless one was sent within [renewals].dedupe_window.`,
	Args: cobra.NoArgs,
	RunE: runRenewalsSweep,
}

func runRenewalsSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.renewals.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("renewal sweep: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Policies due:   %d\n", result.PoliciesDue)
	fmt.Fprintf(cmd.OutOrStdout(), "Reminders sent: %d\n", result.RemindersSent)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/outbox"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

var (
	outboxTenant string
	outboxJSON   bool
	backlogType  string
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and push the outbox of dirty records",
}

var outboxBacklogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Show pending push work per entity type",
	Args:  cobra.NoArgs,
	RunE:  runOutboxBacklog,
}

var outboxMarkCmd = &cobra.Command{
	Use:   "mark <entity-type> <entity-id>",
	Short: "Mark a record dirty so the next drain pushes it",
	Args:  cobra.ExactArgs(2),
	RunE:  runOutboxMark,
}

var outboxDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Push every dirty record to the remote store",
	Args:  cobra.NoArgs,
	RunE:  runOutboxDrain,
}

func init() {
	outboxCmd.PersistentFlags().StringVar(&outboxTenant, "tenant", "",
		"Tenant scope (backlog and drain default to all tenants)")
	outboxCmd.PersistentFlags().BoolVar(&outboxJSON, "json", false,
		"Output in JSON format")
	outboxBacklogCmd.Flags().StringVar(&backlogType, "type", "",
		"Entity type or collection to list")

	outboxCmd.AddCommand(outboxBacklogCmd)
	outboxCmd.AddCommand(outboxMarkCmd)
	outboxCmd.AddCommand(outboxDrainCmd)
}

func runOutboxBacklog(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := validateScope(outboxTenant); err != nil {
		return err
	}

	b, err := outbox.GetBacklog(cmd.Context(), a.store, outboxTenant, backlogType)
	if err != nil {
		return err
	}

	if outboxJSON {
		return printJSON(cmd.OutOrStdout(), b)
	}

	out := cmd.OutOrStdout()
	if b.Total == 0 {
		fmt.Fprintln(out, "Outbox is empty.")
		return nil
	}

	w := newTabWriter(out)
	if b.EntityType == "" {
		fmt.Fprintln(w, "ENTITY TYPE\tDIRTY")
		for _, tc := range b.ByType {
			fmt.Fprintf(w, "%s\t%d\n", tc.EntityType, tc.Count)
		}
	} else {
		fmt.Fprintln(w, "TENANT\tENTITY ID\tDIRTY SINCE\tATTEMPTS\tLAST ERROR")
		for _, it := range b.Items {
			lastErr := it.LastSyncError
			if lastErr == "" {
				lastErr = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				it.TenantID, it.EntityID, it.LastDirtyAt.Format("2006-01-02 15:04:05"), it.Attempts, lastErr)
		}
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal dirty: %d\n", b.Total)
	return nil
}

func runOutboxMark(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	tenantID, err := a.resolveTenant(outboxTenant)
	if err != nil {
		return err
	}
	kind, err := entity.Resolve(args[0])
	if err != nil {
		return err
	}
	id, err := kind.ParseKey(args[1])
	if err != nil {
		return fmt.Errorf("%s id %q: %w", kind.EntityType, args[1], err)
	}

	marker := outbox.NewMarker(a.store, 0)
	marker.MarkDirty(tenantID, kind.EntityType, id)
	if err := marker.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s %s dirty for tenant %s.\n", kind.EntityType, id, tenantID)
	return nil
}

func runOutboxDrain(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := validateScope(outboxTenant); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	drainer := outbox.NewDrainer(a.store, a.remote, a.cfg.Outbox.DrainBatch)

	var progress outbox.ProgressFunc
	if !outboxJSON {
		progress = func(entityType string, done, total int64) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %d/%d", entityType, done, total)
			if done == total {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
	}

	report, err := drainer.Drain(cmd.Context(), outboxTenant, progress)
	if err != nil {
		return fmt.Errorf("drain: %w", err)
	}

	if outboxJSON {
		return printJSON(out, report)
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "ENTITY TYPE\tTOTAL\tPUSHED\tFAILED\tSTALE")
	for _, t := range report.Types {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", t.EntityType, t.Total, t.Pushed, t.Failed, t.Stale)
	}
	w.Flush()
	fmt.Fprintf(out, "\nPushed %d, failed %d.\n", report.Pushed, report.Failed)
	for _, t := range report.Types {
		for _, e := range t.Errors {
			fmt.Fprintf(out, "  - %s: %s\n", t.EntityType, e)
		}
	}
	return nil
}

// validateScope accepts an empty tenant (all tenants) or a valid tenant ID.
func validateScope(tenantID string) error {
	if tenantID == "" {
		return nil
	}
	return tenant.Validate(tenantID)
}

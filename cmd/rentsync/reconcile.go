package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/reconcile"
)

// errNotInSync is returned by reconcile --strict when any collection is not OK.
var errNotInSync = errors.New("local and cloud are not in sync")

var (
	reconcileTenant string
	reconcileJSON   bool
	reconcileStrict bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare local and cloud record counts for a tenant",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileTenant, "tenant", "", "Tenant to check (defaults to tenant.default)")
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "Output in JSON format")
	reconcileCmd.Flags().BoolVar(&reconcileStrict, "strict", false, "Exit non-zero when any collection is not OK")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	tenantID, err := a.resolveTenant(reconcileTenant)
	if err != nil {
		return err
	}

	auditor := reconcile.NewAuditor(a.store, a.remote, a.cfg.Restore.Concurrency)
	sum, err := auditor.Run(cmd.Context(), tenantID)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if reconcileJSON {
		if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
			return err
		}
	} else {
		printSummary(cmd, sum)
	}

	if reconcileStrict && sum.HasIssues {
		return errNotInSync
	}
	return nil
}

func printSummary(cmd *cobra.Command, sum *reconcile.Summary) {
	out := cmd.OutOrStdout()
	w := newTabWriter(out)
	fmt.Fprintln(w, "COLLECTION\tLOCAL\tCLOUD\tSTATUS\tMESSAGE")
	for _, it := range sum.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			it.Key, countString(it.LocalCount), countString(it.CloudCount), it.Status, it.Message)
	}
	w.Flush()

	fmt.Fprintf(out, "\nLocal %d, cloud %d.\n", sum.TotalLocal, sum.TotalCloud)
	if sum.PermissionErrors > 0 {
		fmt.Fprintf(out, "%d collection(s) could not be read: remote access rules deny reads.\n", sum.PermissionErrors)
	}
	if !sum.HasIssues {
		fmt.Fprintln(out, "All collections in sync.")
	}
}

func countString(n *int64) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

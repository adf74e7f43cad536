package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/pkg/dedup"
)

var (
	dedupeProject   string
	dedupeThreshold float64
	dedupeDryRun    bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Detect and merge duplicate memories",
	Long: `Group near-identical memories, keep one survivor per group,
and re-point all edges at it. With --dry-run the groups are reported
without changing anything.`,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeProject, "project", "", "restrict to one project")
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "similarity threshold (default 0.85)")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "report groups without merging")
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	threshold := dedupeThreshold
	if threshold == 0 {
		threshold = rt.cfg.Dedup.Threshold
	}

	report, err := rt.service.Deduplicate(cmd.Context(), dedup.Options{
		Project:   dedupeProject,
		Threshold: threshold,
		DryRun:    dedupeDryRun,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(report.Groups) == 0 {
		fmt.Fprintln(out, "No duplicates found.")
		return nil
	}
	for _, g := range report.Groups {
		fmt.Fprintf(out, "group: keep %s, members [%s]\n", g.SurvivorID, strings.Join(g.MemberIDs, ", "))
	}
	if report.DryRun {
		fmt.Fprintf(out, "%d group(s) found (dry run, nothing changed)\n", len(report.Groups))
	} else {
		fmt.Fprintf(out, "%d group(s) merged, %d deleted, %d edge(s) rewritten\n",
			len(report.Groups), report.Deleted, report.EdgesRewritten)
	}
	return nil
}

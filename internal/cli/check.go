package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one automation check",
	Long: `Evaluate the automation rules against every open task once,
apply the resulting status changes, and print a summary.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	summary, err := rt.service.RunAutomationCheck(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evaluated: %d\n", summary.Evaluated)
	fmt.Fprintf(out, "Proposed:  %d\n", summary.Proposed)
	fmt.Fprintf(out, "Applied:   %d\n", summary.Applied)
	fmt.Fprintf(out, "Rejected:  %d\n", summary.Rejected)
	for _, d := range summary.Decisions {
		fmt.Fprintf(out, "  applied %s: %s -> %s (%s, %.2f)\n", d.TaskID, d.From, d.To, d.Rule, d.Confidence)
	}
	for _, d := range summary.Advisories {
		fmt.Fprintf(out, "  advisory %s: %s (%s)\n", d.TaskID, d.Details, d.Rule)
	}
	return nil
}

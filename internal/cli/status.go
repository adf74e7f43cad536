package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/pkg/entity"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents",
	Long:  `Show the configured data directory and per-project entity counts.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Base dir: %s\n", rt.cfg.Storage.BaseDir)

	memories := rt.index.Memories()
	tasks := rt.index.Tasks()
	fmt.Fprintf(out, "Memories: %d\n", len(memories))
	fmt.Fprintf(out, "Tasks:    %d\n", len(tasks))

	byStatus := make(map[entity.Status]int)
	for _, t := range tasks {
		byStatus[t.Status]++
	}
	for _, st := range []entity.Status{entity.StatusTodo, entity.StatusInProgress, entity.StatusBlocked, entity.StatusDone} {
		if byStatus[st] > 0 {
			fmt.Fprintf(out, "  %-12s %d\n", st, byStatus[st])
		}
	}

	projects, err := rt.store.Projects()
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		fmt.Fprintf(out, "Projects: %d\n", len(projects))
		for _, p := range projects {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}

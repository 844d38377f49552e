package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/smazurov/taskmaster/internal/config"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a task configuration without starting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := config.LoadTasks(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d tasks\n", args[0], len(tasks))
			for _, id := range slices.Sorted(maps.Keys(tasks)) {
				fmt.Fprintf(out, "    - %s\n", id)
			}
			return nil
		},
	}
}

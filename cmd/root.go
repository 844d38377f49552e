// Package cmd wires the taskmaster subcommands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/taskmaster/internal/logging"
)

// NewRootCmd builds the taskmaster command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmaster",
		Short:         "Unix process supervisor",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("verbose", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(
		CreateServerCmd(),
		CreateClientCmd(),
		CreateValidateCmd(),
		CreateVersionCmd(),
	)
	return root
}

// verbosity returns the --verbose level, or fallback when the flag was not given.
func verbosity(cmd *cobra.Command, fallback string) (string, error) {
	level, _ := cmd.Flags().GetString("verbose")
	if !cmd.Flags().Changed("verbose") {
		level = fallback
	}
	if !logging.ValidLevel(level) {
		return "", fmt.Errorf("invalid log level %q", level)
	}
	return level, nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/smazurov/taskmaster/internal/client"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/server"
)

// CreateClientCmd creates the client command.
func CreateClientCmd() *cobra.Command {
	var socketPath, command string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Control a running supervisor",
		Long:  `Starts an interactive prompt, or runs a single command with --command.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Keep the prompt clean unless asked for logs.
			level, err := verbosity(cmd, "error")
			if err != nil {
				return err
			}
			logging.Initialize(logging.Config{Level: level})

			c := client.New(client.Options{
				SocketPath: socketPath,
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
				Err:        cmd.ErrOrStderr(),
			})
			if command != "" {
				_, err := c.Exec(command)
				return err
			}
			return c.Run()
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", server.DefaultSocketPath, "Control socket path")
	cmd.Flags().StringVar(&command, "command", "", "Run one command and exit")

	return cmd
}

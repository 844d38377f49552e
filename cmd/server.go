package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/taskmaster/internal/config"
	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/server"
)

// ServerOptions are the server settings. The options file and
// TASKMASTER_* variables fill anything not given on the command line.
type ServerOptions struct {
	OptionsFile   string
	Config        string        `toml:"server.config" env:"CONFIG"`
	LogFile       string        `toml:"logging.file" env:"LOG_FILE"`
	Format        string        `toml:"server.format" env:"FORMAT"`
	Socket        string        `toml:"server.socket" env:"SOCKET"`
	AdminSocket   string        `toml:"server.admin_socket" env:"ADMIN_SOCKET"`
	WatchInterval time.Duration `toml:"server.watch_interval" env:"WATCH_INTERVAL"`
}

// CreateServerCmd creates the server command.
func CreateServerCmd() *cobra.Command {
	var opts ServerOptions

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the supervisor",
		Long: `Loads the task configuration, starts autostart tasks and serves control ` +
			`requests on a unix socket until stop-server or a terminating signal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadOptions(&opts, cmd); err != nil {
				return err
			}

			logCfg := config.LoadLoggingConfig(opts.OptionsFile)
			level, err := verbosity(cmd, logCfg.Level)
			if err != nil {
				return err
			}
			logCfg.Level = level
			if opts.LogFile != "" {
				logCfg.File = opts.LogFile
			}
			logging.Initialize(logCfg)
			defer logging.Close()

			logger := logging.GetLogger("main")
			logger.Info("Starting taskmaster", "config", opts.Config)

			srv, err := server.New(server.Options{
				ConfigPath:    opts.Config,
				SocketPath:    opts.Socket,
				AdminSocket:   opts.AdminSocket,
				Format:        opts.Format,
				WatchInterval: opts.WatchInterval,
			})
			if err != nil {
				logger.Error("Failed to start", "error", err)
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.OptionsFile, "options", "", "Options file (TOML)")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "taskmaster.toml", "Task configuration (.toml, .yml or .yaml)")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "Write logs to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Format, "format", server.FormatHuman, "Reply format (human, json, yaml)")
	cmd.Flags().StringVar(&opts.Socket, "socket", server.DefaultSocketPath, "Control socket path")
	cmd.Flags().StringVar(&opts.AdminSocket, "admin-socket", "", "Serve the admin HTTP API on this socket")
	cmd.Flags().DurationVar(&opts.WatchInterval, "watch-interval", config.DefaultPollInterval, "Configuration poll interval")

	return cmd
}

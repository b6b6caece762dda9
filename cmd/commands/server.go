package commands

import (
	"github.com/SpatiumPortae/trickle/internal/config"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/SpatiumPortae/trickle/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Server returns the root command of the file server, bound to argv.
func Server(version semver.Version, argv []string) *cobra.Command {
	// A nil slice makes cobra fall back to os.Args.
	if argv == nil {
		argv = []string{}
	}
	v := viper.New()
	serverCmd := &cobra.Command{
		Use:   "server -p PORT -d RATE",
		Short: "Serve files at a limited rate",
		Long: `The server sends any file a client requests, at most RATE bytes per second per connection.
Further settings (root, backlog, metrics_addr, verbose) are read from TRICKLE_* environment
variables or $HOME/.config/trickle/config.yml.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			return checkServerArgv(argv)
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(v); err != nil {
				return exitcode.Wrap(exitcode.Param, err)
			}
			port, err := parsePort(cmd.Flag("port").Value.String())
			if err != nil {
				return err
			}
			rate, err := parseRate(cmd.Flag("rate").Value.String())
			if err != nil {
				return err
			}
			v.Set("port", port)
			v.Set("rate", rate)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return exitcode.Wrap(exitcode.Param, err)
			}
			if err := cfg.ValidateServer(); err != nil {
				return exitcode.Wrap(exitcode.Param, err)
			}
			lgr, err := logger.New(logger.Options{Verbose: cfg.Verbose})
			if err != nil {
				return err
			}
			defer lgr.Sync()

			return server.NewServer(cfg, version, lgr).Start(cmd.Context())
		},
	}
	serverCmd.Flags().StringP("port", "p", "", "port to listen on")
	serverCmd.Flags().StringP("rate", "d", "", "maximum transfer rate in bytes per second")
	serverCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if argvErr := checkServerArgv(argv); argvErr != nil {
			return argvErr
		}
		return exitcode.Wrap(exitcode.Param, err)
	})
	serverCmd.SetArgs(argv)
	return serverCmd
}

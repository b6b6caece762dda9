package commands

import (
	"io"

	"github.com/SpatiumPortae/trickle/internal/config"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/internal/receiver"
	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Client returns the root command of the download client, bound to argv.
func Client(version semver.Version, argv []string) *cobra.Command {
	if argv == nil {
		argv = []string{}
	}
	v := viper.New()
	clientCmd := &cobra.Command{
		Use:   "client host:port/filename",
		Short: "Download a file from a trickle server",
		Long: `The client requests filename from the server at host:port and stores it under the same
name. TRICKLE_VERBOSE and TRICKLE_PROGRESS enable a log file and a progress bar.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return exitcode.New(exitcode.ParamCount, "expected 1 argument, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			if err := config.Init(v); err != nil {
				return exitcode.Wrap(exitcode.Param, err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return exitcode.Wrap(exitcode.Param, err)
			}
			lgr, err := clientLogger(cfg.Verbose)
			if err != nil {
				return exitcode.Wrap(exitcode.LocalFile, err)
			}
			defer lgr.Sync()

			var writers []io.Writer
			if cfg.Progress {
				bar := progressbar.DefaultBytes(-1, "downloading")
				defer bar.Finish()
				writers = append(writers, bar)
			}

			ctx := logger.WithLogger(cmd.Context(), lgr)
			stats, err := receiver.Download(ctx, t.host, t.port, t.filename, t.filename, writers...)
			if err != nil {
				lgr.Error("download failed", zap.Error(err))
				return err
			}
			lgr.Info("download complete", zap.String("file", t.filename), zap.Int64("bytes", stats.Bytes))
			return nil
		},
	}
	clientCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Wrap(exitcode.Param, err)
	})
	clientCmd.SetArgs(argv)
	return clientCmd
}

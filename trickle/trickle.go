// Package trickle serves and fetches single files over the rate limited transfer
// protocol without going through the command line drivers.
package trickle

import (
	"context"
	"io"
	"net"

	"github.com/SpatiumPortae/trickle/internal/config"
	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/internal/receiver"
	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/SpatiumPortae/trickle/internal/server"
)

// Serve binds port synchronously and serves files asynchronously until ctx is
// cancelled. It returns the bound address, the error from binding, and a channel
// that yields the result of serving once every connection has been reaped. The
// provided config will be merged with the default config.
func Serve(ctx context.Context, port int, cfg *Config) (net.Addr, error, chan error) {
	merged := MergeConfig(defaultConfig, cfg)
	srv := server.NewServer(config.Config{
		Port:        port,
		Rate:        merged.Rate,
		Backlog:     merged.Backlog,
		Root:        merged.Root,
		MetricsAddr: merged.MetricsAddr,
	}, semver.Current(), logger.FromContextOrNop(ctx))
	if err := srv.Listen(); err != nil {
		return nil, err, nil
	}
	errC := make(chan error, 1) // buffer channel as to not block serve.
	go func() {
		defer close(errC)
		if err := srv.Serve(ctx); err != nil {
			errC <- err
		}
	}()
	return srv.Addr(), nil, errC
}

// Receive fetches filename from host:port and writes the payload to dst.
func Receive(ctx context.Context, dst io.Writer, host string, port int, filename string) error {
	c, err := conn.Dial(ctx, host, port)
	if err != nil {
		return err
	}
	tc := conn.NewTransfer(c)
	defer tc.Close()
	_, err = receiver.Receive(ctx, tc, filename, dst)
	return err
}

package receiver

import (
	"context"
	"io"
	"os"

	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/protocol/transfer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrRemoteFileUnavailable is returned when the sender answers the request with an error frame.
var ErrRemoteFileUnavailable = errors.New("remote file unavailable")

// Stats describes a finished or aborted download.
type Stats struct {
	Chunks int
	Bytes  int64
}

// Receive requests filename over tc and writes the payload into dst, acknowledging
// every chunk before the next one is read.
func Receive(ctx context.Context, tc *conn.Transfer, filename string, dst io.Writer) (Stats, error) {
	lgr := logger.FromContextOrNop(ctx)
	var stats Stats

	if err := tc.WriteFrame(transfer.Frame{Type: transfer.Request, Filename: filename}); err != nil {
		return stats, err
	}
	lgr.Debug("request sent", zap.String("file", filename))

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		f, err := tc.ReadReply()
		if err != nil {
			return stats, errors.Wrapf(err, "awaiting chunk %d", stats.Chunks+1)
		}
		if f.Type == transfer.Unavailable {
			return stats, exitcode.Wrap(exitcode.RemoteFile, ErrRemoteFileUnavailable)
		}

		n, err := dst.Write(f.Payload)
		stats.Bytes += int64(n)
		if err != nil {
			return stats, exitcode.Wrap(exitcode.LocalFile, errors.Wrap(err, "writing payload"))
		}
		stats.Chunks++

		if err := tc.WriteFrame(transfer.Frame{Type: transfer.AckFor(f.Type)}); err != nil {
			return stats, err
		}
		if f.Type == transfer.DataLast {
			lgr.Debug("transfer complete", zap.Int("chunks", stats.Chunks), zap.Int64("bytes", stats.Bytes))
			return stats, nil
		}
	}
}

// Download fetches filename from host:port into the file at dst. The destination is
// truncated before any network activity and removed again if the download fails.
// Every writer in writers also receives the payload.
func Download(ctx context.Context, host string, port int, filename, dst string, writers ...io.Writer) (stats Stats, err error) {
	file, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return stats, exitcode.Wrap(exitcode.LocalFile, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = exitcode.Wrap(exitcode.LocalFile, cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	c, err := conn.Dial(ctx, host, port)
	if err != nil {
		return stats, err
	}
	tc := conn.NewTransfer(c)
	defer tc.Close()

	return Receive(ctx, tc, filename, io.MultiWriter(append([]io.Writer{file}, writers...)...))
}

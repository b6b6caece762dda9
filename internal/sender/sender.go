// Package sender implements the serving side of a transfer: it answers one request
// with the named file, cut into chunks that are paced and acknowledged one at a time.
package sender

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/internal/rate"
	"github.com/SpatiumPortae/trickle/protocol/transfer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrFileUnavailable is returned when the requested file could not be opened. The
// receiver has been told with an error frame.
var ErrFileUnavailable = errors.New("requested file is unavailable")

// State is the position of a sender in the transfer sequence.
type State int

const (
	AwaitingRequest State = iota
	SendingChunks
	SentError
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingRequest:
		return "AwaitingRequest"
	case SendingChunks:
		return "SendingChunks"
	case SentError:
		return "SentError"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Options configures a single transfer.
type Options struct {
	// Root is the directory requested names are resolved in. Empty opens names as given.
	Root string
	// Shaper paces the chunks. Nil sends unpaced.
	Shaper *rate.Shaper
}

// Stats describes a finished or aborted transfer.
type Stats struct {
	Filename string
	Chunks   int
	Bytes    int64
	State    State
}

// Serve reads one request from tc and sends the named file. It returns once the last
// chunk is acknowledged, the error frame is sent, or the transfer fails. The caller
// owns tc and closes it afterwards.
func Serve(ctx context.Context, tc *conn.Transfer, opts Options) (Stats, error) {
	lgr := logger.FromContextOrNop(ctx)
	stats := Stats{State: AwaitingRequest}

	req, err := tc.ReadRequest()
	if err != nil {
		return stats, errors.Wrap(err, "reading request")
	}
	stats.Filename = req.Filename
	lgr = lgr.With(zap.String("file", req.Filename))

	file, err := open(opts.Root, req.Filename)
	if err != nil {
		lgr.Debug("requested file unavailable", zap.Error(err))
		if err := tc.WriteFrame(transfer.Frame{Type: transfer.Unavailable}); err != nil {
			return stats, err
		}
		stats.State = SentError
		return stats, exitcode.Wrap(exitcode.RemoteFile, errors.Wrap(ErrFileUnavailable, err.Error()))
	}
	defer file.Close()

	stats.State = SendingChunks
	lgr.Debug("sending file")
	if err := sendChunks(ctx, tc, file, opts.Shaper, &stats); err != nil {
		return stats, err
	}
	stats.State = Done
	return stats, nil
}

// open opens name for reading. Directories count as unavailable.
func open(root, name string) (*os.File, error) {
	if name == "" {
		return nil, errors.New("empty filename")
	}
	p := name
	if root != "" {
		p = filepath.Join(root, filepath.FromSlash(path.Clean("/"+name)))
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, errors.Errorf("%s is a directory", p)
	}
	return file, nil
}

// sendChunks sends the payload in lockstep: every chunk waits for its acknowledgement
// before the next one is read.
func sendChunks(ctx context.Context, tc *conn.Transfer, payload io.Reader, shaper *rate.Shaper, stats *Stats) error {
	bufReader := bufio.NewReaderSize(payload, 4*transfer.ChunkSize)
	buffer := make([]byte, transfer.ChunkSize)
	for {
		f, err := nextChunk(bufReader, buffer)
		if err != nil {
			return err
		}
		if shaper != nil {
			if err := shaper.Wait(ctx); err != nil {
				return err
			}
		}
		if err := tc.WriteFrame(f); err != nil {
			return err
		}
		stats.Chunks++
		stats.Bytes += int64(len(f.Payload))

		if _, err := tc.ReadAck(transfer.AckFor(f.Type)); err != nil {
			return errors.Wrapf(err, "awaiting ack for chunk %d", stats.Chunks)
		}
		if f.Type == transfer.DataLast {
			return nil
		}
	}
}

// nextChunk fills buffer and classifies it. A chunk is the last one iff nothing
// remains after it, which a one byte read-ahead decides.
func nextChunk(r *bufio.Reader, buffer []byte) (transfer.Frame, error) {
	n, err := io.ReadFull(r, buffer)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return transfer.Frame{Type: transfer.DataLast, Payload: buffer[:n]}, nil
	case err != nil:
		return transfer.Frame{}, exitcode.Wrap(exitcode.Read, errors.Wrap(err, "reading file"))
	}
	if _, err := r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return transfer.Frame{Type: transfer.DataLast, Payload: buffer}, nil
		}
		return transfer.Frame{}, exitcode.Wrap(exitcode.Read, errors.Wrap(err, "reading file"))
	}
	return transfer.Frame{Type: transfer.DataMore, Payload: buffer}, nil
}

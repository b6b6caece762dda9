package conn

import (
	"io"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/protocol/transfer"
	"github.com/pkg/errors"
)

// readSize is how many bytes a single read from the network may deliver at most.
const readSize = 4096

// Conn is an interface that wraps a network connection.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// decoder decodes one frame from the front of a buffer.
type decoder func([]byte) (transfer.Frame, int, error)

// Transfer specifies a framed connection to transfer a file over. Frames may arrive
// split across several reads or packed together in one, so inbound bytes are
// buffered until a whole frame can be decoded.
type Transfer struct {
	Conn Conn

	buf     []byte
	scratch []byte
	out     []byte
}

// NewTransfer returns a framed connection over c.
func NewTransfer(c Conn) *Transfer {
	return &Transfer{
		Conn:    c,
		scratch: make([]byte, readSize),
	}
}

// WriteFrame encodes and writes the frame to the underlying connection.
func (t *Transfer) WriteFrame(f transfer.Frame) error {
	b, err := transfer.AppendFrame(t.out[:0], f)
	if err != nil {
		return exitcode.Wrap(exitcode.Protocol, err)
	}
	t.out = b
	if _, err := t.Conn.Write(b); err != nil {
		return exitcode.Wrap(exitcode.Send, errors.Wrapf(err, "writing %s frame", f.Type))
	}
	return nil
}

// ReadRequest reads the request frame that opens every transfer.
func (t *Transfer) ReadRequest() (transfer.Frame, error) {
	return t.readFrame(transfer.DecodeRequest)
}

// ReadReply reads the next frame sent by the file sender.
func (t *Transfer) ReadReply() (transfer.Frame, error) {
	return t.readFrame(transfer.DecodeReply)
}

// ReadAck reads an acknowledgement. If expected is provided, any other
// acknowledgement is a protocol violation.
func (t *Transfer) ReadAck(expected ...transfer.MsgType) (transfer.Frame, error) {
	f, err := t.readFrame(transfer.DecodeAck)
	if err != nil {
		return transfer.Frame{}, err
	}
	if len(expected) != 0 && expected[0] != f.Type {
		return transfer.Frame{}, exitcode.Wrap(exitcode.Protocol, transfer.Error{Expected: expected, Got: f.Type})
	}
	return f, nil
}

// Close closes the underlying connection. A peer blocked reading from it
// observes a receive failure.
func (t *Transfer) Close() error {
	return t.Conn.Close()
}

// readFrame decodes one frame, reading from the connection until enough bytes are buffered.
func (t *Transfer) readFrame(decode decoder) (transfer.Frame, error) {
	for {
		f, n, err := decode(t.buf)
		if err == nil {
			t.buf = append(t.buf[:0], t.buf[n:]...)
			return f, nil
		}
		if !errors.Is(err, transfer.ErrIncomplete) {
			return transfer.Frame{}, exitcode.Wrap(exitcode.Protocol, err)
		}
		if err := t.fill(); err != nil {
			return transfer.Frame{}, err
		}
	}
}

// fill appends the next read from the connection to the buffer.
func (t *Transfer) fill() error {
	n, err := t.Conn.Read(t.scratch)
	t.buf = append(t.buf, t.scratch[:n]...)
	if n > 0 {
		return nil
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return exitcode.Wrap(exitcode.Recv, errors.Wrap(io.ErrUnexpectedEOF, "connection closed by peer"))
	default:
		return exitcode.Wrap(exitcode.Recv, errors.Wrap(err, "reading from connection"))
	}
}

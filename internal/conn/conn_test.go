package conn_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/protocol/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// partialConn delivers its data at most chunk bytes per read and records writes.
type partialConn struct {
	data    []byte
	chunk   int
	reads   int
	written bytes.Buffer
	closed  bool
}

func (p *partialConn) Read(b []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, io.EOF
	}
	p.reads++
	n := p.chunk
	if n > len(b) {
		n = len(b)
	}
	if n > len(p.data) {
		n = len(p.data)
	}
	copy(b, p.data[:n])
	p.data = p.data[n:]
	return n, nil
}

func (p *partialConn) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func (p *partialConn) Close() error {
	p.closed = true
	return nil
}

func encode(t *testing.T, frames ...transfer.Frame) []byte {
	t.Helper()
	var b []byte
	for _, f := range frames {
		var err error
		b, err = transfer.AppendFrame(b, f)
		require.NoError(t, err)
	}
	return b
}

func TestConn(t *testing.T) {
	t.Run("split frames", func(t *testing.T) {
		payload := bytes.Repeat([]byte("0123456789"), 100)[:transfer.ChunkSize]
		wire := encode(t,
			transfer.Frame{Type: transfer.DataMore, Payload: payload},
			transfer.Frame{Type: transfer.DataLast, Payload: []byte("tail")},
		)
		pc := &partialConn{data: wire, chunk: 7}
		tc := conn.NewTransfer(pc)

		f, err := tc.ReadReply()
		require.NoError(t, err)
		assert.Equal(t, transfer.DataMore, f.Type)
		assert.Equal(t, payload, f.Payload)

		f, err = tc.ReadReply()
		require.NoError(t, err)
		assert.Equal(t, transfer.DataLast, f.Type)
		assert.Equal(t, []byte("tail"), f.Payload)
		assert.Greater(t, pc.reads, 2)
	})

	t.Run("packed frames", func(t *testing.T) {
		wire := encode(t,
			transfer.Frame{Type: transfer.Continue},
			transfer.Frame{Type: transfer.Complete},
		)
		tc := conn.NewTransfer(&partialConn{data: wire, chunk: len(wire)})

		f, err := tc.ReadAck(transfer.Continue)
		require.NoError(t, err)
		assert.Equal(t, transfer.Continue, f.Type)

		f, err = tc.ReadAck(transfer.Complete)
		require.NoError(t, err)
		assert.Equal(t, transfer.Complete, f.Type)
	})

	t.Run("request byte by byte", func(t *testing.T) {
		tc := conn.NewTransfer(&partialConn{data: []byte("report.pdf;\n"), chunk: 1})
		f, err := tc.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", f.Filename)
	})

	t.Run("mismatched ack", func(t *testing.T) {
		tc := conn.NewTransfer(&partialConn{data: []byte("1"), chunk: 1})
		_, err := tc.ReadAck(transfer.Complete)
		require.Error(t, err)
		assert.ErrorIs(t, err, transfer.ErrProtocol)
		assert.Equal(t, exitcode.Protocol, exitcode.KindOf(err))
		var mismatch transfer.Error
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, transfer.Continue, mismatch.Got)
	})

	t.Run("bad tag", func(t *testing.T) {
		tc := conn.NewTransfer(&partialConn{data: []byte("x"), chunk: 1})
		_, err := tc.ReadReply()
		assert.Equal(t, exitcode.Protocol, exitcode.KindOf(err))
	})

	t.Run("peer closes mid frame", func(t *testing.T) {
		tc := conn.NewTransfer(&partialConn{data: []byte("7010abc"), chunk: 3})
		_, err := tc.ReadReply()
		assert.Equal(t, exitcode.Recv, exitcode.KindOf(err))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("write frame", func(t *testing.T) {
		pc := &partialConn{}
		tc := conn.NewTransfer(pc)
		require.NoError(t, tc.WriteFrame(transfer.Frame{Type: transfer.Request, Filename: "a.txt"}))
		require.NoError(t, tc.WriteFrame(transfer.Frame{Type: transfer.Continue}))
		assert.Equal(t, "a.txt;\n1", pc.written.String())
		require.NoError(t, tc.Close())
		assert.True(t, pc.closed)
	})

	t.Run("write invalid frame", func(t *testing.T) {
		tc := conn.NewTransfer(&partialConn{})
		err := tc.WriteFrame(transfer.Frame{Type: transfer.DataMore, Payload: []byte("short")})
		assert.ErrorIs(t, err, transfer.ErrInvalidFrame)
	})

	t.Run("write failure", func(t *testing.T) {
		c1, c2 := net.Pipe()
		require.NoError(t, c2.Close())
		tc := conn.NewTransfer(c1)
		err := tc.WriteFrame(transfer.Frame{Type: transfer.Complete})
		assert.Equal(t, exitcode.Send, exitcode.KindOf(err))
	})
}

func TestListenAndDial(t *testing.T) {
	l, err := conn.Listen(0, 10)
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()

	port := l.Addr().(*net.TCPAddr).Port
	c, err := conn.Dial(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	defer c.Close()

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	_, err = c.Write([]byte("ping;\n"))
	require.NoError(t, err)
	f, err := conn.NewTransfer(server).ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "ping", f.Filename)
}

func TestListenPortInUse(t *testing.T) {
	l, err := conn.Listen(0, 10)
	require.NoError(t, err)
	defer l.Close()

	_, err = conn.Listen(l.Addr().(*net.TCPAddr).Port, 10)
	assert.Equal(t, exitcode.Connect, exitcode.KindOf(err))
}

func TestDialRefused(t *testing.T) {
	l, err := conn.Listen(0, 10)
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = conn.Dial(context.Background(), "127.0.0.1", port)
	assert.Equal(t, exitcode.Connect, exitcode.KindOf(err), strconv.Itoa(port))
}

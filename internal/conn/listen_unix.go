//go:build unix

package conn

import (
	"fmt"
	"net"
	"os"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"golang.org/x/sys/unix"
)

// Listen binds an IPv4 TCP socket on all interfaces and listens with the given
// backlog of pending connections. Port 0 picks an ephemeral port.
func Listen(port, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.Connect, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)

	if err := setup(fd, port, backlog); err != nil {
		unix.Close(fd)
		return nil, exitcode.Wrap(exitcode.Connect, err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4-listener:%d", port))
	defer f.Close()
	l, err := net.FileListener(f)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.Connect, err)
	}
	return l, nil
}

func setup(fd, port, backlog int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return os.NewSyscallError("listen", err)
	}
	return nil
}

//go:build !unix

package conn

import (
	"fmt"
	"net"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
)

// Listen binds an IPv4 TCP socket on all interfaces. The backlog is left to the
// operating system on platforms without a raw socket API.
func Listen(port, _ int) (net.Listener, error) {
	l, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, exitcode.Wrap(exitcode.Connect, err)
	}
	return l, nil
}

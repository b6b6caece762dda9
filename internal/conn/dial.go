package conn

import (
	"context"
	"net"
	"strconv"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/pkg/errors"
)

// Dial resolves host to its IPv4 addresses and connects to the first one that
// accepts. Resolution and connection failures are reported with distinct kinds
// and are never retried.
func Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.Host, errors.Wrapf(err, "resolving %s", host))
	}
	if len(ips) == 0 {
		return nil, exitcode.New(exitcode.Host, "no IPv4 address for %s", host)
	}

	var d net.Dialer
	var lastErr error
	for _, ip := range ips {
		c, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, exitcode.Wrap(exitcode.Connect, errors.Wrapf(lastErr, "connecting to %s:%d", host, port))
}

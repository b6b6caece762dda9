package commands

import (
	"strconv"
	"strings"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slices"
)

var validate = validator.New()

// serverFlagOrders are the only accepted shapes of the server's arguments.
var serverFlagOrders = [][]string{{"-p", "-d"}, {"-d", "-p"}}

// checkServerArgv accepts exactly `-p PORT -d RATE` or `-d RATE -p PORT`.
func checkServerArgv(argv []string) error {
	if len(argv) != 4 {
		return exitcode.New(exitcode.ParamCount, "expected 4 arguments, got %d", len(argv))
	}
	flags := []string{argv[0], argv[2]}
	if slices.IndexFunc(serverFlagOrders, func(order []string) bool { return slices.Equal(order, flags) }) < 0 {
		return exitcode.New(exitcode.Param, "usage: -p PORT -d RATE or -d RATE -p PORT")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parsePort parses a decimal port number in 1-65535. Signs and spaces are rejected.
func parsePort(s string) (int, error) {
	if !isDigits(s) {
		return 0, exitcode.New(exitcode.Param, "port %q is not a number", s)
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, exitcode.New(exitcode.Param, "port %q is out of range", s)
	}
	return port, nil
}

// parseRate parses a positive decimal number of bytes per second.
func parseRate(s string) (int64, error) {
	if !isDigits(s) {
		return 0, exitcode.New(exitcode.Param, "rate %q is not a number", s)
	}
	rate, err := strconv.ParseInt(s, 10, 64)
	if err != nil || rate <= 0 {
		return 0, exitcode.New(exitcode.Param, "rate %q must be a positive number of bytes per second", s)
	}
	return rate, nil
}

// target is the parsed `host:port/filename` argument of the client.
type target struct {
	host     string
	port     int
	filename string
}

// parseTarget splits `host:port/filename`. The host runs up to the first colon and
// the port up to the first slash after it; the rest is the filename.
func parseTarget(arg string) (target, error) {
	host, rest, ok := strings.Cut(arg, ":")
	if !ok {
		return target{}, exitcode.New(exitcode.Param, "%q is missing a port", arg)
	}
	port, filename, ok := strings.Cut(rest, "/")
	if !ok || filename == "" {
		return target{}, exitcode.New(exitcode.Param, "%q is missing a filename", arg)
	}
	if err := validate.Var(host, "required,hostname_rfc1123|ip4_addr"); err != nil {
		return target{}, exitcode.New(exitcode.Param, "%q is not a valid host", host)
	}
	p, err := parsePort(port)
	if err != nil {
		return target{}, err
	}
	return target{host: host, port: p, filename: filename}, nil
}

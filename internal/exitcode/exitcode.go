// Package exitcode maps every failure of the client and server onto exactly one
// process exit status and a human readable message.
package exitcode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error. The numeric value is the process exit status.
type Kind int

const (
	OK Kind = iota
	ParamCount
	Param
	Recv
	Send
	Connect
	Host
	LocalFile
	RemoteFile
	Read
	Protocol
	Unknown
)

var messages = map[Kind]string{
	OK:         "Everything is OK.",
	ParamCount: "Wrong number of parameters",
	Param:      "Wrong parameter",
	Recv:       "Failed to receive a message",
	Send:       "Failed to send a message",
	Connect:    "Failed to connect to server",
	Host:       "Host is not available",
	LocalFile:  "File for writing couldn't be opened",
	RemoteFile: "Requested file could not be opened at server",
	Read:       "Requested file could not be read",
	Protocol:   "Received message does not match the protocol",
	Unknown:    "Unknown error",
}

// String returns the human readable message of the kind.
func (k Kind) String() string {
	if msg, ok := messages[k]; ok {
		return msg
	}
	return messages[Unknown]
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted cause.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Wrap attaches kind to err. A nil err stays nil, and an error that already
// carries a kind keeps it: the innermost classification wins.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind attached to err, OK for nil and Unknown when none is attached.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Of returns the process exit status for err.
func Of(err error) int {
	k := KindOf(err)
	if _, ok := messages[k]; !ok {
		return int(Unknown)
	}
	return int(k)
}

// Message returns the single line printed on stderr for err.
func Message(err error) string {
	return KindOf(err).String()
}

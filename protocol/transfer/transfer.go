// transfer.go specifies the frames exchanged by the rate limited transfer protocol.
package transfer

import (
	"fmt"
	"strings"
)

// MsgType specifies the frame type of a message in the transfer protocol.
type MsgType int

const (
	Request     MsgType = iota // Receiver names the file it wants, terminated by ";\n"
	Unavailable                // Sender could not open the requested file
	DataMore                   // Sender transmits a full chunk, more chunks follow
	DataLast                   // Sender transmits the final (possibly empty) chunk
	Continue                   // Receiver ACKs a DataMore chunk
	Complete                   // Receiver ACKs the DataLast chunk, the transfer is done
)

// Wire tags of the single byte frames. A request carries no tag.
const (
	TagError    byte = '9'
	TagDataMore byte = '8'
	TagDataLast byte = '7'
	TagContinue byte = '1'
	TagComplete byte = '2'
)

const (
	// ChunkSize is the payload quota of a single data frame.
	ChunkSize = 999
	// LengthDigits is the width of the decimal length field of a DataLast frame.
	LengthDigits = 3
	// MaxRequestLen bounds how many bytes a request may span before its terminator.
	MaxRequestLen = 4096
)

// RequestTerminator ends every request frame. It is not escaped.
const RequestTerminator = ";\n"

// Frame is a single message of the transfer protocol.
type Frame struct {
	Type     MsgType
	Filename string // set for Request
	Payload  []byte // set for DataMore and DataLast
}

// Tag returns the wire tag of the frame. Requests have no tag and return 0.
func (t MsgType) Tag() byte {
	switch t {
	case Unavailable:
		return TagError
	case DataMore:
		return TagDataMore
	case DataLast:
		return TagDataLast
	case Continue:
		return TagContinue
	case Complete:
		return TagComplete
	default:
		return 0
	}
}

func (t MsgType) Name() string {
	switch t {
	case Request:
		return "Request"
	case Unavailable:
		return "Unavailable"
	case DataMore:
		return "DataMore"
	case DataLast:
		return "DataLast"
	case Continue:
		return "Continue"
	case Complete:
		return "Complete"
	default:
		return ""
	}
}

func (t MsgType) String() string {
	return t.Name()
}

// AckFor returns the acknowledgement a receiver must send for the given data frame type.
func AckFor(t MsgType) MsgType {
	if t == DataLast {
		return Complete
	}
	return Continue
}

// Error is returned when a well formed frame of an unexpected type is received.
type Error struct {
	Expected []MsgType
	Got      MsgType
}

func (e Error) Error() string {
	var expectedMessageTypes []string
	for _, expectedType := range e.Expected {
		expectedMessageTypes = append(expectedMessageTypes, expectedType.Name())
	}
	oneOfExpected := strings.Join(expectedMessageTypes, ", ")
	return fmt.Sprintf("wrong message type, expected one of: (%s), got: (%s)", oneOfExpected, e.Got.Name())
}

// Is lets a mismatch count as a protocol violation for errors.Is.
func (e Error) Is(target error) bool {
	return target == ErrProtocol
}

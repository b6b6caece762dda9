package transfer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrIncomplete is returned by the decoders when the buffer does not yet hold a whole frame.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrProtocol marks bytes that do not match the frame grammar.
	ErrProtocol = errors.New("protocol violation")
	// ErrInvalidFrame is returned when encoding a frame that cannot be represented on the wire.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Encode returns the wire representation of the frame.
func Encode(f Frame) ([]byte, error) {
	return AppendFrame(nil, f)
}

// AppendFrame appends the wire representation of the frame to dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	switch f.Type {
	case Request:
		switch {
		case f.Filename == "":
			return dst, errors.Wrap(ErrInvalidFrame, "empty filename")
		case strings.Contains(f.Filename, RequestTerminator):
			return dst, errors.Wrapf(ErrInvalidFrame, "filename %q contains the request terminator", f.Filename)
		case len(f.Filename)+len(RequestTerminator) > MaxRequestLen:
			return dst, errors.Wrapf(ErrInvalidFrame, "filename exceeds %d bytes", MaxRequestLen-len(RequestTerminator))
		}
		dst = append(dst, f.Filename...)
		return append(dst, RequestTerminator...), nil

	case Unavailable, Continue, Complete:
		if len(f.Payload) != 0 {
			return dst, errors.Wrapf(ErrInvalidFrame, "%s frame carries no payload", f.Type)
		}
		return append(dst, f.Type.Tag()), nil

	case DataMore:
		if len(f.Payload) != ChunkSize {
			return dst, errors.Wrapf(ErrInvalidFrame, "DataMore payload must be %d bytes, got %d", ChunkSize, len(f.Payload))
		}
		dst = append(dst, TagDataMore)
		return append(dst, f.Payload...), nil

	case DataLast:
		if len(f.Payload) > ChunkSize {
			return dst, errors.Wrapf(ErrInvalidFrame, "DataLast payload exceeds %d bytes, got %d", ChunkSize, len(f.Payload))
		}
		dst = append(dst, TagDataLast)
		dst = append(dst, fmt.Sprintf("%0*d", LengthDigits, len(f.Payload))...)
		return append(dst, f.Payload...), nil

	default:
		return dst, errors.Wrapf(ErrInvalidFrame, "unknown frame type %d", f.Type)
	}
}

// DecodeRequest decodes a request frame from the front of buf. It returns the frame
// and the number of bytes consumed. The filename runs up to the first terminator.
func DecodeRequest(buf []byte) (Frame, int, error) {
	i := bytes.Index(buf, []byte(RequestTerminator))
	if i < 0 {
		if len(buf) >= MaxRequestLen {
			return Frame{}, 0, errors.Wrapf(ErrProtocol, "request exceeds %d bytes without terminator", MaxRequestLen)
		}
		return Frame{}, 0, ErrIncomplete
	}
	n := i + len(RequestTerminator)
	if n > MaxRequestLen {
		return Frame{}, 0, errors.Wrapf(ErrProtocol, "request exceeds %d bytes", MaxRequestLen)
	}
	return Frame{Type: Request, Filename: string(buf[:i])}, n, nil
}

// DecodeReply decodes a frame sent by the file sender: Unavailable, DataMore or DataLast.
func DecodeReply(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrIncomplete
	}
	switch buf[0] {
	case TagError:
		return Frame{Type: Unavailable}, 1, nil

	case TagDataMore:
		end := 1 + ChunkSize
		if len(buf) < end {
			return Frame{}, 0, ErrIncomplete
		}
		return Frame{Type: DataMore, Payload: clone(buf[1:end])}, end, nil

	case TagDataLast:
		header := 1 + LengthDigits
		if len(buf) < header {
			return Frame{}, 0, ErrIncomplete
		}
		length, err := parseLength(buf[1:header])
		if err != nil {
			return Frame{}, 0, err
		}
		end := header + length
		if len(buf) < end {
			return Frame{}, 0, ErrIncomplete
		}
		return Frame{Type: DataLast, Payload: clone(buf[header:end])}, end, nil

	default:
		return Frame{}, 0, errors.Wrapf(ErrProtocol, "unknown reply tag %q", buf[0])
	}
}

// DecodeAck decodes an acknowledgement sent by the file receiver.
func DecodeAck(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrIncomplete
	}
	switch buf[0] {
	case TagContinue:
		return Frame{Type: Continue}, 1, nil
	case TagComplete:
		return Frame{Type: Complete}, 1, nil
	default:
		return Frame{}, 0, errors.Wrapf(ErrProtocol, "unknown ack tag %q", buf[0])
	}
}

// parseLength parses the zero padded decimal length field of a DataLast frame.
func parseLength(field []byte) (int, error) {
	n := 0
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrProtocol, "malformed length field %q", field)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

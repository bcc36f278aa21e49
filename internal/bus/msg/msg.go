// Package msg implements the bus wire format: a fixed textual header
// (sender route, recipient route, message code) followed by a binary
// argument body, and the u32-length frame that wraps the whole payload on
// the socket.
package msg

import (
	"encoding/binary"
	"fmt"

	"github.com/bdj4go/bdj4/internal/bus/route"
)

// headerFields is the byte length of the three zero-padded decimal fields
// plus their separating tildes, not counting any trailing NUL:
// "RRRR~rrrr~mmmm~" == 4+1+4+1+4+1 == 15 bytes.
const headerFields = 15

// MaxPayload is the largest payload size (20000 bytes of args plus the
// header and its NUL) this package defines. Encode does not check it;
// sock.ReadFrameTimeout rejects frames against its own maxFrame limit.
const MaxPayload = 20000 + headerFields + 1

// Message is a fully decoded bus message.
type Message struct {
	From Route
	To   Route
	Code Code
	Args []byte
}

// Route is a thin alias kept local to msg so this package has no import
// cycle back onto bus/route beyond port/lock derivation; callers convert
// with route.Route(m.From) etc.
type Route = route.Route

// Encode builds the on-wire payload (header + args, no outer length prefix)
// for a message from 'from' to 'to' carrying code and args.
//
// When args is empty the header is terminated with a single NUL byte
// (matching the no-args wire example: "0003~0006~0042~\0", 16 bytes).
// When args is non-empty, the header (15 bytes, untermined) is followed
// directly by the raw argument bytes with no added terminator — the
// u32 length prefix written by the caller already tells the reader where
// the payload ends, so no in-band terminator is required.
func Encode(from, to Route, code Code, args []byte) []byte {
	header := fmt.Sprintf("%04d~%04d~%04d~", int(from), int(to), int(code))
	if len(args) == 0 {
		buf := make([]byte, 0, headerFields+1)
		buf = append(buf, header...)
		buf = append(buf, 0)
		return buf
	}
	buf := make([]byte, 0, headerFields+len(args))
	buf = append(buf, header...)
	buf = append(buf, args...)
	return buf
}

// Frame wraps an already-encoded payload with its u32 big-endian length
// prefix, ready to hand to sock.Write.
func Frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// EncodeFrame is a convenience combining Encode and Frame.
func EncodeFrame(from, to Route, code Code, args []byte) []byte {
	return Frame(Encode(from, to, code, args))
}

// Decode parses a raw payload (without the length prefix) into a Message.
// It is the exact inverse of Encode: Decode(Encode(f, t, c, a)) reproduces
// (f, t, c, a) byte-for-byte.
func Decode(payload []byte) (Message, error) {
	if len(payload) < headerFields {
		return Message{}, fmt.Errorf("msg: payload too short for header: %d bytes", len(payload))
	}

	header := payload[:headerFields]
	if header[4] != '~' || header[9] != '~' || header[14] != '~' {
		return Message{}, fmt.Errorf("msg: malformed header %q", header)
	}

	from, err := parseField(header[0:4])
	if err != nil {
		return Message{}, fmt.Errorf("msg: bad sender route: %w", err)
	}
	to, err := parseField(header[5:9])
	if err != nil {
		return Message{}, fmt.Errorf("msg: bad recipient route: %w", err)
	}
	code, err := parseField(header[10:14])
	if err != nil {
		return Message{}, fmt.Errorf("msg: bad message code: %w", err)
	}

	rest := payload[headerFields:]
	var args []byte
	switch {
	case len(rest) == 0:
		args = nil
	case len(rest) == 1 && rest[0] == 0:
		args = nil
	default:
		args = rest
	}

	return Message{
		From: Route(from),
		To:   Route(to),
		Code: Code(code),
		Args: args,
	}, nil
}

// parseField parses a 4-byte zero-padded decimal field.
func parseField(b []byte) (int, error) {
	var v int
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit byte %q", c)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}

package msg

import "bytes"

// fieldSep separates argument fields within a message body (0x1E, ASCII
// record separator). emptyField stands in for a field that is
// deliberately empty, distinguishing "no value" from a zero-length string
// that simply falls between two adjacent separators.
const (
	fieldSep   = 0x1E
	emptyField = 0x03
)

// EncodeArgs joins fields into a single args payload using fieldSep, each
// strictly-empty field replaced by emptyField so the round trip through
// DecodeArgs can tell "empty" apart from "absent".
func EncodeArgs(fields ...string) []byte {
	if len(fields) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(fieldSep)
		}
		if f == "" {
			buf.WriteByte(emptyField)
		} else {
			buf.WriteString(f)
		}
	}
	return buf.Bytes()
}

// DecodeArgs splits an args payload back into its fields, translating a
// lone emptyField byte back into an empty string.
func DecodeArgs(args []byte) []string {
	if len(args) == 0 {
		return nil
	}
	parts := bytes.Split(args, []byte{fieldSep})
	out := make([]string, len(parts))
	for i, p := range parts {
		if len(p) == 1 && p[0] == emptyField {
			out[i] = ""
			continue
		}
		out[i] = string(p)
	}
	return out
}

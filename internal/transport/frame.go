package transport

import (
	"fmt"
	"strconv"

	"pkt.systems/ffdebug/schema"
)

// maxPrefixDigits bounds the decimal length prefix.
const maxPrefixDigits = 10

// Encode frames body as "<decimal length>:<body>".
func Encode(body []byte) []byte {
	prefix := strconv.Itoa(len(body))
	out := make([]byte, 0, len(prefix)+1+len(body))
	out = append(out, prefix...)
	out = append(out, ':')
	out = append(out, body...)
	return out
}

// Decoder reassembles frames from arbitrarily split reads.
type Decoder struct {
	buf []byte
}

// Feed appends p to the buffer and returns every frame body completed by it,
// in arrival order. Empty bodies are consumed and skipped. Incomplete trailing
// bytes stay buffered until the next call.
func (d *Decoder) Feed(p []byte) ([][]byte, error) {
	d.buf = append(d.buf, p...)
	var bodies [][]byte
	for len(d.buf) > 0 {
		digits := 0
		for digits < len(d.buf) && isDigit(d.buf[digits]) {
			digits++
		}
		if digits > maxPrefixDigits {
			return bodies, fmt.Errorf("%w: length prefix exceeds %d digits", schema.ErrFraming, maxPrefixDigits)
		}
		if digits == len(d.buf) {
			break
		}
		if digits == 0 || d.buf[digits] != ':' {
			return bodies, fmt.Errorf("%w: unexpected byte 0x%02x at offset %d", schema.ErrFraming, d.buf[digits], digits)
		}
		size, err := strconv.Atoi(string(d.buf[:digits]))
		if err != nil {
			return bodies, fmt.Errorf("%w: %v", schema.ErrFraming, err)
		}
		start := digits + 1
		if len(d.buf)-start < size {
			break
		}
		body := d.buf[start : start+size]
		d.buf = d.buf[start+size:]
		if size == 0 {
			continue
		}
		bodies = append(bodies, append([]byte(nil), body...))
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return bodies, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder emits an image as kitty graphics escape sequences,
// splitting the base64 payload into 4096-byte chunks as the protocol
// requires.
type KittyEncoder struct {
	out io.Writer
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

func (e *KittyEncoder) Encode(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	if len(encoded) <= chunkSize {
		_, err := fmt.Fprintf(e.out, "%sa=T,f=100,q=2;%s%s", escapeStart, encoded, escapeEnd)
		return err
	}

	return e.writeChunked(encoded)
}

func (e *KittyEncoder) writeChunked(encoded string) error {
	first := true
	for len(encoded) > 0 {
		n := chunkSize
		if len(encoded) < n {
			n = len(encoded)
		}
		chunk, rest := encoded[:n], encoded[n:]

		var params string
		switch {
		case first:
			params = "a=T,f=100,q=2,m=1"
		case len(rest) == 0:
			params = "m=0"
		default:
			params = "m=1"
		}

		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
		first = false
		encoded = rest
	}

	return nil
}

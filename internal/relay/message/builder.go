package message

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Builder - implements io.Writer interface to build single-line text from byte parts.
// Incomplete UTF-8 sequence at the end of a part is kept until the next Write.
// Invalid sequences and control characters are dropped, any run of EOL characters
// collapses into single space.
type Builder struct {
	pending []byte
	str     strings.Builder
	prev    rune
}

func (b *Builder) Write(p []byte) (n int, err error) {
	data := append(b.pending, p...)
	b.pending = nil

	for len(data) > 0 {
		if !utf8.FullRune(data) {
			// wait for the rest of sequence
			b.pending = append([]byte{}, data...)
			break
		}
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError {
			continue
		}
		switch {
		case r == '\n' || r == '\r':
			if b.prev != '\n' && b.prev != '\r' {
				b.str.WriteByte(' ')
			}
		case unicode.IsSpace(r):
			b.str.WriteByte(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.str.WriteRune(r)
		}
		b.prev = r
	}
	return len(p), nil
}

// Flush - returns built string and resets internal builder.
// Pending incomplete sequence is kept.
func (b *Builder) Flush() string {
	defer func() {
		b.str.Reset()
		b.prev = 0
	}()
	return b.str.String()
}

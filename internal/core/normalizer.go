package core

import (
	"errors"
	"fmt"
	"strings"
)

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Version is a described checkout state ready for embedding.
//
// Raw is the newline-trimmed tool output (with any prefix and suffix applied).
// Escaped has every backslash and double quote escaped, so that
// `"` + Escaped + `"` is a valid Go string literal whose value is Raw.
type Version struct {
	Raw     string
	Escaped string
}

// NewVersion validates raw and computes its escaped form.
func NewVersion(raw string) (Version, error) {
	if err := checkEmbeddable(raw); err != nil {
		return Version{}, err
	}
	return Version{Raw: raw, Escaped: Escape(raw)}, nil
}

// Literal returns the quoted literal form of v.
func (v Version) Literal() string {
	return `"` + v.Escaped + `"`
}

func (v Version) String() string { return v.Raw }

// Escape replaces `\` with `\\` and `"` with `\"`. No other characters are touched.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Quote returns s escaped and wrapped in double quotes.
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}

func stripTrailingNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		return b[:n-1]
	}
	return b
}

var errNotSingleLine = errors.New("not a single line")

// checkEmbeddable rejects text that cannot appear between the quotes of a
// string literal after escaping: line breaks, NUL and byte order marks.
func checkEmbeddable(s string) error {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return fmt.Errorf("%w: line break at offset %d", errNotSingleLine, i)
	}
	if i := strings.IndexAny(s, "\x00\uFEFF"); i >= 0 {
		return fmt.Errorf("illegal character at offset %d", i)
	}
	return nil
}

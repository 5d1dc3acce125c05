// ABOUTME: JSON header extraction from mixed JSON+binary alert frames
// ABOUTME: Finds the balanced closing brace by depth counting, honoring strings and escapes
package ingest

import (
	"errors"
	"fmt"
	"io"
)

// Header framing errors.
var (
	ErrNoHeader          = errors.New("frame does not start with a JSON object")
	ErrHeaderUnbalanced  = errors.New("no balanced JSON object within the header window")
	ErrHeaderTooDeep     = errors.New("JSON header nesting too deep")
	ErrHeaderWindowShort = errors.New("frame shorter than a minimal header")
)

// maxHeaderDepth bounds brace nesting so a malicious header cannot force an
// unbounded scan state.
const maxHeaderDepth = 8

// ExtractHeader reads from r until the JSON object that opens the frame is
// balanced, or until window bytes have been consumed. It returns the header
// bytes exactly as read; everything after them in r is the binary payload.
func ExtractHeader(r io.Reader, window int) ([]byte, error) {
	buf := make([]byte, 0, window)
	one := make([]byte, 1)

	depth := 0
	inString := false
	escaped := false

	for len(buf) < window {
		n, err := r.Read(one)
		if n == 0 {
			if err == io.EOF {
				if len(buf) == 0 {
					return nil, ErrHeaderWindowShort
				}
				return nil, ErrHeaderUnbalanced
			}
			if err != nil {
				return nil, fmt.Errorf("header read failed: %w", err)
			}
			continue
		}

		c := one[0]
		if len(buf) == 0 && c != '{' {
			return nil, ErrNoHeader
		}
		buf = append(buf, c)

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
			if depth > maxHeaderDepth {
				return nil, ErrHeaderTooDeep
			}
		case '}':
			depth--
			if depth == 0 {
				return buf, nil
			}
		}
	}

	return nil, ErrHeaderUnbalanced
}

package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldSep separates humidity from temperature on the wire: "<rh>x<temp>".
const fieldSep = "x"

// ParseError reports a line that does not match the "<rh>x<temp>" format.
type ParseError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %q: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %q: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLine parses one device line of the form "<rh>x<temperature>".
// Surrounding whitespace and the line terminator are ignored.
func ParseLine(line string) (Reading, error) {
	trimmed := strings.TrimSpace(line)
	parts := strings.Split(trimmed, fieldSep)
	if len(parts) != 2 {
		return Reading{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected 2 fields, got %d", len(parts))}
	}

	rh, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Reading{}, &ParseError{Line: line, Reason: "bad humidity", Err: err}
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Reading{}, &ParseError{Line: line, Reason: "bad temperature", Err: err}
	}

	r, err := NewReading(temp, rh)
	if err != nil {
		return Reading{}, &ParseError{Line: line, Reason: "out of range", Err: err}
	}
	return r, nil
}

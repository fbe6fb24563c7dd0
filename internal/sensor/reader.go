package sensor

import "fmt"

// Transport is a line-delimited byte stream from a continuously producing
// device. Flush discards anything already queued in either direction.
type Transport interface {
	Flush() error
	ReadLine() (string, error)
	Close() error
}

// TransportError reports a transport that could not be opened, flushed or read.
type TransportError struct {
	Op  string // "open", "flush", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reader produces one Reading per call from a Transport.
type Reader struct {
	t Transport
}

// NewReader wraps an already opened transport. The caller keeps ownership
// and closes it.
func NewReader(t Transport) *Reader {
	return &Reader{t: t}
}

// ReadOne flushes stale buffered data, then reads and parses the next line.
func (r *Reader) ReadOne() (Reading, error) {
	if err := r.t.Flush(); err != nil {
		return Reading{}, &TransportError{Op: "flush", Err: err}
	}
	line, err := r.t.ReadLine()
	if err != nil {
		return Reading{}, &TransportError{Op: "read", Err: err}
	}
	return ParseLine(line)
}

// Package transport provides the device connections a sensor.Reader reads
// from: a USB/serial port and an MQTT topic bridge.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ErrTimeout is returned when no complete line arrives within the read timeout.
var ErrTimeout = errors.New("read timeout")

// port is the subset of serial.Port the transport relies on.
type port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Serial reads newline-terminated lines from a serial port.
type Serial struct {
	name string
	p    port
	r    *bufio.Reader
}

// SerialConfig describes a serial connection.
type SerialConfig struct {
	Port        string        // e.g. "/dev/ttyACM0", "COM3"
	BaudRate    int           // e.g. 9600
	ReadTimeout time.Duration // per-line read timeout, 0 blocks forever
}

// OpenSerial opens and configures the named port.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	p, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	s, err := newSerial(cfg.Port, p, cfg.ReadTimeout)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

func newSerial(name string, p port, timeout time.Duration) (*Serial, error) {
	if timeout > 0 {
		if err := p.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	return &Serial{name: name, p: p, r: bufio.NewReader(timeoutReader{p})}, nil
}

// Flush drops queued input and output on the device and anything already
// buffered on our side.
func (s *Serial) Flush() error {
	if err := s.p.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input %s: %w", s.name, err)
	}
	if err := s.p.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("reset output %s: %w", s.name, err)
	}
	s.r.Reset(timeoutReader{s.p})
	return nil
}

// ReadLine blocks until a full line is read or the read timeout elapses.
func (s *Serial) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.p.Close()
}

// timeoutReader turns the (0, nil) a serial port returns on timeout into
// ErrTimeout so bufio does not spin.
type timeoutReader struct{ r io.Reader }

func (t timeoutReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

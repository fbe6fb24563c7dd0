// Package logging builds the slog logger shared by every command.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger bundles the slog logger with the log file it writes to, if any.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a text logger writing to console and, when path is set, to an
// append-only file. A nil console logs to the file only.
func New(console io.Writer, path string, level slog.Level) (*Logger, error) {
	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	var file *os.File
	if path != "" {
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(h), file: file}, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// Writer is an io.Writer that forwards each complete line it receives to slog.
// It is used to route rendered pass reports into the structured log stream.
type Writer struct {
	logger *slog.Logger
	msg    string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewWriter constructs a Writer bound to the provided logger. Lines are logged at info level
// under msg, with the line text in the "line" attribute.
func NewWriter(logger *slog.Logger, msg string) *Writer {
	if msg == "" {
		msg = "output"
	}
	return &Writer{logger: logger, msg: msg}
}

// Write buffers p and logs every complete line.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.emit(string(data[:i]))
		w.buf.Next(i + 1)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *Writer) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if w.logger == nil || strings.TrimSpace(line) == "" {
		return
	}
	w.logger.Info(w.msg, "line", line)
}

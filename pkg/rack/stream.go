package rack

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// ErrorStream is the rack.errors sink. Each complete line written to it is
// logged at error level.
type ErrorStream struct {
	w *zapio.Writer
}

// NewErrorStream creates an error stream logging to logger.
func NewErrorStream(logger *zap.Logger) *ErrorStream {
	return &ErrorStream{w: &zapio.Writer{Log: logger, Level: zapcore.ErrorLevel}}
}

// Write implements io.Writer.
func (s *ErrorStream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Puts writes msg followed by a newline.
func (s *ErrorStream) Puts(msg string) error {
	_, err := s.w.Write([]byte(msg + "\n"))
	return err
}

// Flush logs any buffered partial line.
func (s *ErrorStream) Flush() error {
	return s.w.Sync()
}

// Close flushes the stream.
func (s *ErrorStream) Close() error {
	return s.w.Close()
}

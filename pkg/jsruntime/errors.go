package jsruntime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrorType categorizes script failures
type ErrorType string

const (
	ErrorTypeSyntax      ErrorType = "syntax_error"
	ErrorTypeRuntime     ErrorType = "runtime_error"
	ErrorTypeInterrupted ErrorType = "interrupted"
	ErrorTypeInternal    ErrorType = "internal_error"
)

// maxFrames caps the frames rendered by Error
const maxFrames = 10

// StackFrame is a single frame of a script stack trace
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// ScriptError is a failure raised while loading or calling a script. It
// wraps the engine error, so errors.As can still reach *goja.Exception.
type ScriptError struct {
	Type    ErrorType
	Message string
	Label   string
	Stack   []StackFrame
	Err     error
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if e.Label != "" {
		fmt.Fprintf(&b, " (%s)", e.Label)
	}
	for i, frame := range e.Stack {
		if i >= maxFrames {
			fmt.Fprintf(&b, "\n  ... %d more frames", len(e.Stack)-i)
			break
		}
		name := frame.Function
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "\n  at %s (%s:%d:%d)", name, frame.File, frame.Line, frame.Column)
	}
	return b.String()
}

// Unwrap returns the engine error
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// newScriptError classifies an engine error raised under label.
func newScriptError(label string, err error) *ScriptError {
	var (
		syntax    *goja.CompilerSyntaxError
		interrupt *goja.InterruptedError
		exc       *goja.Exception
	)

	switch {
	case errors.As(err, &syntax):
		return &ScriptError{Type: ErrorTypeSyntax, Message: syntax.Error(), Label: label, Err: err}
	case errors.As(err, &interrupt):
		return &ScriptError{Type: ErrorTypeInterrupted, Message: interrupt.Error(), Label: label, Err: err}
	case errors.As(err, &exc):
		errType := ErrorTypeRuntime
		if isSyntaxError(exc) {
			errType = ErrorTypeSyntax
		}
		return &ScriptError{
			Type:    errType,
			Message: exceptionMessage(exc),
			Label:   label,
			Stack:   stackFrames(exc.Stack()),
			Err:     err,
		}
	default:
		return &ScriptError{Type: ErrorTypeInternal, Message: err.Error(), Label: label, Err: err}
	}
}

// isSyntaxError reports compile failures, which the engine rethrows as
// SyntaxError exceptions.
func isSyntaxError(exc *goja.Exception) bool {
	return strings.HasPrefix(exceptionMessage(exc), "SyntaxError")
}

func exceptionMessage(exc *goja.Exception) string {
	if v := exc.Value(); v != nil {
		return v.String()
	}
	return exc.Error()
}

func stackFrames(frames []goja.StackFrame) []StackFrame {
	if len(frames) == 0 {
		return nil
	}
	out := make([]StackFrame, 0, len(frames))
	for i := range frames {
		pos := frames[i].Position()
		out = append(out, StackFrame{
			Function: frames[i].FuncName(),
			File:     frames[i].SrcName(),
			Line:     pos.Line,
			Column:   pos.Column,
		})
	}
	return out
}

// IsInterrupted reports whether err stems from an interrupted script.
func IsInterrupted(err error) bool {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeInterrupted
	}
	var interrupt *goja.InterruptedError
	return errors.As(err, &interrupt)
}

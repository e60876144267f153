// Package rewind provides the rewindable request body handed to applications
// as rack.input.
//
// Bytes are buffered in memory as they are read from the container stream.
// Once the buffered size would exceed the policy's maximum, the buffer is
// moved to a temporary file and later reads are served from there.
package rewind

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	// DefaultInitialBufferSize is the default initial in-memory buffer size
	DefaultInitialBufferSize = 4 * 8192

	// DefaultMaximumBufferSize is the default in-memory limit
	DefaultMaximumBufferSize = 16 * 8192
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("rewind: input closed")

// Policy sizes the memory buffer of every Input created with it.
type Policy struct {
	InitialSize int
	MaximumSize int
}

// DefaultPolicy returns the built-in buffer policy.
func DefaultPolicy() Policy {
	return Policy{
		InitialSize: DefaultInitialBufferSize,
		MaximumSize: DefaultMaximumBufferSize,
	}
}

// normalized fills zero values with defaults and keeps initial <= maximum.
func (p Policy) normalized() Policy {
	if p.MaximumSize <= 0 {
		p.MaximumSize = DefaultMaximumBufferSize
	}
	if p.InitialSize <= 0 {
		p.InitialSize = DefaultInitialBufferSize
	}
	if p.InitialSize > p.MaximumSize {
		p.InitialSize = p.MaximumSize
	}
	return p
}

// Input is a rewindable reader over a request body.
type Input struct {
	mu     sync.Mutex
	src    io.Reader
	policy Policy
	buf    []byte
	file   *os.File
	size   int64
	pos    int64
	closed bool
}

// NewInput wraps src. A nil src behaves as an empty body.
func NewInput(src io.Reader, policy Policy) *Input {
	policy = policy.normalized()
	return &Input{
		src:    src,
		policy: policy,
		buf:    make([]byte, 0, policy.InitialSize),
	}
}

// Policy returns the effective buffer policy.
func (in *Input) Policy() Policy {
	return in.policy
}

// Read implements io.Reader.
func (in *Input) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.read(p)
}

func (in *Input) read(p []byte) (int, error) {
	if in.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if in.pos < in.size {
		n, err := in.readBuffered(p)
		in.pos += int64(n)
		return n, err
	}

	if in.src == nil {
		return 0, io.EOF
	}

	n, err := in.src.Read(p)
	if n > 0 {
		if werr := in.store(p[:n]); werr != nil {
			return 0, werr
		}
		in.pos += int64(n)
	}
	if err == io.EOF {
		in.src = nil
	}
	return n, err
}

func (in *Input) readBuffered(p []byte) (int, error) {
	remaining := in.size - in.pos
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if in.file != nil {
		n, err := in.file.ReadAt(p, in.pos)
		if err == io.EOF && n == len(p) {
			err = nil
		}
		return n, err
	}
	return copy(p, in.buf[in.pos:in.size]), nil
}

func (in *Input) store(data []byte) error {
	if in.file == nil && len(in.buf)+len(data) <= in.policy.MaximumSize {
		in.buf = append(in.buf, data...)
		in.size += int64(len(data))
		return nil
	}

	if in.file == nil {
		f, err := os.CreateTemp("", "rackbridge-input-*")
		if err != nil {
			return fmt.Errorf("failed to create body buffer file: %w", err)
		}
		if _, err := f.Write(in.buf); err != nil {
			f.Close()
			os.Remove(f.Name())
			return fmt.Errorf("failed to spill body buffer: %w", err)
		}
		in.file = f
		in.buf = nil
	}

	if _, err := in.file.WriteAt(data, in.size); err != nil {
		return fmt.Errorf("failed to spill body buffer: %w", err)
	}
	in.size += int64(len(data))
	return nil
}

// Rewind moves the read position back to the start of the body.
func (in *Input) Rewind() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return ErrClosed
	}
	in.pos = 0
	return nil
}

// ReadAll reads from the current position to the end of the body.
func (in *Input) ReadAll() (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	var out []byte
	chunk := make([]byte, 4096)
	for {
		n, err := in.read(chunk)
		out = append(out, chunk[:n]...)
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
	}
}

// Spilled reports whether the body was moved to a temporary file.
func (in *Input) Spilled() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.file != nil
}

// Close releases the temporary file, if any. The container stream is not
// closed; it belongs to the container.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	in.buf = nil
	if in.file == nil {
		return nil
	}
	name := in.file.Name()
	err := in.file.Close()
	in.file = nil
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	return err
}

// internal/transport/channel.go

// Package transport is the byte-stream link between an adapter and its
// instrument. Reads are bounded by the timeout given at open time and
// return whatever arrived before the deadline.
package transport

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/tamzrod/masermon/internal/fault"
)

// ErrTimeout marks a read that hit its deadline. The bytes read so far are
// returned alongside it.
var ErrTimeout = errors.New("transport: read timeout")

// Channel is the contract every adapter is written against.
type Channel interface {
	Write(p []byte) error
	// ReadExact reads n bytes or stops at the deadline with a short result.
	ReadExact(n int) ([]byte, error)
	// ReadLine reads up to and including LF. On timeout the partial line
	// (possibly empty) is returned with ErrTimeout.
	ReadLine() ([]byte, error)
	Close() error
}

// Stream implements Channel over any io.ReadWriteCloser whose Read returns
// periodically, either with data or with a timeout error.
type Stream struct {
	port    io.ReadWriteCloser
	timeout time.Duration

	isTimeout        func(error) bool
	setReadDeadline  func(time.Time) error
	setWriteDeadline func(time.Time) error

	now     func() time.Time
	pending []byte
	chunk   []byte
}

func newStream(port io.ReadWriteCloser, timeout time.Duration, isTimeout func(error) bool) *Stream {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Stream{
		port:      port,
		timeout:   timeout,
		isTimeout: isTimeout,
		now:       time.Now,
		chunk:     make([]byte, 256),
	}
}

func (s *Stream) Write(p []byte) error {
	if s.setWriteDeadline != nil {
		_ = s.setWriteDeadline(s.now().Add(s.timeout))
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fault.New(fault.Transport, "write", err)
		}
		p = p[n:]
	}
	return nil
}

func (s *Stream) ReadExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	deadline := s.now().Add(s.timeout)

	for len(out) < n {
		if len(s.pending) > 0 {
			k := min(n-len(out), len(s.pending))
			out = append(out, s.pending[:k]...)
			s.pending = s.pending[k:]
			continue
		}
		if err := s.fill(deadline); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Stream) ReadLine() ([]byte, error) {
	var line []byte
	deadline := s.now().Add(s.timeout)

	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line = append(line, s.pending[:i+1]...)
			s.pending = s.pending[i+1:]
			return line, nil
		}
		line = append(line, s.pending...)
		s.pending = s.pending[:0]

		if err := s.fill(deadline); err != nil {
			return line, err
		}
	}
}

func (s *Stream) Close() error {
	if s == nil || s.port == nil {
		return nil
	}
	return s.port.Close()
}

// fill performs reads until at least one byte is pending or the deadline
// passes. Driver timeouts shorter than the deadline are absorbed here.
func (s *Stream) fill(deadline time.Time) error {
	for {
		if !s.now().Before(deadline) {
			return fault.New(fault.Timeout, "read", ErrTimeout)
		}
		if s.setReadDeadline != nil {
			_ = s.setReadDeadline(deadline)
		}

		n, err := s.port.Read(s.chunk)
		if n > 0 {
			s.pending = append(s.pending, s.chunk[:n]...)
			return nil
		}
		if err == nil || (s.isTimeout != nil && s.isTimeout(err)) {
			continue
		}
		return fault.New(fault.Transport, "read", err)
	}
}

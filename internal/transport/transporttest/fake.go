// internal/transport/transporttest/fake.go

// Package transporttest provides an in-memory transport.Channel for adapter
// tests. Nothing ever blocks: an empty receive buffer behaves like a read
// that hit its deadline.
package transporttest

import (
	"bytes"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/transport"
)

// Fake records writes and serves reads from a buffer that Respond and Feed
// fill.
type Fake struct {
	// Respond is called with every write; its result is appended to the
	// receive buffer.
	Respond func(p []byte) []byte

	Written [][]byte
	Closed  bool

	rx      []byte
	readErr []error
}

var _ transport.Channel = (*Fake)(nil)

// Feed appends bytes to the receive buffer.
func (f *Fake) Feed(chunks ...[]byte) {
	for _, c := range chunks {
		f.rx = append(f.rx, c...)
	}
}

// FeedString is Feed for text protocols.
func (f *Fake) FeedString(s string) { f.Feed([]byte(s)) }

// FailNextRead queues err to be returned by the next read call. Like a
// real link fault, the failing read discards whatever was buffered.
func (f *Fake) FailNextRead(err error) {
	f.readErr = append(f.readErr, err)
}

// Pending returns the unread receive buffer.
func (f *Fake) Pending() []byte { return f.rx }

// WrittenString joins all writes.
func (f *Fake) WrittenString() string {
	return string(bytes.Join(f.Written, nil))
}

func (f *Fake) Write(p []byte) error {
	cp := append([]byte(nil), p...)
	f.Written = append(f.Written, cp)
	if f.Respond != nil {
		f.rx = append(f.rx, f.Respond(cp)...)
	}
	return nil
}

func (f *Fake) ReadExact(n int) ([]byte, error) {
	if err := f.popErr(); err != nil {
		return nil, err
	}
	k := min(n, len(f.rx))
	out := append([]byte(nil), f.rx[:k]...)
	f.rx = f.rx[k:]
	if k < n {
		return out, timeout()
	}
	return out, nil
}

func (f *Fake) ReadLine() ([]byte, error) {
	if err := f.popErr(); err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(f.rx, '\n'); i >= 0 {
		out := append([]byte(nil), f.rx[:i+1]...)
		f.rx = f.rx[i+1:]
		return out, nil
	}
	out := append([]byte(nil), f.rx...)
	f.rx = f.rx[:0]
	return out, timeout()
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

func (f *Fake) popErr() error {
	if len(f.readErr) == 0 {
		return nil
	}
	err := f.readErr[0]
	f.readErr = f.readErr[1:]
	f.rx = f.rx[:0]
	return err
}

func timeout() error {
	return fault.New(fault.Timeout, "read", transport.ErrTimeout)
}

// Lines answers each CRLF-terminated command with the reply mapped to it.
// Unknown commands get no reply.
func Lines(replies map[string]string) func([]byte) []byte {
	return func(p []byte) []byte {
		cmd := string(bytes.TrimRight(p, "\r\n"))
		if r, ok := replies[cmd]; ok {
			return []byte(r)
		}
		return nil
	}
}

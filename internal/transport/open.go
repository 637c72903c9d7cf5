// internal/transport/open.go
package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/goburrow/serial"

	"github.com/tamzrod/masermon/internal/fault"
)

const (
	DefaultTimeout = 2 * time.Second

	// serialPollInterval bounds a single driver read so the stream can
	// enforce its own deadline.
	serialPollInterval = 100 * time.Millisecond

	tcpScheme = "tcp://"
)

// Config describes one point-to-point link. It is not modified after Open.
type Config struct {
	Address     string // device path, or tcp://host:port
	BaudRate    int
	DataBits    int
	Parity      string // "N", "E", "O"
	StopBits    int
	FlowControl string // "none", "xonxoff", "rtscts"
	Timeout     time.Duration
}

// IsNetwork reports whether the address names a TCP serial bridge.
func (c Config) IsNetwork() bool {
	return strings.HasPrefix(c.Address, tcpScheme)
}

// Open connects to the device. Serial settings are ignored for TCP bridges.
func Open(cfg Config) (*Stream, error) {
	if cfg.Address == "" {
		return nil, errors.New("transport: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IsNetwork() {
		return openTCP(cfg)
	}
	return openSerial(cfg)
}

func openSerial(cfg Config) (*Stream, error) {
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  min(cfg.Timeout, serialPollInterval),
	})
	if err != nil {
		return nil, fault.New(fault.Transport, "open "+cfg.Address, err)
	}

	return newStream(port, cfg.Timeout, func(err error) bool {
		return errors.Is(err, serial.ErrTimeout)
	}), nil
}

func openTCP(cfg Config) (*Stream, error) {
	addr := strings.TrimPrefix(cfg.Address, tcpScheme)

	conn, err := net.DialTimeout("tcp", addr, cfg.Timeout)
	if err != nil {
		return nil, fault.New(fault.Transport, "dial "+addr, err)
	}

	return NewConnStream(conn, cfg.Timeout), nil
}

// NewConnStream wraps an established net.Conn, using read/write deadlines
// to bound each operation.
func NewConnStream(conn net.Conn, timeout time.Duration) *Stream {
	s := newStream(conn, timeout, isNetTimeout)
	s.setReadDeadline = conn.SetReadDeadline
	s.setWriteDeadline = conn.SetWriteDeadline
	return s
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c Config) String() string {
	if c.IsNetwork() {
		return c.Address
	}
	return fmt.Sprintf("%s %d %d%s%d", c.Address, c.BaudRate, c.DataBits, c.Parity, c.StopBits)
}

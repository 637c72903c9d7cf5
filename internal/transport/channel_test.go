// internal/transport/channel_test.go
package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/masermon/internal/fault"
)

func pipeStream(t *testing.T, timeout time.Duration) (*Stream, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})
	return NewConnStream(local, timeout), remote
}

func TestReadExactReturnsShortOnTimeout(t *testing.T) {
	s, remote := pipeStream(t, 150*time.Millisecond)

	go func() { _, _ = remote.Write([]byte("ab")) }()

	start := time.Now()
	got, err := s.ReadExact(4)
	elapsed := time.Since(start)

	assert.Equal(t, []byte("ab"), got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, fault.Is(err, fault.Timeout))
	assert.Less(t, elapsed, time.Second)
}

func TestReadExactAcrossChunks(t *testing.T) {
	s, remote := pipeStream(t, time.Second)

	go func() {
		_, _ = remote.Write([]byte("0A"))
		_, _ = remote.Write([]byte("3\r\n"))
	}()

	got, err := s.ReadExact(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("0A3\r"), got)

	// the trailing LF stays buffered for the next read
	got, err = s.ReadExact(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("\n"), got)
}

func TestReadLineSplitsOnLF(t *testing.T) {
	s, remote := pipeStream(t, time.Second)

	go func() { _, _ = remote.Write([]byte("first\r\nsecond\r\n")) }()

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "first\r\n", string(line))

	line, err = s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "second\r\n", string(line))
}

func TestReadLineEmptyOnIdleLink(t *testing.T) {
	s, _ := pipeStream(t, 50*time.Millisecond)

	line, err := s.ReadLine()
	assert.Empty(t, line)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWriteDeliversAllBytes(t *testing.T) {
	s, remote := pipeStream(t, time.Second)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		_, _ = io.ReadFull(remote, buf)
		done <- buf
	}()

	require.NoError(t, s.Write([]byte("*IDN?")))
	assert.Equal(t, []byte("*IDN?"), <-done)
}

func TestClosedLinkIsTransportError(t *testing.T) {
	s, remote := pipeStream(t, time.Second)
	require.NoError(t, remote.Close())

	_, err := s.ReadExact(1)
	require.Error(t, err)
	assert.Equal(t, fault.Transport, fault.KindOf(err))
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestOpenRejectsEmptyAddress(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpenTCPBridge(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte("OK\n"))
		time.Sleep(200 * time.Millisecond)
	}()

	s, err := Open(Config{Address: "tcp://" + ln.Addr().String(), Timeout: time.Second})
	require.NoError(t, err)
	defer s.Close()

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(line))
}

func TestConfigString(t *testing.T) {
	serial := Config{Address: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: 1}
	assert.Equal(t, "/dev/ttyUSB0 9600 8N1", serial.String())

	bridge := Config{Address: "tcp://10.0.0.5:4001", BaudRate: 9600}
	assert.Equal(t, "tcp://10.0.0.5:4001", bridge.String())
}

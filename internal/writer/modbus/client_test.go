// internal/writer/modbus/client_test.go
package modbus

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fc16 struct {
	unit uint8
	addr uint16
	regs []uint16
}

// serveFC16 acknowledges Write Multiple Registers requests and records
// them. With dropFirst the first request is read and the connection hung up
// without a reply.
func serveFC16(t *testing.T, dropFirst bool) (string, func() []fc16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	var mu sync.Mutex
	var got []fc16

	serve := func(conn net.Conn, drop bool) {
		defer conn.Close()

		for {
			mbap := make([]byte, 7)
			if _, err := io.ReadFull(conn, mbap); err != nil {
				return
			}
			pdu := make([]byte, int(binary.BigEndian.Uint16(mbap[4:6]))-1)
			if _, err := io.ReadFull(conn, pdu); err != nil {
				return
			}

			if drop {
				return
			}

			addr := binary.BigEndian.Uint16(pdu[1:3])
			qty := binary.BigEndian.Uint16(pdu[3:5])
			regs := make([]uint16, qty)
			for i := range regs {
				regs[i] = binary.BigEndian.Uint16(pdu[6+2*i:])
			}
			mu.Lock()
			got = append(got, fc16{unit: mbap[6], addr: addr, regs: regs})
			mu.Unlock()

			resp := make([]byte, 12)
			copy(resp[0:4], mbap[0:4])
			binary.BigEndian.PutUint16(resp[4:6], 6)
			resp[6] = mbap[6]
			copy(resp[7:12], pdu[0:5])
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}

	go func() {
		for n := 0; ; n++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn, dropFirst && n == 0)
		}
	}()

	return ln.Addr().String(), func() []fc16 {
		mu.Lock()
		defer mu.Unlock()
		return append([]fc16(nil), got...)
	}
}

func TestWriteRegisters(t *testing.T) {
	addr, writes := serveFC16(t, false)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteRegisters(3, 40, []uint16{1, 0x4546, 65535}))
	require.NoError(t, c.WriteRegisters(4, 42, []uint16{9}))

	got := writes()
	require.Len(t, got, 2)
	assert.Equal(t, fc16{unit: 3, addr: 40, regs: []uint16{1, 0x4546, 65535}}, got[0])
	assert.Equal(t, fc16{unit: 4, addr: 42, regs: []uint16{9}}, got[1])
}

func TestWriteRegistersRedialsAfterFailure(t *testing.T) {
	addr, writes := serveFC16(t, true)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	err = c.WriteRegisters(1, 0, []uint16{2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)

	require.NoError(t, c.WriteRegisters(1, 0, []uint16{1}))
	assert.Equal(t, []fc16{{unit: 1, addr: 0, regs: []uint16{1}}}, writes())
}

func TestWriteRegistersEmpty(t *testing.T) {
	addr, writes := serveFC16(t, false)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteRegisters(1, 0, nil))
	assert.Empty(t, writes())
}

func TestNewEndpointClientErrors(t *testing.T) {
	_, err := NewEndpointClient(Config{})
	assert.Error(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewEndpointClient(Config{Endpoint: dead, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestPackRegisters(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0xFF}, packRegisters([]uint16{0x1234, 0x00FF}))
}

// internal/config/normalize_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	c := valid(ProtocolEFOSB)
	Normalize(c)

	assert.Equal(t, "localhost", c.Sink.Host)
	assert.Equal(t, 8086, c.Sink.Port)
	assert.Equal(t, "EFOStest", c.Sink.Database)
	assert.True(t, c.Sink.TLSEnabled())
	assert.Equal(t, "maserdata", c.Device.Name)
	assert.Equal(t, "/dev/ttyUSB0", c.Device.Transport.Address)
	assert.Equal(t, 9600, c.Device.Transport.BaudRate)
	assert.Equal(t, 8, c.Device.Transport.DataBits)
	assert.Equal(t, "N", c.Device.Transport.Parity)
	assert.Equal(t, 1, c.Device.Transport.StopBits)
	assert.Equal(t, "none", c.Device.Transport.FlowControl)
	assert.Equal(t, 2000, c.Device.Transport.TimeoutMs)
	assert.Equal(t, 30, c.Device.SyncAttempts)
	assert.Equal(t, 10000, c.Poll.IntervalMs)
	assert.Nil(t, c.Status)
}

func TestNormalize_ProtocolSpecific(t *testing.T) {
	ticc := valid(ProtocolTICC)
	ticc.Poll.IntervalMs = 5000
	Normalize(ticc)
	assert.Equal(t, 115200, ticc.Device.Transport.BaudRate)
	assert.Equal(t, "xonxoff", ticc.Device.Transport.FlowControl)
	assert.Zero(t, ticc.Poll.IntervalMs)

	ve := valid(ProtocolVEDirect)
	Normalize(ve)
	assert.Equal(t, 19200, ve.Device.Transport.BaudRate)
	assert.Zero(t, ve.Poll.IntervalMs)

	dpm := valid(ProtocolDPM7885)
	Normalize(dpm)
	assert.Equal(t, 10, dpm.Device.SyncAttempts)
}

func TestNormalize_FlowControlDefaults(t *testing.T) {
	want := map[string]string{
		ProtocolEFOSB:    "none",
		ProtocolVCH1006:  "none",
		ProtocolHP5071A:  "xonxoff",
		ProtocolDPM7885:  "xonxoff",
		ProtocolBME280:   "none",
		ProtocolTICC:     "xonxoff",
		ProtocolVEDirect: "none",
	}
	for _, p := range Protocols {
		c := valid(p)
		Normalize(c)
		assert.Equal(t, want[p], c.Device.Transport.FlowControl, p)
	}

	explicit := valid(ProtocolHP5071A)
	explicit.Device.Transport.FlowControl = "NONE"
	Normalize(explicit)
	assert.Equal(t, "none", explicit.Device.Transport.FlowControl)
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	off := false
	c := valid(ProtocolHP5071A)
	c.Sink.TLS = &off
	c.Device.Transport.BaudRate = 4800
	c.Poll.IntervalMs = 1500
	Normalize(c)

	assert.False(t, c.Sink.TLSEnabled())
	assert.Equal(t, 4800, c.Device.Transport.BaudRate)
	assert.Equal(t, 1500, c.Poll.IntervalMs)
}

func TestNormalize_StatusName(t *testing.T) {
	c := valid(ProtocolEFOSB)
	c.Device.Name = "maser-hydrogen-north-01"
	c.Status = &StatusConfig{Endpoint: "plc:502"}
	Normalize(c)

	assert.Equal(t, "maser-hydrogen-n", c.Status.DeviceName)
	assert.Equal(t, 2000, c.Status.TimeoutMs)
}

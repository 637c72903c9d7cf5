// internal/writer/types.go
package writer

import (
	"github.com/tamzrod/masermon/internal/measurement"
	"github.com/tamzrod/masermon/internal/status"
)

// Client is one connection to the time-series database.
type Client interface {
	// EnsureDatabase creates the database if needed and selects it for
	// later writes.
	EnsureDatabase(name string) error
	WritePoints(ms []measurement.Measurement) error
	Close() error
}

// ClientFactory makes ONE connection attempt per call.
type ClientFactory func() (Client, error)

// StatusWriter is the delivery-only contract for device status.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// StatusPlan places one device's status block on a Modbus endpoint.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// registerClient is the exact contract the status writer uses.
type registerClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/masermon/internal/status"
)

// DeviceStatusWriter mirrors the health snapshot into a holding register
// block. The first write, and the first write after any failure, asserts
// the whole block including the device name; otherwise only changed slots
// are written.
type DeviceStatusWriter struct {
	plan StatusPlan
	cli  registerClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

func NewDeviceStatusWriter(plan StatusPlan, cli registerClient) *DeviceStatusWriter {
	return &DeviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true,
		last:     status.Snapshot{Health: status.HealthUnknown},
		nameRegs: status.EncodeName(plan.DeviceName),
	}
}

func (sw *DeviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: no client")
	}

	base := sw.baseAddr()

	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, base, status.Encode(s, sw.nameRegs)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	slots := []struct {
		slot uint16
		name string
		old  *uint16
		val  uint16
	}{
		{status.SlotHealthCode, "health", &sw.last.Health, s.Health},
		{status.SlotLastErrorCode, "last_error", &sw.last.LastErrorCode, s.LastErrorCode},
		{status.SlotSecondsInError, "seconds_in_error", &sw.last.SecondsInError, s.SecondsInError},
	}

	var errs []string
	for _, sl := range slots {
		if *sl.old == sl.val {
			continue
		}
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, base+sl.slot, []uint16{sl.val}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", sl.slot, sl.name, err))
			continue
		}
		*sl.old = sl.val
	}

	if len(errs) > 0 {
		// partial failure: re-assert everything on the next call
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (sw *DeviceStatusWriter) baseAddr() uint16 {
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

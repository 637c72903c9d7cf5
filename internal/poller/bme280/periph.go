// internal/poller/bme280/periph.go
package bme280

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// DefaultAddress is the Enviro+ board strapping.
const DefaultAddress = 0x76

// I2CSensor is a BME280 on a Linux I2C bus.
type I2CSensor struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// OpenI2C initialises the host drivers and opens the sensor. An empty bus
// name selects the first bus.
func OpenI2C(busName string, addr uint16) (*I2CSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bme280: host init: %w", err)
	}
	if addr == 0 {
		addr = DefaultAddress
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("bme280: open bus %q: %w", busName, err)
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280: device 0x%02x: %w", addr, err)
	}
	return &I2CSensor{bus: bus, dev: dev}, nil
}

func (s *I2CSensor) Read() (Reading, error) {
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		return Reading{}, err
	}
	return Reading{
		Temperature: env.Temperature.Celsius(),
		Pressure:    float64(env.Pressure) / float64(100*physic.Pascal),
		Humidity:    float64(env.Humidity) / float64(physic.PercentRH),
	}, nil
}

func (s *I2CSensor) Close() error {
	err := s.dev.Halt()
	if cerr := s.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

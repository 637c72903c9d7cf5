// internal/poller/bme280/bme280.go

// Package bme280 reads the Pimoroni Enviro+ BME280 environmental sensor.
package bme280

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/measurement"
)

const pressureScale = 100

// Reading is one sample in display units.
type Reading struct {
	Temperature float64 // °C
	Pressure    float64 // hPa
	Humidity    float64 // %RH
}

type Sensor interface {
	Read() (Reading, error)
	Close() error
}

type Config struct {
	Name string // measurement name
	Log  zerolog.Logger
}

type Adapter struct {
	cfg    Config
	sensor Sensor
	tags   measurement.Tags
}

func New(s Sensor, cfg Config) (*Adapter, error) {
	if s == nil {
		return nil, errors.New("bme280: sensor required")
	}
	if cfg.Name == "" {
		return nil, errors.New("bme280: measurement name required")
	}
	return &Adapter{
		cfg:    cfg,
		sensor: s,
		tags:   measurement.Tags{"masertype": "bme280"},
	}, nil
}

// Identify takes one reading to prove the sensor is wired up.
func (a *Adapter) Identify(ctx context.Context) (measurement.Tags, error) {
	r, err := a.sensor.Read()
	if err != nil {
		return nil, fault.New(fault.FatalStartup, "first read", err)
	}
	a.cfg.Log.Info().Float64("temp", r.Temperature).Float64("pressure", r.Pressure).Msg("sensor ready")
	return a.tags.Clone(), nil
}

func (a *Adapter) PollOnce(ctx context.Context, at time.Time) (measurement.Measurement, error) {
	r, err := a.sensor.Read()
	if err != nil {
		return measurement.Measurement{}, fault.New(fault.Transport, "read", err)
	}
	return measurement.NewBuilder(a.cfg.Name, a.tags, at).
		Float("Pressure", pressureScale*r.Pressure).
		Float("Temp", r.Temperature).
		Float("Humidity", r.Humidity).
		Build()
}

func (a *Adapter) Close() error { return a.sensor.Close() }

// internal/calibration/calibration.go

// Package calibration holds the affine channel descriptors for the EFOS-B
// multi-channel readout.
package calibration

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChannelSpec converts one raw channel reading to physical units:
// (raw + SignedOffset) * Scale + Offset.
type ChannelSpec struct {
	ID           int     `yaml:"chan"`
	Name         string  `yaml:"name"`
	SignedOffset int     `yaml:"signed"`
	Scale        float64 `yaml:"scale"`
	Offset       float64 `yaml:"offset"`
}

// Apply converts raw to physical units.
func (c ChannelSpec) Apply(raw int) float64 {
	return float64(raw+c.SignedOffset)*c.Scale + c.Offset
}

// Table is an ordered set of channels. Poll order follows table order.
type Table []ChannelSpec

type tableFile struct {
	Channels Table `yaml:"channels"`
}

// Load reads a table from a YAML file of the form
//
//	channels:
//	  - {chan: 0, name: InputA_U, signed: -128, scale: 0.230, offset: 0}
func Load(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calibration: read %s: %w", path, err)
	}

	var f tableFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("calibration: parse %s: %w", path, err)
	}
	if err := f.Channels.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %s: %w", path, err)
	}
	return f.Channels, nil
}

// Validate checks ids and names are unique, ids fit the two-digit command
// field and no scale is zero.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("empty channel table")
	}

	ids := make(map[int]struct{}, len(t))
	names := make(map[string]struct{}, len(t))

	for _, c := range t {
		if c.ID < 0 || c.ID > 99 {
			return fmt.Errorf("channel %d: id out of range 0-99", c.ID)
		}
		if c.Name == "" {
			return fmt.Errorf("channel %d: name required", c.ID)
		}
		if c.Scale == 0 {
			return fmt.Errorf("channel %d (%s): scale must be non-zero", c.ID, c.Name)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("channel %d: duplicate id", c.ID)
		}
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("channel %d: duplicate name %q", c.ID, c.Name)
		}
		ids[c.ID] = struct{}{}
		names[c.Name] = struct{}{}
	}
	return nil
}

// EFOSB is the factory table for the EFOS-B active hydrogen maser.
func EFOSB() Table {
	return Table{
		{0, "InputA_U", -128, 0.230, 0},
		{1, "InputA_I", -128, 0.096, 0},
		{2, "InputB_U", -128, 0.230, 0},
		{3, "InputB_I", -128, 0.096, 0},
		{4, "Temp", -128, 0.960, -1.1},
		{5, "Hpress_set", -128, 0.096, 0},
		{6, "Hpress_read", -128, 0.096, 0},
		{7, "Palladium_heat", -128, 0.192, 0},
		{8, "LO_heat", -128, 0.192, 0},
		{9, "UO_heat", -128, 0.192, 0},
		{10, "Dalle_heat", -128, 0.192, 0},
		{11, "LI_heat", -128, 0.192, 0},
		{12, "UI_heat", -128, 0.192, 0},
		{13, "Cavity_heat", -128, 0.192, 0},
		{14, "Temp_cavity", -128, 0.010, 0},
		{15, "Temp_ambient", -128, 0.096, 26},
		{16, "Cavity_var", -128, 0.096, 0},
		{17, "C_field", -128, 1.920e-6, 0},
		{18, "int_N2_HT_U", -128, 0.048e+3, 0},
		{19, "int_N2_HT_I", -128, 19.00e-6, 0},
		{20, "int_N1_HT_U", -128, 0.048e+3, 0},
		{21, "int_N1_HT_I", -128, 19.00e-6, 0},
		{22, "ext_HT_U", -128, 0.048e+3, 0},
		{23, "ext_HT_I", -128, 19.00e-6, 0},
		{24, "RF_U", -128, 0.298, 0},
		{25, "RF_I", -128, 0.010, 0},
		{26, "p24V", -128, 0.240, 0},
		{27, "p15V1", -128, 0.148, 0},
		{28, "n15V1", -128, 0.148, 0},
		{29, "p5V", -128, 0.148, 0},
		{30, "p15V2", -128, 0.148, 0},
		{31, "n15V2", -128, 0.148, 0},
		{32, "OCXO", 0, 0.078, 0},
		{33, "Ampl5.7k", 0, 0.078, 0},
		{34, "Lock", 0, 1.000, 0},
	}
}

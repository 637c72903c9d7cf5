// internal/measurement/measurement.go

// Package measurement is the canonical record handed from adapters to the
// sink: one name, a tag set, a field set and a single UTC timestamp.
package measurement

import (
	"errors"
	"maps"
	"sort"
	"time"
)

// Tags identify the device. Values are strings on the wire.
type Tags map[string]string

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	return maps.Clone(t)
}

// Measurement is never mutated after it leaves its Builder.
type Measurement struct {
	Name   string
	Tags   Tags
	Fields map[string]any // float64, int64 or string
	Time   time.Time
}

// FieldNames returns the sorted field keys.
func (m Measurement) FieldNames() []string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrEmpty is returned by Build when no field was set.
var ErrEmpty = errors.New("measurement: no fields")

// Builder assembles one cycle's measurement. Fields are only ever added for
// values that decoded successfully; a failed reading is simply not set.
type Builder struct {
	name   string
	tags   Tags
	fields map[string]any
	at     time.Time
}

// NewBuilder starts a measurement stamped with at (converted to UTC).
func NewBuilder(name string, tags Tags, at time.Time) *Builder {
	return &Builder{
		name:   name,
		tags:   tags.Clone(),
		fields: make(map[string]any),
		at:     at.UTC(),
	}
}

// Tag adds or replaces a per-cycle tag.
func (b *Builder) Tag(key, value string) *Builder {
	b.tags[key] = value
	return b
}

func (b *Builder) Float(key string, v float64) *Builder {
	b.fields[key] = v
	return b
}

func (b *Builder) Int(key string, v int64) *Builder {
	b.fields[key] = v
	return b
}

func (b *Builder) String(key, v string) *Builder {
	b.fields[key] = v
	return b
}

// Build returns the finished measurement. The builder's maps are copied so
// later builder calls cannot reach it.
func (b *Builder) Build() (Measurement, error) {
	if len(b.fields) == 0 {
		return Measurement{}, ErrEmpty
	}
	return Measurement{
		Name:   b.name,
		Tags:   b.tags.Clone(),
		Fields: maps.Clone(b.fields),
		Time:   b.at,
	}, nil
}

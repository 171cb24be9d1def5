// Package schema loads and indexes the sensor catalogue: which sensor
// types exist, which metrics each type carries, and the unit category,
// display mnemonic and accepted range of every metric. The catalogue is
// compiled in; an alternate file can be loaded for boats with unusual
// instrumentation. A catalogue that fails to parse or validate is the
// one startup error treated as fatal.
package schema

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"binnacle/internal/units"
)

//go:embed schema.yaml
var builtin []byte

// SensorType names one kind of instrument feeding the cache. Multiple
// physical units of the same kind are told apart by instance number, not
// by type.
type SensorType string

const (
	Battery     SensorType = "battery"
	Depth       SensorType = "depth"
	Engine      SensorType = "engine"
	Wind        SensorType = "wind"
	Speed       SensorType = "speed"
	Temperature SensorType = "temperature"
	Compass     SensorType = "compass"
	GPS         SensorType = "gps"
	Autopilot   SensorType = "autopilot"
	Navigation  SensorType = "navigation"
	Weather     SensorType = "weather"
	Tank        SensorType = "tank"
	Rudder      SensorType = "rudder"
)

var knownTypes = map[SensorType]bool{
	Battery: true, Depth: true, Engine: true, Wind: true, Speed: true,
	Temperature: true, Compass: true, GPS: true, Autopilot: true,
	Navigation: true, Weather: true, Tank: true, Rudder: true,
}

// Valid reports whether st is one of the catalogued sensor types. The
// vocabulary is fixed; an override file may tune fields and ranges but
// not invent new types.
func (st SensorType) Valid() bool { return knownTypes[st] }

// Field describes one metric of a sensor type.
type Field struct {
	Key      string         `yaml:"key"`
	Hardware string         `yaml:"hardware,omitempty"`
	Mnemonic string         `yaml:"mnemonic"`
	Label    string         `yaml:"label,omitempty"`
	Category units.Category `yaml:"category"`
	Min      *float64       `yaml:"min,omitempty"`
	Max      *float64       `yaml:"max,omitempty"`
}

// HardwareName returns the name sentence handlers use for this field.
// It defaults to the storage key.
func (f *Field) HardwareName() string {
	if f.Hardware != "" {
		return f.Hardware
	}
	return f.Key
}

// InRange reports whether a canonical value is acceptable for this
// field. NaN and infinities are never acceptable.
func (f *Field) InRange(si float64) bool {
	if math.IsNaN(si) || math.IsInf(si, 0) {
		return false
	}
	if f.Min != nil && si < *f.Min {
		return false
	}
	if f.Max != nil && si > *f.Max {
		return false
	}
	return true
}

// TypeSchema is the catalogue entry for one sensor type.
type TypeSchema struct {
	Type   SensorType
	Label  string
	Fields []Field

	byKey      map[string]int
	byHardware map[string]int
}

// Field looks a metric up by storage key.
func (t *TypeSchema) Field(key string) (*Field, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

// FieldByHardware looks a metric up by the name a handler emits, falling
// back to the storage key when no hardware alias matches.
func (t *TypeSchema) FieldByHardware(name string) (*Field, bool) {
	if t == nil {
		return nil, false
	}
	if i, ok := t.byHardware[name]; ok {
		return &t.Fields[i], true
	}
	return t.Field(name)
}

// Registry is the parsed, indexed catalogue.
type Registry struct {
	types map[SensorType]*TypeSchema
}

// Type returns the catalogue entry for a sensor type.
func (r *Registry) Type(st SensorType) (*TypeSchema, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.types[st]
	return t, ok
}

// Types returns all catalogued sensor types in sorted order.
func (r *Registry) Types() []SensorType {
	if r == nil {
		return nil
	}
	out := make([]SensorType, 0, len(r.types))
	for st := range r.types {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type document struct {
	Types map[string]typeDoc `yaml:"types"`
}

type typeDoc struct {
	Label  string  `yaml:"label"`
	Fields []Field `yaml:"fields"`
}

// Builtin parses the compiled-in catalogue.
func Builtin() (*Registry, error) {
	return Parse(builtin)
}

// LoadFile parses a catalogue from disk.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(b)
}

// Parse parses and validates a catalogue document.
func Parse(b []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, fmt.Errorf("schema: no sensor types defined")
	}

	reg := &Registry{types: make(map[SensorType]*TypeSchema, len(doc.Types))}
	for name, td := range doc.Types {
		if !SensorType(name).Valid() {
			return nil, fmt.Errorf("schema: unknown sensor type %q", name)
		}
		if len(td.Fields) == 0 {
			return nil, fmt.Errorf("schema: sensor type %q has no fields", name)
		}
		ts := &TypeSchema{
			Type:       SensorType(name),
			Label:      td.Label,
			Fields:     td.Fields,
			byKey:      make(map[string]int, len(td.Fields)),
			byHardware: make(map[string]int, len(td.Fields)),
		}
		for i := range ts.Fields {
			f := &ts.Fields[i]
			if f.Key == "" {
				return nil, fmt.Errorf("schema: %s field %d has no key", name, i)
			}
			if !f.Category.Valid() {
				return nil, fmt.Errorf("schema: %s.%s has unknown category %q", name, f.Key, f.Category)
			}
			if f.Min != nil && f.Max != nil && *f.Min >= *f.Max {
				return nil, fmt.Errorf("schema: %s.%s range [%v, %v] is empty or inverted", name, f.Key, *f.Min, *f.Max)
			}
			if _, dup := ts.byKey[f.Key]; dup {
				return nil, fmt.Errorf("schema: %s declares field %q twice", name, f.Key)
			}
			ts.byKey[f.Key] = i
			hw := f.HardwareName()
			if prev, dup := ts.byHardware[hw]; dup {
				return nil, fmt.Errorf("schema: %s hardware name %q claimed by both %q and %q",
					name, hw, ts.Fields[prev].Key, f.Key)
			}
			ts.byHardware[hw] = i
		}
		reg.types[SensorType(name)] = ts
	}
	return reg, nil
}

package sensors

import (
	"fmt"
	"strings"
	"time"

	"binnacle/internal/schema"
	"binnacle/internal/units"
)

// InstanceID distinguishes multiple physical units of the same sensor
// type. Instances are never negative.
type InstanceID int

// Key identifies one sensor instance in the cache.
type Key struct {
	Type     schema.SensorType
	Instance InstanceID
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%d]", k.Type, k.Instance)
}

// Reading is one decoded measurement on its way into the cache. Field
// is the hardware name the handler emits, which the schema maps to a
// storage key. Value is expressed in Unit, not yet canonical.
type Reading struct {
	Type     schema.SensorType
	Instance InstanceID
	Field    string
	Value    float64
	Unit     units.Unit
}

// MetricValue is one stored metric. SI is the value in the canonical
// unit of its category; Unit and Formatted reflect the display
// preferences in force when the value was rendered. Values are
// immutable once built, so readers can hold them without copying
// concerns.
type MetricValue struct {
	Type      schema.SensorType `json:"type"`
	Instance  InstanceID        `json:"instance"`
	Key       string            `json:"key"`
	Mnemonic  string            `json:"mnemonic,omitempty"`
	Label     string            `json:"label,omitempty"`
	Category  units.Category    `json:"category"`
	SI        float64           `json:"si"`
	Unit      units.Unit        `json:"unit"`
	Formatted string            `json:"formatted"`
	UpdatedAt time.Time         `json:"updated_utc"`
}

// RangeError reports a converted value outside the schema range of its
// field. The previous stored value, if any, stays in place.
type RangeError struct {
	Key    Key
	Metric string
	SI     float64
	Min    *float64
	Max    *float64
}

func (e *RangeError) Error() string {
	lo, hi := "-inf", "+inf"
	if e.Min != nil {
		lo = fmt.Sprintf("%g", *e.Min)
	}
	if e.Max != nil {
		hi = fmt.Sprintf("%g", *e.Max)
	}
	return fmt.Sprintf("sensors: %s.%s value %g outside range [%s, %s]", e.Key, e.Metric, e.SI, lo, hi)
}

// aggKind selects one of the virtual aggregate metrics derived from a
// stored field.
type aggKind int

const (
	aggNone aggKind = iota
	aggMin
	aggMax
	aggAvg
)

// splitVirtual splits a query key like "voltage.min" into its base key
// and aggregate kind. Keys without a recognized suffix are returned
// unchanged.
func splitVirtual(key string) (string, aggKind) {
	dot := strings.LastIndexByte(key, '.')
	if dot == -1 {
		return key, aggNone
	}
	switch key[dot+1:] {
	case "min":
		return key[:dot], aggMin
	case "max":
		return key[:dot], aggMax
	case "avg":
		return key[:dot], aggAvg
	default:
		return key, aggNone
	}
}

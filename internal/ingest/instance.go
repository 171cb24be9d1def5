package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"binnacle/internal/sensors"
)

// Transducer identifiers carry their instance as a trailing digit run:
// a short name, an optional separator, then the digits. FUEL_0 is tank
// 0, ENGR_02 is engine 2. Identifiers that do not fit the shape fall
// back to a per-sentence-type default.
var instancePattern = regexp.MustCompile(`(?i)^[A-Z]{2,8}[_-]?([0-9]{1,4})$`)

// ParseInstanceID extracts the instance number embedded in a transducer
// identifier.
func ParseInstanceID(identifier string) (sensors.InstanceID, bool) {
	m := instancePattern.FindStringSubmatch(strings.TrimSpace(identifier))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return sensors.InstanceID(n), true
}

// Resolver assigns instance numbers. Identifiers with an embedded
// number win; otherwise the sentence type's configured default applies.
// Two sentence types that feed logically different sensors of the same
// type must be configured with distinct defaults or they will land on
// the same instance.
type Resolver struct {
	defaults map[string]sensors.InstanceID
}

// Built-in defaults. Water temperature sentences and air temperature
// transducers both carry bare temperatures; they are kept apart by
// giving the transducer route instance 1. Everything else starts at 0.
var builtinDefaults = map[string]sensors.InstanceID{
	"XDR:C": 1,
}

// NewResolver merges configured overrides over the built-in defaults.
// Keys are sentence types ("MTW") or XDR routes by measurement letter
// ("XDR:C"), case-insensitive.
func NewResolver(overrides map[string]int) *Resolver {
	d := make(map[string]sensors.InstanceID, len(builtinDefaults)+len(overrides))
	for k, v := range builtinDefaults {
		d[k] = v
	}
	for k, v := range overrides {
		if v < 0 {
			continue
		}
		d[strings.ToUpper(strings.TrimSpace(k))] = sensors.InstanceID(v)
	}
	return &Resolver{defaults: d}
}

// Default returns the configured default instance for a sentence type
// or XDR route key.
func (r *Resolver) Default(key string) sensors.InstanceID {
	if r == nil {
		return 0
	}
	return r.defaults[strings.ToUpper(key)]
}

// Resolve picks the instance for a sentence type and optional
// transducer identifier.
func (r *Resolver) Resolve(key, identifier string) sensors.InstanceID {
	if id, ok := ParseInstanceID(identifier); ok {
		return id
	}
	return r.Default(key)
}

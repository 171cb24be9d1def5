package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"binnacle/internal/sensors"
)

func TestParseInstanceID(t *testing.T) {
	cases := []struct {
		identifier string
		want       sensors.InstanceID
		ok         bool
	}{
		{"FUEL_0", 0, true},
		{"FUEL_1", 1, true},
		{"ENGR_02", 2, true},
		{"ENGINE-1", 1, true},
		{"BATT3", 3, true},
		{"fuel_7", 7, true},
		{" FUEL_4 ", 4, true},
		{"WATER_12", 12, true},

		// Ten name characters is past the limit.
		{"FRESHWATER_1", 0, false},
		// No digits at all.
		{"TempAir", 0, false},
		{"Barometer", 0, false},
		{"PITCH", 0, false},
		// One name character is too few.
		{"A1", 0, false},
		// Five digits is past the limit.
		{"FUEL_12345", 0, false},
		// Only one separator is allowed.
		{"FUEL_0_1", 0, false},
		{"", 0, false},
		{"42", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseInstanceID(tc.identifier)
		assert.Equal(t, tc.ok, ok, "identifier %q", tc.identifier)
		if tc.ok {
			assert.Equal(t, tc.want, got, "identifier %q", tc.identifier)
		}
	}
}

func TestResolverBuiltinDefaults(t *testing.T) {
	r := NewResolver(nil)

	// Air temperature transducers default to instance 1 so they do not
	// collide with water temperature from MTW on instance 0.
	assert.Equal(t, sensors.InstanceID(1), r.Default("XDR:C"))
	assert.Equal(t, sensors.InstanceID(0), r.Default("MTW"))
	assert.Equal(t, sensors.InstanceID(0), r.Default("XDR:P"))
}

func TestResolverResolve(t *testing.T) {
	r := NewResolver(nil)

	// An embedded number always wins.
	assert.Equal(t, sensors.InstanceID(2), r.Resolve("XDR:C", "ENGR_2"))
	assert.Equal(t, sensors.InstanceID(0), r.Resolve("XDR:P", "FUEL_0"))

	// No number in the identifier: fall back to the route default.
	assert.Equal(t, sensors.InstanceID(1), r.Resolve("XDR:C", "TempAir"))
	assert.Equal(t, sensors.InstanceID(0), r.Resolve("XDR:P", "Barometer"))
	assert.Equal(t, sensors.InstanceID(0), r.Resolve("XDR:V", ""))

	// Name too long for the pattern: default, not the trailing digit.
	assert.Equal(t, sensors.InstanceID(0), r.Resolve("XDR:V", "FRESHWATER_1"))
}

func TestResolverOverrides(t *testing.T) {
	r := NewResolver(map[string]int{
		"xdr:c": 4,
		"MTW":   2,
		"DPT":   -3, // negative instances are not a thing; ignored
	})

	assert.Equal(t, sensors.InstanceID(4), r.Default("XDR:C"))
	assert.Equal(t, sensors.InstanceID(4), r.Default("xdr:c"))
	assert.Equal(t, sensors.InstanceID(2), r.Default("MTW"))
	assert.Equal(t, sensors.InstanceID(0), r.Default("DPT"))
}

func TestResolverNilSafe(t *testing.T) {
	var r *Resolver
	assert.Equal(t, sensors.InstanceID(0), r.Default("MTW"))
	assert.Equal(t, sensors.InstanceID(3), r.Resolve("MTW", "SEA_3"))
}

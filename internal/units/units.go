// Package units defines the measurement categories used by the sensor
// schema, conversion between wire units and the canonical unit of each
// category, and rendering of canonical values into display strings
// according to user preferences.
//
// Every category has exactly one canonical unit. Values are converted to
// the canonical unit once, at ingestion, and stored that way. Display
// conversion happens at read time so a preference change never requires
// touching stored values.
package units

import "fmt"

// Category identifies a physical quantity. Every schema field belongs to
// exactly one category.
type Category string

const (
	Depth       Category = "depth"       // canonical: meters
	Length      Category = "length"      // canonical: meters
	Distance    Category = "distance"    // canonical: meters
	Speed       Category = "speed"       // canonical: meters per second
	Temperature Category = "temperature" // canonical: degrees Celsius
	Pressure    Category = "pressure"    // canonical: pascal
	Ratio       Category = "ratio"       // canonical: dimensionless, 0..1
	Volume      Category = "volume"      // canonical: liters
	Voltage     Category = "voltage"     // canonical: volts
	Current     Category = "current"     // canonical: amperes
	Angle       Category = "angle"       // canonical: degrees
	AngularRate Category = "angularRate" // canonical: degrees per minute
	Rotation    Category = "rotation"    // canonical: revolutions per minute
	Clock       Category = "clock"       // canonical: seconds since Unix epoch, UTC
	Latitude    Category = "latitude"    // canonical: decimal degrees, north positive
	Longitude   Category = "longitude"   // canonical: decimal degrees, east positive
	Duration    Category = "duration"    // canonical: hours
	Count       Category = "count"       // canonical: dimensionless
)

// Unit names a measurement unit as it appears in the schema document and
// in API payloads.
type Unit string

const (
	UnitMeter   Unit = "m"
	UnitFoot    Unit = "ft"
	UnitFathom  Unit = "fathom"
	UnitNM      Unit = "nm"
	UnitKM      Unit = "km"
	UnitMile    Unit = "mi"
	UnitMPS     Unit = "m/s"
	UnitKnot    Unit = "kn"
	UnitKPH     Unit = "km/h"
	UnitMPH     Unit = "mph"
	UnitCelsius Unit = "C"
	UnitFahr    Unit = "F"
	UnitKelvin  Unit = "K"
	UnitPascal  Unit = "Pa"
	UnitHPa     Unit = "hPa"
	UnitBar     Unit = "bar"
	UnitInHg    Unit = "inHg"
	UnitPSI     Unit = "psi"
	UnitRatio   Unit = "ratio"
	UnitPercent Unit = "%"
	UnitLiter   Unit = "L"
	UnitCubicM  Unit = "m3"
	UnitGallon  Unit = "gal"
	UnitVolt    Unit = "V"
	UnitAmp     Unit = "A"
	UnitDegree  Unit = "deg"
	UnitDegMin  Unit = "deg/min"
	UnitRPM     Unit = "rpm"
	UnitUnixSec Unit = "s"
	UnitHour    Unit = "h"
	UnitDDeg    Unit = "ddeg"
	UnitCount   Unit = "count"
)

// conversion maps a unit onto its category's canonical unit. All
// supported conversions are affine: canonical = value*factor + offset.
type conversion struct {
	category Category
	factor   float64
	offset   float64
}

var conversions = map[Unit]conversion{
	UnitMeter:   {Depth, 1, 0},
	UnitFoot:    {Depth, 0.3048, 0},
	UnitFathom:  {Depth, 1.8288, 0},
	UnitNM:      {Distance, 1852, 0},
	UnitKM:      {Distance, 1000, 0},
	UnitMile:    {Distance, 1609.344, 0},
	UnitMPS:     {Speed, 1, 0},
	UnitKnot:    {Speed, 1852.0 / 3600.0, 0},
	UnitKPH:     {Speed, 1000.0 / 3600.0, 0},
	UnitMPH:     {Speed, 1609.344 / 3600.0, 0},
	UnitCelsius: {Temperature, 1, 0},
	UnitFahr:    {Temperature, 5.0 / 9.0, -160.0 / 9.0},
	UnitKelvin:  {Temperature, 1, -273.15},
	UnitPascal:  {Pressure, 1, 0},
	UnitHPa:     {Pressure, 100, 0},
	UnitBar:     {Pressure, 100000, 0},
	UnitInHg:    {Pressure, 3386.389, 0},
	UnitPSI:     {Pressure, 6894.757, 0},
	UnitRatio:   {Ratio, 1, 0},
	UnitPercent: {Ratio, 0.01, 0},
	UnitLiter:   {Volume, 1, 0},
	UnitCubicM:  {Volume, 1000, 0},
	UnitGallon:  {Volume, 3.785411784, 0},
	UnitVolt:    {Voltage, 1, 0},
	UnitAmp:     {Current, 1, 0},
	UnitDegree:  {Angle, 1, 0},
	UnitDegMin:  {AngularRate, 1, 0},
	UnitRPM:     {Rotation, 1, 0},
	UnitUnixSec: {Clock, 1, 0},
	UnitHour:    {Duration, 1, 0},
	UnitDDeg:    {Latitude, 1, 0},
	UnitCount:   {Count, 1, 0},
}

// canonical names the storage unit of each category.
var canonical = map[Category]Unit{
	Depth:       UnitMeter,
	Length:      UnitMeter,
	Distance:    UnitMeter,
	Speed:       UnitMPS,
	Temperature: UnitCelsius,
	Pressure:    UnitPascal,
	Ratio:       UnitRatio,
	Volume:      UnitLiter,
	Voltage:     UnitVolt,
	Current:     UnitAmp,
	Angle:       UnitDegree,
	AngularRate: UnitDegMin,
	Rotation:    UnitRPM,
	Clock:       UnitUnixSec,
	Latitude:    UnitDDeg,
	Longitude:   UnitDDeg,
	Duration:    UnitHour,
	Count:       UnitCount,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := canonical[c]
	return ok
}

// Canonical returns the storage unit for the category.
func (c Category) Canonical() Unit {
	return canonical[c]
}

// CategoryOf returns the category a unit converts into.
func CategoryOf(u Unit) (Category, bool) {
	conv, ok := conversions[u]
	if !ok {
		return "", false
	}
	return conv.category, true
}

// ToCanonical converts a value expressed in u into the canonical unit of
// u's category. Latitude and Longitude share the decimal-degree unit, and
// Depth and Length share meters and feet, so the returned category is the
// conversion table's owner; callers that care about the exact category
// should already know it from the schema.
func ToCanonical(v float64, u Unit) (float64, error) {
	conv, ok := conversions[u]
	if !ok {
		return 0, fmt.Errorf("units: unknown unit %q", u)
	}
	return v*conv.factor + conv.offset, nil
}

// FromCanonical converts a canonical value into u.
func FromCanonical(v float64, u Unit) (float64, error) {
	conv, ok := conversions[u]
	if !ok {
		return 0, fmt.Errorf("units: unknown unit %q", u)
	}
	if conv.factor == 0 {
		return 0, fmt.Errorf("units: unit %q is not invertible", u)
	}
	return (v - conv.offset) / conv.factor, nil
}

// Convert converts a value from one unit to another within the same
// category.
func Convert(v float64, from, to Unit) (float64, error) {
	cf, ok := conversions[from]
	if !ok {
		return 0, fmt.Errorf("units: unknown unit %q", from)
	}
	ct, ok := conversions[to]
	if !ok {
		return 0, fmt.Errorf("units: unknown unit %q", to)
	}
	if !Compatible(cf.category, ct.category) {
		return 0, fmt.Errorf("units: cannot convert %q to %q", from, to)
	}
	si := v*cf.factor + cf.offset
	return (si - ct.offset) / ct.factor, nil
}

// Compatible reports whether two categories share a dimension. Depth,
// Length and Distance are all lengths in meters, and Latitude and
// Longitude are both decimal degrees.
func Compatible(a, b Category) bool {
	if a == b {
		return true
	}
	length := func(c Category) bool { return c == Depth || c == Length || c == Distance }
	coord := func(c Category) bool { return c == Latitude || c == Longitude }
	return length(a) && length(b) || coord(a) && coord(b)
}

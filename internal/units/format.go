package units

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// CoordinateStyle selects how latitude and longitude are rendered.
type CoordinateStyle string

const (
	CoordDecimal   CoordinateStyle = "dd"  // 47.60263 N
	CoordDegMin    CoordinateStyle = "ddm" // 47 36.158' N
	CoordDegMinSec CoordinateStyle = "dms" // 47 36' 9.5" N
)

// ClockStyle selects 24-hour or 12-hour clock rendering.
type ClockStyle string

const (
	Clock24 ClockStyle = "24h"
	Clock12 ClockStyle = "12h"
)

// Preferences holds the display units chosen by the user. Categories not
// listed here always render in their canonical unit.
type Preferences struct {
	Depth       Unit            `yaml:"depth" json:"depth"`
	Speed       Unit            `yaml:"speed" json:"speed"`
	Temperature Unit            `yaml:"temperature" json:"temperature"`
	Pressure    Unit            `yaml:"pressure" json:"pressure"`
	Volume      Unit            `yaml:"volume" json:"volume"`
	Distance    Unit            `yaml:"distance" json:"distance"`
	Coordinate  CoordinateStyle `yaml:"coordinate" json:"coordinate"`
	Clock       ClockStyle      `yaml:"clock" json:"clock"`
}

// DefaultPreferences returns the metric defaults used when no settings
// file overrides them.
func DefaultPreferences() Preferences {
	return Preferences{
		Depth:       UnitMeter,
		Speed:       UnitKnot,
		Temperature: UnitCelsius,
		Pressure:    UnitHPa,
		Volume:      UnitLiter,
		Distance:    UnitNM,
		Coordinate:  CoordDegMin,
		Clock:       Clock24,
	}
}

// DefaultAndValidate fills zero fields with defaults and rejects units
// that do not belong to the field's category.
func (p *Preferences) DefaultAndValidate() error {
	if p == nil {
		return fmt.Errorf("units: nil preferences")
	}
	def := DefaultPreferences()
	if p.Depth == "" {
		p.Depth = def.Depth
	}
	if p.Speed == "" {
		p.Speed = def.Speed
	}
	if p.Temperature == "" {
		p.Temperature = def.Temperature
	}
	if p.Pressure == "" {
		p.Pressure = def.Pressure
	}
	if p.Volume == "" {
		p.Volume = def.Volume
	}
	if p.Distance == "" {
		p.Distance = def.Distance
	}
	if p.Coordinate == "" {
		p.Coordinate = def.Coordinate
	}
	if p.Clock == "" {
		p.Clock = def.Clock
	}

	checks := []struct {
		field string
		unit  Unit
		want  Category
	}{
		{"depth", p.Depth, Depth},
		{"speed", p.Speed, Speed},
		{"temperature", p.Temperature, Temperature},
		{"pressure", p.Pressure, Pressure},
		{"volume", p.Volume, Volume},
		{"distance", p.Distance, Distance},
	}
	for _, c := range checks {
		got, ok := CategoryOf(c.unit)
		if !ok || !Compatible(got, c.want) {
			return fmt.Errorf("units: %s preference %q is not a %s unit", c.field, c.unit, c.want)
		}
	}
	switch p.Coordinate {
	case CoordDecimal, CoordDegMin, CoordDegMinSec:
	default:
		return fmt.Errorf("units: coordinate style %q not one of dd, ddm, dms", p.Coordinate)
	}
	switch p.Clock {
	case Clock24, Clock12:
	default:
		return fmt.Errorf("units: clock style %q not one of 24h, 12h", p.Clock)
	}
	return nil
}

// UnitFor returns the display unit the preferences select for a category.
func (p Preferences) UnitFor(c Category) Unit {
	switch c {
	case Depth, Length:
		return p.Depth
	case Distance:
		return p.Distance
	case Speed:
		return p.Speed
	case Temperature:
		return p.Temperature
	case Pressure:
		return p.Pressure
	case Volume:
		return p.Volume
	case Ratio:
		return UnitPercent
	default:
		return c.Canonical()
	}
}

// Format renders a canonical value for display. The returned unit is the
// one the string is expressed in.
func (p Preferences) Format(c Category, si float64) (Unit, string) {
	switch c {
	case Latitude:
		return UnitDDeg, formatCoordinate(si, p.Coordinate, "N", "S")
	case Longitude:
		return UnitDDeg, formatCoordinate(si, p.Coordinate, "E", "W")
	case Clock:
		return UnitUnixSec, formatClock(si, p.Clock)
	}

	u := p.UnitFor(c)
	v, err := FromCanonical(si, u)
	if err != nil {
		u = c.Canonical()
		v = si
	}
	switch c {
	case Ratio:
		return u, strconv.FormatFloat(v, 'f', 0, 64) + "%"
	case Angle:
		return u, strconv.FormatFloat(v, 'f', 0, 64) + "°"
	case Temperature:
		return u, strconv.FormatFloat(v, 'f', 1, 64) + "°" + string(u)
	default:
		return u, strconv.FormatFloat(v, 'f', precisionFor(c, u), 64) + " " + string(u)
	}
}

// precisionFor picks decimal places so that one display step stays close
// to the underlying sentence resolution.
func precisionFor(c Category, u Unit) int {
	switch c {
	case Depth, Length:
		return 1
	case Distance:
		if u == UnitMeter {
			return 0
		}
		return 2
	case Speed:
		return 1
	case Pressure:
		switch u {
		case UnitBar:
			return 3
		case UnitInHg:
			return 2
		case UnitPascal:
			return 0
		default:
			return 1
		}
	case Volume:
		if u == UnitGallon {
			return 1
		}
		return 0
	case Voltage:
		return 2
	case Current:
		return 1
	case Rotation, Count:
		return 0
	case Duration:
		return 1
	default:
		return 1
	}
}

func formatClock(unixSec float64, style ClockStyle) string {
	sec, frac := math.Modf(unixSec)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	if style == Clock12 {
		return t.Format("3:04:05 PM")
	}
	return t.Format("15:04:05")
}

func formatCoordinate(deg float64, style CoordinateStyle, pos, neg string) string {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	switch style {
	case CoordDegMinSec:
		d := math.Floor(deg)
		rem := (deg - d) * 60
		m := math.Floor(rem)
		s := (rem - m) * 60
		return fmt.Sprintf("%d° %d' %.1f\" %s", int(d), int(m), s, hemi)
	case CoordDegMin:
		d := math.Floor(deg)
		m := (deg - d) * 60
		return fmt.Sprintf("%d° %.3f' %s", int(d), m, hemi)
	default:
		return fmt.Sprintf("%.5f° %s", deg, hemi)
	}
}

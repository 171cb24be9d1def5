package ingest

import (
	"sort"

	"binnacle/internal/nmea"
	"binnacle/internal/schema"
	"binnacle/internal/sensors"
	"binnacle/internal/units"
)

// Handler decodes the data fields of one sentence type into readings.
// Handlers are pure functions of the sentence and context: no state, no
// side effects. A handler may return readings alongside an error when
// part of a sentence was usable.
type Handler func(s nmea.Sentence, cx *Context) ([]sensors.Reading, error)

// Context carries the per-deployment policy handlers consult: instance
// defaults and tank capacities for volume-to-level derivation.
type Context struct {
	Resolver     *Resolver
	TankCapacity map[sensors.InstanceID]float64 // liters
}

func (cx *Context) resolve(key, identifier string) sensors.InstanceID {
	if cx == nil {
		return 0
	}
	return cx.Resolver.Resolve(key, identifier)
}

func (cx *Context) capacity(inst sensors.InstanceID) (float64, bool) {
	if cx == nil {
		return 0, false
	}
	cap, ok := cx.TankCapacity[inst]
	return cap, ok && cap > 0
}

// handlers is the closed dispatch table. Adding a sentence type means
// adding a row here and nothing else.
var handlers = map[string]Handler{
	"DPT": handleDPT,
	"DBT": handleDBT,
	"MTW": handleMTW,
	"MDA": handleMDA,
	"VHW": handleVHW,
	"VTG": handleVTG,
	"RMC": handleRMC,
	"GGA": handleGGA,
	"GLL": handleGLL,
	"HDG": handleHDG,
	"HDM": handleHDM,
	"HDT": handleHDT,
	"ROT": handleROT,
	"RSA": handleRSA,
	"MWV": handleMWV,
	"MWD": handleMWD,
	"RPM": handleRPM,
	"RMB": handleRMB,
	"APB": handleAPB,
	"XDR": handleXDR,
}

// Lookup returns the handler for a sentence type code.
func Lookup(typ string) (Handler, bool) {
	h, ok := handlers[typ]
	return h, ok
}

// HandledTypes lists the sentence types with a registered handler.
func HandledTypes() []string {
	out := make([]string, 0, len(handlers))
	for t := range handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func tooShort(s nmea.Sentence, reason string) error {
	return &nmea.MalformedError{Type: s.Type, Reason: reason}
}

// DPT: depth below transducer and transducer offset.
//
//	1: depth below transducer (m)
//	2: offset from transducer (m; positive = to waterline, negative = to keel)
//	3: maximum range scale (ignored)
func handleDPT(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a depth field")
	}
	inst := cx.resolve("DPT", "")

	depth, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	out := []sensors.Reading{
		{Type: schema.Depth, Instance: inst, Field: "dbt", Value: depth, Unit: units.UnitMeter},
	}
	if off, ok := parseFloat(s.Field(2)); ok {
		out = append(out, sensors.Reading{Type: schema.Depth, Instance: inst, Field: "offset", Value: off, Unit: units.UnitMeter})
		switch {
		case off > 0:
			out = append(out, sensors.Reading{Type: schema.Depth, Instance: inst, Field: "dbs", Value: depth + off, Unit: units.UnitMeter})
		case off < 0:
			out = append(out, sensors.Reading{Type: schema.Depth, Instance: inst, Field: "dbk", Value: depth + off, Unit: units.UnitMeter})
		}
	}
	return out, nil
}

// DBT: depth below transducer in three units. The meter field wins;
// feet and fathoms are fallbacks for instruments that omit it.
//
//	1: depth (ft)   2: "f"
//	3: depth (m)    4: "M"
//	5: depth (fathoms) 6: "F"
func handleDBT(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a depth field")
	}
	inst := cx.resolve("DBT", "")

	if m, ok := parseFloat(s.Field(3)); ok {
		return []sensors.Reading{{Type: schema.Depth, Instance: inst, Field: "dbt", Value: m, Unit: units.UnitMeter}}, nil
	}
	if ft, ok := parseFloat(s.Field(1)); ok {
		return []sensors.Reading{{Type: schema.Depth, Instance: inst, Field: "dbt", Value: ft, Unit: units.UnitFoot}}, nil
	}
	if fa, ok := parseFloat(s.Field(5)); ok {
		return []sensors.Reading{{Type: schema.Depth, Instance: inst, Field: "dbt", Value: fa, Unit: units.UnitFathom}}, nil
	}
	return nil, nil
}

// MTW: mean water temperature.
//
//	1: temperature (C)  2: "C"
func handleMTW(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a temperature field")
	}
	t, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	inst := cx.resolve("MTW", "")
	return []sensors.Reading{
		{Type: schema.Temperature, Instance: inst, Field: "temperature", Value: t, Unit: units.UnitCelsius},
	}, nil
}

// MDA: meteorological composite. Only the pressure, temperature,
// humidity and dew point fields are consumed; the trailing wind fields
// duplicate MWV/MWD and are ignored.
//
//	1: pressure (inHg)  2: "I"
//	3: pressure (bar)   4: "B"
//	5: air temperature (C)  6: "C"
//	7: water temperature (C)  8: "C"
//	9: relative humidity (percent)
//	10: absolute humidity (ignored)
//	11: dew point (C)  12: "C"
func handleMDA(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "no data fields")
	}
	inst := cx.resolve("MDA", "")
	var out []sensors.Reading

	if bar, ok := parseFloat(s.Field(3)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "baro", Value: bar, Unit: units.UnitBar})
	} else if inHg, ok := parseFloat(s.Field(1)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "baro", Value: inHg, Unit: units.UnitInHg})
	}
	if at, ok := parseFloat(s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "airTemp", Value: at, Unit: units.UnitCelsius})
	}
	if wt, ok := parseFloat(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "waterTemp", Value: wt, Unit: units.UnitCelsius})
	}
	if rh, ok := parseFloat(s.Field(9)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "humidity", Value: rh, Unit: units.UnitPercent})
	}
	if dp, ok := parseFloat(s.Field(11)); ok {
		out = append(out, sensors.Reading{Type: schema.Weather, Instance: inst, Field: "dewPoint", Value: dp, Unit: units.UnitCelsius})
	}
	return out, nil
}

// VHW: water speed and heading.
//
//	1: heading (deg true)  2: "T"
//	3: heading (deg magnetic)  4: "M"
//	5: speed through water (kn)  6: "N"
//	7: speed through water (km/h)  8: "K"
func handleVHW(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "no data fields")
	}
	var out []sensors.Reading
	if ht, ok := parseFloat(s.Field(1)); ok {
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: cx.resolve("VHW", ""), Field: "trueHeading", Value: normalizeDegrees(ht), Unit: units.UnitDegree})
	}
	if hm, ok := parseFloat(s.Field(3)); ok {
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: cx.resolve("VHW", ""), Field: "heading", Value: normalizeDegrees(hm), Unit: units.UnitDegree})
	}
	if kn, ok := parseFloat(s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.Speed, Instance: cx.resolve("VHW", ""), Field: "stw", Value: kn, Unit: units.UnitKnot})
	} else if kmh, ok := parseFloat(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.Speed, Instance: cx.resolve("VHW", ""), Field: "stw", Value: kmh, Unit: units.UnitKPH})
	}
	return out, nil
}

// VTG: course and speed over ground. The 2.3-era mode letter, when
// present and "N", marks the data invalid.
//
//	1: course (deg true)  2: "T"
//	3: course (deg magnetic)  4: "M"
//	5: speed (kn)  6: "N"
//	7: speed (km/h)  8: "K"
//	9: mode (optional; N = not valid)
func handleVTG(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 6 {
		return nil, tooShort(s, "need course and speed fields")
	}
	if mode := s.Field(9); mode == "N" {
		return nil, nil
	}
	inst := cx.resolve("VTG", "")
	var out []sensors.Reading
	if cog, ok := parseFloat(s.Field(1)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "cog", Value: normalizeDegrees(cog), Unit: units.UnitDegree})
	}
	if kn, ok := parseFloat(s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.Speed, Instance: inst, Field: "sog", Value: kn, Unit: units.UnitKnot})
	} else if kmh, ok := parseFloat(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.Speed, Instance: inst, Field: "sog", Value: kmh, Unit: units.UnitKPH})
	}
	return out, nil
}

// RMC: recommended minimum GNSS data. Void fixes contribute nothing.
//
//	1: time (hhmmss.sss)
//	2: status (A = active, V = void)
//	3: latitude (ddmm.mmmm)  4: N/S
//	5: longitude (dddmm.mmmm)  6: E/W
//	7: speed over ground (kn)
//	8: course over ground (deg true)
//	9: date (ddmmyy)
//	10: magnetic variation (deg)  11: E/W
func handleRMC(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 10 {
		return nil, tooShort(s, "need at least ten fields")
	}
	if s.Field(2) != "A" {
		return nil, nil
	}
	inst := cx.resolve("RMC", "")
	var out []sensors.Reading

	if lat, ok := parseLatLon(s.Field(3), s.Field(4)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lat", Value: lat, Unit: units.UnitDDeg})
	}
	if lon, ok := parseLatLon(s.Field(5), s.Field(6)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lon", Value: lon, Unit: units.UnitDDeg})
	}
	if sog, ok := parseFloat(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.Speed, Instance: inst, Field: "sog", Value: sog, Unit: units.UnitKnot})
	}
	if cog, ok := parseFloat(s.Field(8)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "cog", Value: normalizeDegrees(cog), Unit: units.UnitDegree})
	}
	if clock, ok := parseClock(s.Field(1), s.Field(9)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "utc", Value: clock, Unit: units.UnitUnixSec})
	}
	if v, ok := parseSigned(s.Field(10), s.Field(11)); ok {
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: inst, Field: "variation", Value: v, Unit: units.UnitDegree})
	}
	return out, nil
}

// GGA: GNSS fix data. Fix quality 0 marks the whole sentence unusable.
//
//	1: time
//	2: latitude  3: N/S
//	4: longitude  5: E/W
//	6: fix quality (0 = invalid)
//	7: satellites in use
//	8: HDOP
//	9: antenna altitude (m)  10: "M"
func handleGGA(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 11 {
		return nil, tooShort(s, "need at least eleven fields")
	}
	q, ok := parseInt(s.Field(6))
	if !ok || q == 0 {
		return nil, nil
	}
	inst := cx.resolve("GGA", "")
	out := []sensors.Reading{
		{Type: schema.GPS, Instance: inst, Field: "fix", Value: float64(q), Unit: units.UnitCount},
	}
	if lat, ok := parseLatLon(s.Field(2), s.Field(3)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lat", Value: lat, Unit: units.UnitDDeg})
	}
	if lon, ok := parseLatLon(s.Field(4), s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lon", Value: lon, Unit: units.UnitDDeg})
	}
	if sats, ok := parseInt(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "satellites", Value: float64(sats), Unit: units.UnitCount})
	}
	if hdop, ok := parseFloat(s.Field(8)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "hdop", Value: hdop, Unit: units.UnitCount})
	}
	if alt, ok := parseFloat(s.Field(9)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "altitude", Value: alt, Unit: units.UnitMeter})
	}
	return out, nil
}

// GLL: geographic position. Void status contributes nothing.
//
//	1: latitude  2: N/S
//	3: longitude  4: E/W
//	5: time
//	6: status (A/V)
func handleGLL(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 7 {
		return nil, tooShort(s, "need at least seven fields")
	}
	if s.Field(6) != "A" {
		return nil, nil
	}
	inst := cx.resolve("GLL", "")
	var out []sensors.Reading
	if lat, ok := parseLatLon(s.Field(1), s.Field(2)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lat", Value: lat, Unit: units.UnitDDeg})
	}
	if lon, ok := parseLatLon(s.Field(3), s.Field(4)); ok {
		out = append(out, sensors.Reading{Type: schema.GPS, Instance: inst, Field: "lon", Value: lon, Unit: units.UnitDDeg})
	}
	return out, nil
}

// HDG: magnetic heading with deviation and variation. True heading is
// derived when variation is present.
//
//	1: magnetic sensor heading (deg)
//	2: deviation (deg)  3: E/W
//	4: variation (deg)  5: E/W
func handleHDG(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a heading field")
	}
	hdg, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	inst := cx.resolve("HDG", "")
	out := []sensors.Reading{
		{Type: schema.Compass, Instance: inst, Field: "heading", Value: normalizeDegrees(hdg), Unit: units.UnitDegree},
	}
	dev, devOK := parseSigned(s.Field(2), s.Field(3))
	if devOK {
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: inst, Field: "deviation", Value: dev, Unit: units.UnitDegree})
	}
	if v, ok := parseSigned(s.Field(4), s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: inst, Field: "variation", Value: v, Unit: units.UnitDegree})
		d := 0.0
		if devOK {
			d = dev
		}
		out = append(out, sensors.Reading{Type: schema.Compass, Instance: inst, Field: "trueHeading", Value: normalizeDegrees(hdg + d + v), Unit: units.UnitDegree})
	}
	return out, nil
}

// HDM: magnetic heading.
func handleHDM(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a heading field")
	}
	h, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	return []sensors.Reading{
		{Type: schema.Compass, Instance: cx.resolve("HDM", ""), Field: "heading", Value: normalizeDegrees(h), Unit: units.UnitDegree},
	}, nil
}

// HDT: true heading.
func handleHDT(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 2 {
		return nil, tooShort(s, "need a heading field")
	}
	h, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	return []sensors.Reading{
		{Type: schema.Compass, Instance: cx.resolve("HDT", ""), Field: "trueHeading", Value: normalizeDegrees(h), Unit: units.UnitDegree},
	}, nil
}

// ROT: rate of turn, negative toward port. Only status A is usable.
//
//	1: rate (deg/min)  2: status
func handleROT(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 3 {
		return nil, tooShort(s, "need rate and status fields")
	}
	if s.Field(2) != "A" {
		return nil, nil
	}
	r, ok := parseFloat(s.Field(1))
	if !ok {
		return nil, nil
	}
	return []sensors.Reading{
		{Type: schema.Compass, Instance: cx.resolve("ROT", ""), Field: "rot", Value: r, Unit: units.UnitDegMin},
	}, nil
}

// RSA: rudder sensor angle, positive to starboard. A twin installation
// reports the port rudder in the second pair; it lands on the next
// instance.
//
//	1: starboard (or single) rudder (deg)  2: status
//	3: port rudder (deg)  4: status
func handleRSA(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 3 {
		return nil, tooShort(s, "need an angle and status field")
	}
	base := cx.resolve("RSA", "")
	var out []sensors.Reading
	if s.Field(2) == "A" {
		if a, ok := parseFloat(s.Field(1)); ok {
			out = append(out, sensors.Reading{Type: schema.Rudder, Instance: base, Field: "angle", Value: a, Unit: units.UnitDegree})
		}
	}
	if s.Field(4) == "A" {
		if a, ok := parseFloat(s.Field(3)); ok {
			out = append(out, sensors.Reading{Type: schema.Rudder, Instance: base + 1, Field: "angle", Value: a, Unit: units.UnitDegree})
		}
	}
	return out, nil
}

// MWV: wind speed and angle, relative (R) or true (T). Only status A is
// usable.
//
//	1: wind angle (deg)
//	2: reference (R/T)
//	3: wind speed
//	4: speed unit (K/M/N)
//	5: status
func handleMWV(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 6 {
		return nil, tooShort(s, "need angle, reference, speed, unit and status fields")
	}
	if s.Field(5) != "A" {
		return nil, nil
	}
	var spdUnit units.Unit
	switch s.Field(4) {
	case "N":
		spdUnit = units.UnitKnot
	case "M":
		spdUnit = units.UnitMPS
	case "K":
		spdUnit = units.UnitKPH
	default:
		return nil, &nmea.MalformedError{Type: s.Type, Reason: "unknown wind speed unit letter"}
	}

	var angleField, speedField string
	switch s.Field(2) {
	case "R":
		angleField, speedField = "awa", "aws"
	case "T":
		angleField, speedField = "twa", "tws"
	default:
		return nil, &nmea.MalformedError{Type: s.Type, Reason: "unknown wind reference letter"}
	}

	inst := cx.resolve("MWV", "")
	var out []sensors.Reading
	if a, ok := parseFloat(s.Field(1)); ok {
		out = append(out, sensors.Reading{Type: schema.Wind, Instance: inst, Field: angleField, Value: normalizeDegrees(a), Unit: units.UnitDegree})
	}
	if v, ok := parseFloat(s.Field(3)); ok {
		out = append(out, sensors.Reading{Type: schema.Wind, Instance: inst, Field: speedField, Value: v, Unit: spdUnit})
	}
	return out, nil
}

// MWD: true wind direction and speed.
//
//	1: direction (deg true)  2: "T"
//	3: direction (deg magnetic)  4: "M"
//	5: speed (kn)  6: "N"
//	7: speed (m/s)  8: "M"
func handleMWD(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 6 {
		return nil, tooShort(s, "need direction and speed fields")
	}
	inst := cx.resolve("MWD", "")
	var out []sensors.Reading
	if d, ok := parseFloat(s.Field(1)); ok {
		out = append(out, sensors.Reading{Type: schema.Wind, Instance: inst, Field: "twd", Value: normalizeDegrees(d), Unit: units.UnitDegree})
	}
	if kn, ok := parseFloat(s.Field(5)); ok {
		out = append(out, sensors.Reading{Type: schema.Wind, Instance: inst, Field: "tws", Value: kn, Unit: units.UnitKnot})
	} else if ms, ok := parseFloat(s.Field(7)); ok {
		out = append(out, sensors.Reading{Type: schema.Wind, Instance: inst, Field: "tws", Value: ms, Unit: units.UnitMPS})
	}
	return out, nil
}

// RPM: shaft or engine revolutions. Shaft readings have no schema home
// and are skipped. The engine number field selects the instance.
//
//	1: source (E = engine, S = shaft)
//	2: engine or shaft number
//	3: speed (rpm)
//	4: propeller pitch (percent, ignored)
//	5: status
func handleRPM(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 6 {
		return nil, tooShort(s, "need source, number, speed and status fields")
	}
	if s.Field(5) != "A" || s.Field(1) != "E" {
		return nil, nil
	}
	rpm, ok := parseFloat(s.Field(3))
	if !ok {
		return nil, nil
	}
	inst := cx.resolve("RPM", "")
	if n, ok := parseInt(s.Field(2)); ok && n >= 0 {
		inst = sensors.InstanceID(n)
	}
	return []sensors.Reading{
		{Type: schema.Engine, Instance: inst, Field: "rpm", Value: rpm, Unit: units.UnitRPM},
	}, nil
}

// RMB: minimum navigation information for the active waypoint. Cross
// track error is signed by the direction to steer: right positive.
//
//	1: status (A/V)
//	2: cross track error (nm)  3: direction to steer (L/R)
//	4: origin waypoint  5: destination waypoint
//	6-9: destination position (ignored; GLL/RMC carry own position)
//	10: range to destination (nm)
//	11: bearing to destination (deg true)
//	12: closing velocity (kn)
func handleRMB(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 13 {
		return nil, tooShort(s, "need at least thirteen fields")
	}
	if s.Field(1) != "A" {
		return nil, nil
	}
	inst := cx.resolve("RMB", "")
	var out []sensors.Reading
	if xte, ok := parseSigned(s.Field(2), s.Field(3)); ok {
		out = append(out, sensors.Reading{Type: schema.Navigation, Instance: inst, Field: "xte", Value: xte, Unit: units.UnitNM})
	}
	if rng, ok := parseFloat(s.Field(10)); ok {
		out = append(out, sensors.Reading{Type: schema.Navigation, Instance: inst, Field: "dtw", Value: rng, Unit: units.UnitNM})
	}
	if brg, ok := parseFloat(s.Field(11)); ok {
		out = append(out, sensors.Reading{Type: schema.Navigation, Instance: inst, Field: "btw", Value: normalizeDegrees(brg), Unit: units.UnitDegree})
	}
	if vmg, ok := parseFloat(s.Field(12)); ok {
		out = append(out, sensors.Reading{Type: schema.Navigation, Instance: inst, Field: "vmg", Value: vmg, Unit: units.UnitKnot})
	}
	return out, nil
}

// APB: autopilot sentence B. Bearings are stored in degrees whether
// flagged magnetic or true.
//
//	1, 2: status (V = warning)
//	3: cross track error  4: direction to steer (L/R)  5: unit (N = nm)
//	8: bearing origin to destination  9: M/T
//	10: destination waypoint
//	11: bearing position to destination  12: M/T
//	13: heading to steer  14: M/T
func handleAPB(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 14 {
		return nil, tooShort(s, "need at least fourteen fields")
	}
	if s.Field(1) != "A" || s.Field(2) != "A" {
		return nil, nil
	}
	inst := cx.resolve("APB", "")
	var out []sensors.Reading
	if s.Field(5) == "N" || s.Field(5) == "" {
		if xte, ok := parseSigned(s.Field(3), s.Field(4)); ok {
			out = append(out, sensors.Reading{Type: schema.Autopilot, Instance: inst, Field: "xte", Value: xte, Unit: units.UnitNM})
		}
	}
	if brg, ok := parseFloat(s.Field(11)); ok {
		out = append(out, sensors.Reading{Type: schema.Autopilot, Instance: inst, Field: "btw", Value: normalizeDegrees(brg), Unit: units.UnitDegree})
	}
	if hts, ok := parseFloat(s.Field(13)); ok {
		out = append(out, sensors.Reading{Type: schema.Autopilot, Instance: inst, Field: "hts", Value: normalizeDegrees(hts), Unit: units.UnitDegree})
	}
	return out, nil
}

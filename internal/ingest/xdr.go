package ingest

import (
	"errors"
	"strings"

	"binnacle/internal/nmea"
	"binnacle/internal/schema"
	"binnacle/internal/sensors"
	"binnacle/internal/units"
)

// xdrKey identifies one transducer encoding: the measurement type
// letter paired with the unit letter.
type xdrKey struct {
	meas string
	unit string
}

type xdrRoute struct {
	sensorType schema.SensorType
	field      string
	unit       units.Unit
}

// xdrRoutes maps the transducer encodings binnacle understands to
// schema fields. Percent on a pressure-type transducer is the de facto
// tank level encoding, so (P, P) lands on tank.level rather than a
// pressure field. Encodings outside this table raise
// UnknownMeasurementError and leave the rest of the sentence intact.
var xdrRoutes = map[xdrKey]xdrRoute{
	{"C", "C"}: {schema.Temperature, "temperature", units.UnitCelsius},
	{"C", "F"}: {schema.Temperature, "temperature", units.UnitFahr},
	{"P", "B"}: {schema.Weather, "baro", units.UnitBar},
	{"P", "P"}: {schema.Tank, "level", units.UnitPercent},
	{"H", "P"}: {schema.Weather, "humidity", units.UnitPercent},
	{"U", "V"}: {schema.Battery, "voltage", units.UnitVolt},
	{"I", "A"}: {schema.Battery, "current", units.UnitAmp},
	{"V", "L"}: {schema.Tank, "volume", units.UnitLiter},
	{"V", "M"}: {schema.Tank, "volume", units.UnitCubicM},
	{"T", "R"}: {schema.Engine, "rpm", units.UnitRPM},
}

// XDR: generic transducer measurements in groups of four fields. Each
// group is independent: an unrecognized encoding in one group does not
// stop the others from being applied. A final group may omit the
// transducer identifier.
//
//	1: measurement type letter
//	2: value
//	3: unit letter
//	4: transducer identifier
//	(repeating)
func handleXDR(s nmea.Sentence, cx *Context) ([]sensors.Reading, error) {
	if len(s.Fields) < 4 {
		return nil, tooShort(s, "need at least one transducer group")
	}

	var (
		out  []sensors.Reading
		errs []error
	)
	i := 1
	for ; i+2 < len(s.Fields); i += 4 {
		meas := strings.ToUpper(s.Field(i))
		valStr := s.Field(i + 1)
		unitLetter := strings.ToUpper(s.Field(i + 2))
		id := s.Field(i + 3)
		if meas == "" && valStr == "" && unitLetter == "" && id == "" {
			continue
		}

		route, ok := xdrRoutes[xdrKey{meas, unitLetter}]
		if !ok {
			errs = append(errs, &nmea.UnknownMeasurementError{Measurement: meas, Units: unitLetter})
			continue
		}
		val, ok := parseFloat(valStr)
		if !ok {
			continue
		}

		inst := cx.resolve("XDR:"+meas, id)
		out = append(out, sensors.Reading{
			Type:     route.sensorType,
			Instance: inst,
			Field:    route.field,
			Value:    val,
			Unit:     route.unit,
		})

		// A declared tank capacity turns a volume transducer into a
		// level source as well.
		if route.sensorType == schema.Tank && route.field == "volume" {
			if cap, ok := cx.capacity(inst); ok {
				liters, err := units.ToCanonical(val, route.unit)
				if err == nil {
					out = append(out, sensors.Reading{
						Type:     schema.Tank,
						Instance: inst,
						Field:    "level",
						Value:    liters / cap,
						Unit:     units.UnitRatio,
					})
				}
			}
		}
	}

	for ; i < len(s.Fields); i++ {
		if s.Field(i) != "" {
			errs = append(errs, &nmea.MalformedError{Type: s.Type, Reason: "incomplete trailing transducer group"})
			break
		}
	}
	return out, errors.Join(errs...)
}

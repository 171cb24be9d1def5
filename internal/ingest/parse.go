package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLatLon parses ddmm.mmmm (latitude) or dddmm.mmmm (longitude)
// plus a hemisphere letter into signed decimal degrees.
func parseLatLon(v, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil {
		return 0, false
	}

	dec := float64(deg) + mins/60.0
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}

// parseSigned parses a magnitude field with a separate E/W or L/R sign
// field. West and left come back negative.
func parseSigned(v, sign string) (float64, bool) {
	mag, ok := parseFloat(v)
	if !ok {
		return 0, false
	}
	switch strings.TrimSpace(strings.ToUpper(sign)) {
	case "W", "L":
		return -mag, true
	case "E", "R", "":
		return mag, true
	default:
		return 0, false
	}
}

// parseClock combines hhmmss.sss and ddmmyy fields into Unix seconds.
// A missing date yields no value; GPS time without a date is ambiguous.
func parseClock(timeField, dateField string) (float64, bool) {
	timeField = strings.TrimSpace(timeField)
	dateField = strings.TrimSpace(dateField)
	if len(timeField) < 6 || len(dateField) != 6 {
		return 0, false
	}

	hh, err1 := strconv.Atoi(timeField[0:2])
	mm, err2 := strconv.Atoi(timeField[2:4])
	ss, err3 := strconv.ParseFloat(timeField[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	day, err1 := strconv.Atoi(dateField[0:2])
	mon, err2 := strconv.Atoi(dateField[2:4])
	yy, err3 := strconv.Atoi(dateField[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if hh > 23 || mm > 59 || ss >= 61 || day < 1 || day > 31 || mon < 1 || mon > 12 {
		return 0, false
	}

	// Two-digit years: the 0183 era split is conventionally 1980.
	year := 2000 + yy
	if yy >= 80 {
		year = 1900 + yy
	}

	sec := int(ss)
	nsec := int((ss - float64(sec)) * float64(time.Second))
	t := time.Date(year, time.Month(mon), day, hh, mm, sec, nsec, time.UTC)
	return float64(t.UnixNano()) / float64(time.Second), true
}

// normalizeDegrees wraps an angle into [0, 360).
func normalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

package sim

import (
	"fmt"
	"math"
	"time"

	"binnacle/internal/nmea"
)

// defaultVariationDeg is the magnetic variation assumed by the demo
// instruments (east positive). Roughly right for Puget Sound.
const defaultVariationDeg = 15.5

// State is one instant of the simulated boat: position, motion and the
// readings of every instrument the demo feed speaks for. Angles are
// degrees, speeds knots, depths meters; VariationDeg and XteNm are
// signed (east and steer-right positive).
type State struct {
	LatDeg float64
	LonDeg float64

	CogDeg       float64
	SogKt        float64
	HeadingDeg   float64 // magnetic
	VariationDeg float64
	StwKt        float64
	RotDegMin    float64
	RudderDeg    float64

	DepthM      float64
	WaterC      float64
	AirC        float64
	BaroBar     float64
	HumidityPct float64

	TwdDeg float64 // direction the wind blows from, true
	TwsKt  float64

	EngineRPM    [2]float64
	BatteryVolts float64
	BatteryAmps  float64
	FuelPct      [2]float64

	XteNm  float64
	BtwDeg float64
	DtwNm  float64
	WptID  string
}

// Sentences renders the state as one burst of checksummed 0183 sentences,
// covering every type the ingest layer handles. The same position is
// repeated across RMC, GGA and GLL the way a real talker would.
func (st State) Sentences(now time.Time) []string {
	utc := now.UTC()
	clock := utc.Format("150405.00")
	date := utc.Format("020106")

	lat := latFields(st.LatDeg)
	lon := lonFields(st.LonDeg)
	variation := signedDegFields(st.VariationDeg, "E", "W")

	headingTrue := normDeg(st.HeadingDeg + st.VariationDeg)
	cogMag := normDeg(st.CogDeg - st.VariationDeg)
	twa := normDeg(st.TwdDeg - headingTrue)
	awa, aws := apparentWind(headingTrue, st.StwKt, st.TwdDeg, st.TwsKt)
	dewC := st.AirC - (100-st.HumidityPct)/5
	vmgKt := st.SogKt * math.Cos(angleDiff(st.BtwDeg, st.CogDeg)*math.Pi/180)

	wpt := st.WptID
	if wpt == "" {
		wpt = "HARBOR"
	}
	// Project the waypoint out along the bearing so RMB carries a
	// position consistent with the bearing and range fields.
	wptLat := st.LatDeg + (st.DtwNm/60)*math.Cos(st.BtwDeg*math.Pi/180)
	wptLon := st.LonDeg + (st.DtwNm/60)*math.Sin(st.BtwDeg*math.Pi/180)/math.Cos(st.LatDeg*math.Pi/180)

	const transducerOffsetM = 0.4

	payloads := []string{
		fmt.Sprintf("GPRMC,%s,A,%s,%s,%.1f,%.1f,%s,%s,,A", clock, lat, lon, st.SogKt, st.CogDeg, date, variation),
		fmt.Sprintf("GPGGA,%s,%s,%s,1,10,0.9,2.0,M,,M,,", clock, lat, lon),
		fmt.Sprintf("GPGLL,%s,%s,%s,A,A", lat, lon, clock),
		fmt.Sprintf("IIVTG,%.1f,T,%.1f,M,%.1f,N,%.1f,K,A", st.CogDeg, cogMag, st.SogKt, st.SogKt*1.852),
		fmt.Sprintf("IIHDG,%.1f,,,%s", st.HeadingDeg, variation),
		fmt.Sprintf("IIHDM,%.1f,M", st.HeadingDeg),
		fmt.Sprintf("IIHDT,%.1f,T", headingTrue),
		fmt.Sprintf("IIROT,%.1f,A", st.RotDegMin),
		fmt.Sprintf("IIRSA,%.1f,A,,V", st.RudderDeg),
		fmt.Sprintf("IIVHW,%.1f,T,%.1f,M,%.1f,N,%.1f,K", headingTrue, st.HeadingDeg, st.StwKt, st.StwKt*1.852),
		fmt.Sprintf("SDDPT,%.1f,%.1f,", st.DepthM, transducerOffsetM),
		fmt.Sprintf("SDDBT,%.1f,f,%.1f,M,%.1f,F", st.DepthM/0.3048, st.DepthM, st.DepthM/1.8288),
		fmt.Sprintf("IIMTW,%.1f,C", st.WaterC),
		fmt.Sprintf("IIMWV,%.1f,R,%.1f,N,A", awa, aws),
		fmt.Sprintf("IIMWV,%.1f,T,%.1f,N,A", twa, st.TwsKt),
		fmt.Sprintf("IIMWD,%.1f,T,%.1f,M,%.1f,N,%.1f,M", st.TwdDeg, normDeg(st.TwdDeg-st.VariationDeg), st.TwsKt, st.TwsKt*0.514444),
		fmt.Sprintf("IIMDA,%.2f,I,%.4f,B,%.1f,C,%.1f,C,%.1f,,%.1f,C,%.1f,T,%.1f,M,%.1f,N,%.1f,M",
			st.BaroBar*29.53, st.BaroBar, st.AirC, st.WaterC, st.HumidityPct, dewC,
			st.TwdDeg, normDeg(st.TwdDeg-st.VariationDeg), st.TwsKt, st.TwsKt*0.514444),
		fmt.Sprintf("ERRPM,E,0,%.0f,72.0,A", st.EngineRPM[0]),
		fmt.Sprintf("ERRPM,E,1,%.0f,72.0,A", st.EngineRPM[1]),
		fmt.Sprintf("IIXDR,C,%.1f,C,TempAir,P,%.4f,B,Barometer,H,%.1f,P,MainCabin", st.AirC, st.BaroBar, st.HumidityPct),
		fmt.Sprintf("IIXDR,U,%.2f,V,BATT_0,I,%.1f,A,BATT_0", st.BatteryVolts, st.BatteryAmps),
		fmt.Sprintf("IIXDR,P,%.1f,P,FUEL_0,P,%.1f,P,FUEL_1", st.FuelPct[0], st.FuelPct[1]),
		fmt.Sprintf("GPRMB,A,%s,ORIGIN,%s,%s,%s,%.1f,%.1f,%.1f,V,A",
			crossTrackFields(st.XteNm), wpt, latFields(wptLat), lonFields(wptLon), st.DtwNm, st.BtwDeg, vmgKt),
		fmt.Sprintf("GPAPB,A,A,%s,N,V,V,%.1f,T,%s,%.1f,T,%.1f,T",
			crossTrackFields(st.XteNm), st.BtwDeg, wpt, st.BtwDeg, st.BtwDeg),
	}

	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = nmea.Line(p)
	}
	return out
}

// apparentWind combines true wind with boat motion through the water.
// Angles are degrees, speeds knots; awa comes back in [0, 360) measured
// clockwise from the bow.
func apparentWind(headingTrueDeg, stwKt, twdDeg, twsKt float64) (awaDeg, awsKt float64) {
	twaRad := angleDiff(twdDeg, headingTrueDeg) * math.Pi / 180
	ahead := twsKt*math.Cos(twaRad) + stwKt
	across := twsKt * math.Sin(twaRad)
	awsKt = math.Hypot(ahead, across)
	awaDeg = normDeg(math.Atan2(across, ahead) * 180 / math.Pi)
	return awaDeg, awsKt
}

// latFields renders decimal degrees as the ddmm.mmmm,N pair used on the wire.
func latFields(deg float64) string {
	hemi := "N"
	if deg < 0 {
		hemi = "S"
		deg = -deg
	}
	d := int(deg)
	return fmt.Sprintf("%02d%07.4f,%s", d, (deg-float64(d))*60, hemi)
}

// lonFields renders decimal degrees as the dddmm.mmmm,E pair used on the wire.
func lonFields(deg float64) string {
	hemi := "E"
	if deg < 0 {
		hemi = "W"
		deg = -deg
	}
	d := int(deg)
	return fmt.Sprintf("%03d%07.4f,%s", d, (deg-float64(d))*60, hemi)
}

// signedDegFields splits a signed angle into magnitude plus letter fields.
func signedDegFields(deg float64, pos, neg string) string {
	letter := pos
	if deg < 0 {
		letter = neg
		deg = -deg
	}
	return fmt.Sprintf("%.1f,%s", deg, letter)
}

// crossTrackFields renders signed nautical miles as magnitude plus the
// direction-to-steer letter (positive steers right).
func crossTrackFields(xteNm float64) string {
	letter := "R"
	if xteNm < 0 {
		letter = "L"
		xteNm = -xteNm
	}
	return fmt.Sprintf("%.2f,%s", xteNm, letter)
}

// normDeg wraps an angle into [0, 360).
func normDeg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// angleDiff returns the shortest signed difference a-b in (-180, 180].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d <= -180 {
		d += 360
	}
	if d > 180 {
		d -= 360
	}
	return d
}

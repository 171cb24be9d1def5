package sim

import (
	"math"
	"time"
)

// Boat generates a deterministic day on the water around an anchor point.
// Every channel is a pure function of wall-clock time, so restarts resume
// mid-pattern instead of snapping back to a start state.
type Boat struct {
	LatDeg   float64
	LonDeg   float64
	RadiusNm float64
	Period   time.Duration
}

func (b Boat) withDefaults() Boat {
	if b.Period <= 0 {
		b.Period = 10 * time.Minute
	}
	if b.RadiusNm <= 0 {
		b.RadiusNm = 0.8
	}
	if b.LatDeg == 0 && b.LonDeg == 0 {
		b.LatDeg, b.LonDeg = 47.68, -122.41
	}
	return b
}

// Position returns a figure-eight (Lissajous) track around the anchor.
//
//	x = cos(2πt)        east-west, scaled by cos(lat) for lon degrees
//	y = 0.5*sin(4πt)    north-south, kept within half the radius
//
// Course over ground follows the instantaneous velocity.
func (b Boat) Position(now time.Time) (latDeg, lonDeg, cogDeg float64) {
	b = b.withDefaults()

	radiusDeg := b.RadiusNm / 60.0
	w := 2 * math.Pi * phase(now, b.Period)
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = b.LatDeg + radiusDeg*y
	lonDeg = b.LonDeg + (radiusDeg*x)/math.Cos(b.LatDeg*math.Pi/180.0)

	vx := -math.Sin(w)
	vy := math.Cos(2 * w)
	cogDeg = normDeg(math.Atan2(vx, vy) * 180 / math.Pi)
	return latDeg, lonDeg, cogDeg
}

// StateAt computes the full instrument state at now. Environmental
// channels run on periods decoupled from the track period so the feed
// never settles into a repeating lockstep.
func (b Boat) StateAt(now time.Time) State {
	b = b.withDefaults()

	lat, lon, cog := b.Position(now)

	// Rate of turn from the course a second from now; the wrap-aware
	// difference keeps it continuous through north.
	_, _, cogNext := b.Position(now.Add(time.Second))
	rot := angleDiff(cogNext, cog) * 60
	if rot > 30 {
		rot = 30
	} else if rot < -30 {
		rot = -30
	}
	rudder := rot / 3
	if rudder > 10 {
		rudder = 10
	} else if rudder < -10 {
		rudder = -10
	}

	sog := osc(now, 3*time.Minute, 6.4, 0.7)
	heading := normDeg(cog - defaultVariationDeg + osc(now, 40*time.Second, 0, 2.0))

	return State{
		LatDeg: lat,
		LonDeg: lon,

		CogDeg:       cog,
		SogKt:        sog,
		HeadingDeg:   heading,
		VariationDeg: defaultVariationDeg,
		StwKt:        sog - 0.4,
		RotDegMin:    rot,
		RudderDeg:    rudder,

		DepthM:      osc(now, 7*time.Minute, 9.0, 3.5),
		WaterC:      osc(now, 20*time.Minute, 17.5, 1.0),
		AirC:        osc(now, 30*time.Minute, 21.0, 2.5),
		BaroBar:     osc(now, 3*time.Hour, 1.0132, 0.0018),
		HumidityPct: osc(now, 40*time.Minute, 62, 8),

		TwdDeg: normDeg(210 + osc(now, 15*time.Minute, 0, 25)),
		TwsKt:  osc(now, 8*time.Minute, 12, 5),

		EngineRPM:    [2]float64{osc(now, 5*time.Minute, 1780, 110), osc(now, 330*time.Second, 1815, 110)},
		BatteryVolts: osc(now, 45*time.Minute, 12.65, 0.2),
		BatteryAmps:  osc(now, 25*time.Minute, -2.5, 9),
		FuelPct:      [2]float64{osc(now, 2*time.Hour, 64, 6), osc(now, 150*time.Minute, 52, 6)},

		XteNm:  osc(now, 10*time.Minute, 0, 0.08),
		BtwDeg: normDeg(osc(now, 30*time.Minute, 48, 10)),
		DtwNm:  osc(now, 30*time.Minute, 3.2, 1.2),
		WptID:  "HARBOR",
	}
}

// Sentences renders the state at now as one sentence burst.
func (b Boat) Sentences(now time.Time) []string {
	return b.StateAt(now).Sentences(now)
}

func phase(now time.Time, period time.Duration) float64 {
	return float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
}

func osc(now time.Time, period time.Duration, center, amp float64) float64 {
	return center + amp*math.Sin(2*math.Pi*phase(now, period))
}

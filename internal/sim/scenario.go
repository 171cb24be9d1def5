package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is a deterministic, keyframe-driven demo description. It drives
// the same instrument burst as the free-running generator, but along a
// scripted track, so a recorded behavior can be reproduced exactly.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 60s
//	keyframes:
//	  - t: 0s
//	    lat_deg: 47.68
//	    lon_deg: -122.41
//	    course_deg: 45
//	    speed_kt: 6.0
//	    depth_m: 12.0
//	    water_c: 16.5
//	    wind_dir_deg: 220
//	    wind_kt: 14
//
// Keyframes must use non-decreasing t values. Channels not covered by
// keyframes (engines, battery, tanks, cabin weather) hold steady values.
//
// Keep this struct stable: scripts are test fixtures.
type Script struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped boat state. Values interpolate linearly
// between frames; angles take the shortest path across north.
type Keyframe struct {
	T          time.Duration `yaml:"t"`
	LatDeg     float64       `yaml:"lat_deg"`
	LonDeg     float64       `yaml:"lon_deg"`
	CourseDeg  float64       `yaml:"course_deg"`
	SpeedKt    float64       `yaml:"speed_kt"`
	DepthM     float64       `yaml:"depth_m"`
	WaterC     float64       `yaml:"water_c"`
	WindDirDeg float64       `yaml:"wind_dir_deg"`
	WindKt     float64       `yaml:"wind_kt"`
}

// Scenario is the validated, runtime representation of a script.
// Use StateAt to compute the deterministic state at an elapsed time.
type Scenario struct {
	script Script
	// Derived duration (script.Duration or max keyframe time).
	duration time.Duration
}

// LoadScript reads and unmarshals a YAML demo script from path.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return ParseScript(b)
}

// ParseScript parses a YAML demo script.
func ParseScript(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script Script) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported script version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i := range script.Keyframes {
		if script.Keyframes[i].T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && script.Keyframes[i].T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		for _, kf := range script.Keyframes {
			if kf.T > dur {
				dur = kf.T
			}
		}
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or derivable from keyframes)")
	}

	return &Scenario{script: script, duration: dur}, nil
}

// Duration returns the effective script duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// StateAt computes the boat state at elapsed.
//
// If loop is true, elapsed wraps around Duration(). Otherwise elapsed is
// clamped to [0, Duration()] and the script holds its final frame.
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) State {
	if s == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	kf0, kf1, alpha := selectSegment(s.script.Keyframes, elapsed)

	course := lerpAngleDeg(kf0.CourseDeg, kf1.CourseDeg, alpha)
	speed := lerp(kf0.SpeedKt, kf1.SpeedKt, alpha)

	return State{
		LatDeg: lerp(kf0.LatDeg, kf1.LatDeg, alpha),
		LonDeg: lerp(kf0.LonDeg, kf1.LonDeg, alpha),

		CogDeg:       course,
		SogKt:        speed,
		HeadingDeg:   normDeg(course - defaultVariationDeg),
		VariationDeg: defaultVariationDeg,
		StwKt:        speed,

		DepthM:      lerp(kf0.DepthM, kf1.DepthM, alpha),
		WaterC:      lerp(kf0.WaterC, kf1.WaterC, alpha),
		AirC:        20.0,
		BaroBar:     1.0132,
		HumidityPct: 62,

		TwdDeg: lerpAngleDeg(kf0.WindDirDeg, kf1.WindDirDeg, alpha),
		TwsKt:  lerp(kf0.WindKt, kf1.WindKt, alpha),

		EngineRPM:    [2]float64{cruiseRPM(speed), cruiseRPM(speed)},
		BatteryVolts: 12.6,
		BatteryAmps:  -4.0,
		FuelPct:      [2]float64{60, 50},

		BtwDeg: course,
		DtwNm:  2.0,
		WptID:  "HARBOR",
	}
}

// cruiseRPM maps boat speed to a plausible engine speed.
func cruiseRPM(speedKt float64) float64 {
	if speedKt <= 0 {
		return 650 // idle
	}
	rpm := 650 + 175*speedKt
	if rpm > 2600 {
		rpm = 2600
	}
	return rpm
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngleDeg interpolates along the shortest path across wraparound.
func lerpAngleDeg(a0, a1, t float64) float64 {
	return normDeg(a0 + angleDiff(a1, a0)*t)
}

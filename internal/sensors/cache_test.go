package sensors

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binnacle/internal/schema"
	"binnacle/internal/units"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	reg, err := schema.Builtin()
	require.NoError(t, err)
	return NewCache(reg, cfg)
}

func TestUpdateStoresCanonicalValue(t *testing.T) {
	c := newTestCache(t, Config{})

	mv, err := c.Update(t0, Reading{
		Type: schema.Tank, Instance: 0, Field: "level",
		Value: 85.0, Unit: units.UnitPercent,
	})
	require.NoError(t, err)
	assert.Equal(t, "level", mv.Key)
	assert.InDelta(t, 0.85, mv.SI, 1e-9)
	assert.Equal(t, units.UnitPercent, mv.Unit)
	assert.Equal(t, "85%", mv.Formatted)
	assert.Equal(t, "LVL", mv.Mnemonic)
	assert.Equal(t, t0, mv.UpdatedAt)

	got, ok := c.GetMetric(schema.Tank, 0, "level")
	require.True(t, ok)
	assert.InDelta(t, 0.85, got.SI, 1e-9)
}

func TestUpdateResolvesHardwareAlias(t *testing.T) {
	c := newTestCache(t, Config{})

	mv, err := c.Update(t0, Reading{
		Type: schema.Battery, Instance: 1, Field: "soc",
		Value: 72, Unit: units.UnitPercent,
	})
	require.NoError(t, err)
	assert.Equal(t, "stateOfCharge", mv.Key, "hardware alias maps to storage key")

	_, ok := c.GetMetric(schema.Battery, 1, "stateOfCharge")
	assert.True(t, ok)
}

func TestUpdateRejectsUnknown(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{Type: "chartplotter", Field: "zoom", Value: 1, Unit: units.UnitCount})
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = c.Update(t0, Reading{Type: schema.Battery, Field: "flux", Value: 1, Unit: units.UnitVolt})
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = c.Update(t0, Reading{Type: schema.Battery, Instance: -1, Field: "voltage", Value: 12, Unit: units.UnitVolt})
	require.Error(t, err)
}

func TestUpdateRejectsWrongUnitCategory(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{
		Type: schema.Battery, Instance: 0, Field: "voltage",
		Value: 6.5, Unit: units.UnitKnot,
	})
	require.Error(t, err)
}

func TestRangeViolationKeepsLastGoodValue(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{
		Type: schema.Battery, Instance: 0, Field: "voltage",
		Value: 13.1, Unit: units.UnitVolt,
	})
	require.NoError(t, err)

	_, err = c.Update(t0.Add(time.Second), Reading{
		Type: schema.Battery, Instance: 0, Field: "voltage",
		Value: 180, Unit: units.UnitVolt,
	})
	var re *RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "voltage", re.Metric)
	assert.Equal(t, Key{Type: schema.Battery, Instance: 0}, re.Key)

	got, ok := c.GetMetric(schema.Battery, 0, "voltage")
	require.True(t, ok)
	assert.InDelta(t, 13.1, got.SI, 1e-9)
	assert.Equal(t, t0, got.UpdatedAt, "rejected update must not touch the timestamp")
}

func TestAggregates(t *testing.T) {
	c := newTestCache(t, Config{})

	for i, v := range []float64{4.0, 6.0, 5.0} {
		_, err := c.Update(t0.Add(time.Duration(i)*time.Second), Reading{
			Type: schema.Depth, Instance: 0, Field: "dbt",
			Value: v, Unit: units.UnitMeter,
		})
		require.NoError(t, err)
	}

	cur, ok := c.GetMetric(schema.Depth, 0, "belowTransducer")
	require.True(t, ok)
	assert.InDelta(t, 5.0, cur.SI, 1e-9)

	min, ok := c.GetMetric(schema.Depth, 0, "belowTransducer.min")
	require.True(t, ok)
	assert.InDelta(t, 4.0, min.SI, 1e-9)
	assert.Equal(t, "belowTransducer.min", min.Key)

	max, ok := c.GetMetric(schema.Depth, 0, "belowTransducer.max")
	require.True(t, ok)
	assert.InDelta(t, 6.0, max.SI, 1e-9)

	avg, ok := c.GetMetric(schema.Depth, 0, "belowTransducer.avg")
	require.True(t, ok)
	assert.InDelta(t, 5.0, avg.SI, 1e-9)
}

func TestAggregatesIgnoreRejectedValues(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{Type: schema.Depth, Instance: 0, Field: "dbt", Value: 4.0, Unit: units.UnitMeter})
	require.NoError(t, err)
	_, err = c.Update(t0, Reading{Type: schema.Depth, Instance: 0, Field: "dbt", Value: -3.0, Unit: units.UnitMeter})
	require.Error(t, err)

	min, _ := c.GetMetric(schema.Depth, 0, "belowTransducer.min")
	assert.InDelta(t, 4.0, min.SI, 1e-9)
}

func TestRenderFollowsPreferenceChange(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{
		Type: schema.Depth, Instance: 0, Field: "dbt",
		Value: 3.048, Unit: units.UnitMeter,
	})
	require.NoError(t, err)

	got, _ := c.GetMetric(schema.Depth, 0, "belowTransducer")
	assert.Equal(t, "3.0 m", got.Formatted)

	p := c.Preferences()
	p.Depth = units.UnitFoot
	require.NoError(t, c.SetPreferences(p))

	got, _ = c.GetMetric(schema.Depth, 0, "belowTransducer")
	assert.Equal(t, "10.0 ft", got.Formatted)
	assert.Equal(t, units.UnitFoot, got.Unit)
	assert.InDelta(t, 3.048, got.SI, 1e-9, "canonical value untouched by preference change")
}

func TestSetPreferencesRejectsInvalid(t *testing.T) {
	c := newTestCache(t, Config{})
	p := c.Preferences()
	p.Speed = units.UnitCelsius
	require.Error(t, c.SetPreferences(p))
	assert.Equal(t, units.UnitKnot, c.Preferences().Speed, "invalid preferences not applied")
}

func TestTypesAndInstancesSorted(t *testing.T) {
	c := newTestCache(t, Config{})

	add := func(st schema.SensorType, inst InstanceID, field string, v float64, u units.Unit) {
		t.Helper()
		_, err := c.Update(t0, Reading{Type: st, Instance: inst, Field: field, Value: v, Unit: u})
		require.NoError(t, err)
	}
	add(schema.Tank, 2, "level", 40, units.UnitPercent)
	add(schema.Tank, 0, "level", 85, units.UnitPercent)
	add(schema.Battery, 0, "voltage", 12.6, units.UnitVolt)

	assert.Equal(t, []schema.SensorType{schema.Battery, schema.Tank}, c.Types())
	assert.Equal(t, []InstanceID{0, 2}, c.Instances(schema.Tank))
	assert.Empty(t, c.Instances(schema.Engine))
}

func TestSnapshot(t *testing.T) {
	c := newTestCache(t, Config{})

	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	_, err = c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "current", Value: -8.2, Unit: units.UnitAmp})
	require.NoError(t, err)
	_, err = c.Update(t0.Add(-30*time.Second), Reading{Type: schema.Tank, Instance: 1, Field: "level", Value: 40, Unit: units.UnitPercent})
	require.NoError(t, err)

	snaps := c.Snapshot(t0.Add(10 * time.Second))
	require.Len(t, snaps, 2)

	bat := snaps[0]
	assert.Equal(t, schema.Battery, bat.Type)
	assert.Equal(t, "Battery", bat.Label)
	require.Len(t, bat.Metrics, 2)
	assert.Equal(t, "current", bat.Metrics[0].Key, "metrics sorted by key")
	assert.Equal(t, "voltage", bat.Metrics[1].Key)
	assert.InDelta(t, 10, bat.AgeSeconds, 1e-9)

	tank := snaps[1]
	assert.Equal(t, schema.Tank, tank.Type)
	assert.Equal(t, InstanceID(1), tank.Instance)
	assert.InDelta(t, 40, tank.AgeSeconds, 1e-9)

	one, ok := c.SnapshotInstance(t0, schema.Battery, 0)
	require.True(t, ok)
	assert.Len(t, one.Metrics, 2)

	_, ok = c.SnapshotInstance(t0, schema.Battery, 9)
	assert.False(t, ok)
}

func TestSnapshotAggregates(t *testing.T) {
	c := newTestCache(t, Config{})

	for _, v := range []float64{4.0, 6.0} {
		_, err := c.Update(t0, Reading{Type: schema.Depth, Instance: 0, Field: "dbt", Value: v, Unit: units.UnitMeter})
		require.NoError(t, err)
	}
	snap, ok := c.SnapshotInstance(t0, schema.Depth, 0)
	require.True(t, ok)
	require.Len(t, snap.Metrics, 1)
	m := snap.Metrics[0]
	assert.InDelta(t, 4.0, m.Min, 1e-9)
	assert.InDelta(t, 6.0, m.Max, 1e-9)
	assert.InDelta(t, 5.0, m.Avg, 1e-9)
}

func TestExpire(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Minute})

	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	_, err = c.Update(t0.Add(55*time.Second), Reading{Type: schema.Tank, Instance: 0, Field: "level", Value: 85, Unit: units.UnitPercent})
	require.NoError(t, err)

	removed := c.Expire(t0.Add(90 * time.Second))
	assert.Equal(t, []Key{{Type: schema.Battery, Instance: 0}}, removed)

	_, ok := c.GetMetric(schema.Battery, 0, "voltage")
	assert.False(t, ok)
	_, ok = c.GetMetric(schema.Tank, 0, "level")
	assert.True(t, ok)

	assert.Nil(t, c.Expire(t0.Add(90*time.Second)), "nothing left to expire")
}

func TestExpireDisabledWithoutTTL(t *testing.T) {
	c := newTestCache(t, Config{})
	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	assert.Nil(t, c.Expire(t0.Add(24*time.Hour)))
	_, ok := c.GetMetric(schema.Battery, 0, "voltage")
	assert.True(t, ok)
}

func TestUpdateAfterExpireRecreatesInstance(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Minute})

	_, err := c.Update(t0, Reading{Type: schema.Depth, Instance: 0, Field: "dbt", Value: 9.0, Unit: units.UnitMeter})
	require.NoError(t, err)
	c.Expire(t0.Add(2 * time.Minute))

	_, err = c.Update(t0.Add(3*time.Minute), Reading{Type: schema.Depth, Instance: 0, Field: "dbt", Value: 4.0, Unit: units.UnitMeter})
	require.NoError(t, err)

	min, ok := c.GetMetric(schema.Depth, 0, "belowTransducer.min")
	require.True(t, ok)
	assert.InDelta(t, 4.0, min.SI, 1e-9, "aggregates restart with the new instance")
}

func TestReset(t *testing.T) {
	c := newTestCache(t, Config{})
	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	c.Reset()
	assert.Empty(t, c.Types())
	assert.Equal(t, 0, c.Stats().Instances)
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Config{})
	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	_, err = c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "current", Value: 4, Unit: units.UnitAmp})
	require.NoError(t, err)

	id, _ := c.Subscribe(nil, 1)
	defer c.Unsubscribe(id)

	st := c.Stats()
	assert.Equal(t, 1, st.Instances)
	assert.Equal(t, 2, st.Metrics)
	assert.Equal(t, 1, st.Subscribers)
}

func TestMetricsInstrumentation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestCache(t, Config{Metrics: m, TTL: time.Minute})

	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)
	_, err = c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 180, Unit: units.UnitVolt})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rangeRejects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.instanceGauge))

	c.Expire(t0.Add(2 * time.Minute))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.expiredTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.instanceGauge))
}

func TestConcurrentReadersSingleWriter(t *testing.T) {
	c := newTestCache(t, Config{})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c.GetMetric(schema.Depth, 0, "belowTransducer")
				c.Snapshot(t0)
				c.Stats()
			}
		}()
	}

	for i := 0; i < 500; i++ {
		_, err := c.Update(t0.Add(time.Duration(i)*time.Millisecond), Reading{
			Type: schema.Depth, Instance: 0, Field: "dbt",
			Value: 4.0 + float64(i%10)/10, Unit: units.UnitMeter,
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

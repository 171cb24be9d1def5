// Package sensors holds the in-memory state of every sensor instance
// the feed has mentioned: current metric values in canonical units,
// running min/max/avg aggregates, and the subscription fan-out for live
// consumers.
//
// One ingest goroutine writes; any number of goroutines read. Writes
// take the write lock, reads take the read lock and copy value structs
// out, so a reader never observes a half-applied update.
package sensors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"binnacle/internal/schema"
	"binnacle/internal/units"
)

var (
	// ErrUnknownType reports a reading for a sensor type the schema
	// does not catalogue.
	ErrUnknownType = errors.New("sensors: unknown sensor type")
	// ErrUnknownField reports a reading for a metric the sensor type
	// does not carry.
	ErrUnknownField = errors.New("sensors: unknown metric")
)

// Config configures a Cache.
type Config struct {
	// TTL is how long an instance survives without an update before
	// the sweeper removes it. Zero disables expiry.
	TTL time.Duration
	// Preferences are the initial display preferences.
	Preferences units.Preferences
	// Metrics is optional instrumentation.
	Metrics *Metrics
}

type fieldState struct {
	cur   MetricValue
	min   float64
	max   float64
	sum   float64
	count uint64
}

type instanceState struct {
	fields   map[string]*fieldState
	lastSeen time.Time
}

// Cache is the sensor state store.
type Cache struct {
	schema  *schema.Registry
	ttl     time.Duration
	metrics *Metrics
	prefs   atomic.Pointer[units.Preferences]
	bcast   broadcaster

	mu        sync.RWMutex
	instances map[Key]*instanceState
}

// NewCache builds an empty cache over a validated schema.
func NewCache(reg *schema.Registry, cfg Config) *Cache {
	c := &Cache{
		schema:    reg,
		ttl:       cfg.TTL,
		metrics:   cfg.Metrics,
		instances: make(map[Key]*instanceState),
	}
	p := cfg.Preferences
	if err := p.DefaultAndValidate(); err != nil {
		p = units.DefaultPreferences()
	}
	c.prefs.Store(&p)
	return c
}

// Preferences returns the display preferences in force.
func (c *Cache) Preferences() units.Preferences {
	return *c.prefs.Load()
}

// SetPreferences swaps the display preferences. Stored canonical values
// are untouched; subsequent reads render with the new preferences.
func (c *Cache) SetPreferences(p units.Preferences) error {
	if err := p.DefaultAndValidate(); err != nil {
		return err
	}
	c.prefs.Store(&p)
	return nil
}

// render fills the display fields of a value copy from the current
// preferences.
func (c *Cache) render(mv MetricValue) MetricValue {
	p := c.prefs.Load()
	mv.Unit, mv.Formatted = p.Format(mv.Category, mv.SI)
	return mv
}

// Update applies one reading. The value is converted to the canonical
// unit of its schema field, range checked, stored, folded into the
// aggregates, and published to subscribers. On a range violation the
// previous value stays and a RangeError comes back.
func (c *Cache) Update(nowUTC time.Time, r Reading) (MetricValue, error) {
	if r.Instance < 0 {
		return MetricValue{}, fmt.Errorf("sensors: negative instance %d for %s", r.Instance, r.Type)
	}
	ts, ok := c.schema.Type(r.Type)
	if !ok {
		return MetricValue{}, fmt.Errorf("%w %q", ErrUnknownType, r.Type)
	}
	f, ok := ts.FieldByHardware(r.Field)
	if !ok {
		return MetricValue{}, fmt.Errorf("%w %q for %s", ErrUnknownField, r.Field, r.Type)
	}
	cat, ok := units.CategoryOf(r.Unit)
	if !ok || !units.Compatible(cat, f.Category) {
		return MetricValue{}, fmt.Errorf("sensors: unit %q does not measure %s for %s.%s", r.Unit, f.Category, r.Type, f.Key)
	}
	si, err := units.ToCanonical(r.Value, r.Unit)
	if err != nil {
		return MetricValue{}, err
	}

	key := Key{Type: r.Type, Instance: r.Instance}
	if !f.InRange(si) {
		c.metrics.rangeRejected()
		return MetricValue{}, &RangeError{Key: key, Metric: f.Key, SI: si, Min: f.Min, Max: f.Max}
	}

	mv := c.render(MetricValue{
		Type:      r.Type,
		Instance:  r.Instance,
		Key:       f.Key,
		Mnemonic:  f.Mnemonic,
		Label:     f.Label,
		Category:  f.Category,
		SI:        si,
		UpdatedAt: nowUTC,
	})

	c.mu.Lock()
	inst := c.instances[key]
	if inst == nil {
		inst = &instanceState{fields: make(map[string]*fieldState)}
		c.instances[key] = inst
		c.metrics.instanceCount(len(c.instances))
	}
	inst.lastSeen = nowUTC
	fs := inst.fields[f.Key]
	if fs == nil {
		fs = &fieldState{min: si, max: si}
		inst.fields[f.Key] = fs
	}
	fs.cur = mv
	if si < fs.min {
		fs.min = si
	}
	if si > fs.max {
		fs.max = si
	}
	fs.sum += si
	fs.count++
	c.mu.Unlock()

	c.metrics.updated()
	c.bcast.publish(mv)
	return mv, nil
}

// GetMetric returns one metric of one instance. Virtual keys with a
// ".min", ".max" or ".avg" suffix read the aggregates of the base
// metric. Display fields are rendered with the preferences in force
// now, not at store time.
func (c *Cache) GetMetric(st schema.SensorType, inst InstanceID, key string) (MetricValue, bool) {
	base, agg := splitVirtual(key)

	c.mu.RLock()
	is := c.instances[Key{Type: st, Instance: inst}]
	if is == nil {
		c.mu.RUnlock()
		return MetricValue{}, false
	}
	fs := is.fields[base]
	if fs == nil || fs.count == 0 {
		c.mu.RUnlock()
		return MetricValue{}, false
	}
	mv := fs.cur
	switch agg {
	case aggMin:
		mv.SI = fs.min
	case aggMax:
		mv.SI = fs.max
	case aggAvg:
		mv.SI = fs.sum / float64(fs.count)
	}
	c.mu.RUnlock()

	if agg != aggNone {
		mv.Key = key
	}
	return c.render(mv), true
}

// Types returns the sensor types currently present, sorted.
func (c *Cache) Types() []schema.SensorType {
	c.mu.RLock()
	seen := make(map[schema.SensorType]bool)
	for k := range c.instances {
		seen[k.Type] = true
	}
	c.mu.RUnlock()

	out := make([]schema.SensorType, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Instances returns the instance numbers of one sensor type, sorted.
func (c *Cache) Instances(st schema.SensorType) []InstanceID {
	c.mu.RLock()
	var out []InstanceID
	for k := range c.instances {
		if k.Type == st {
			out = append(out, k.Instance)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MetricSnapshot is one metric with its aggregates, as served to
// clients.
type MetricSnapshot struct {
	MetricValue
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// InstanceSnapshot is the served state of one sensor instance.
type InstanceSnapshot struct {
	Type        schema.SensorType `json:"type"`
	Label       string            `json:"label,omitempty"`
	Instance    InstanceID        `json:"instance"`
	LastSeenUTC time.Time         `json:"last_seen_utc"`
	AgeSeconds  float64           `json:"age_seconds"`
	Metrics     []MetricSnapshot  `json:"metrics"`
}

// Snapshot returns the state of every instance, sorted by type then
// instance number, with metrics sorted by key.
func (c *Cache) Snapshot(nowUTC time.Time) []InstanceSnapshot {
	c.mu.RLock()
	out := make([]InstanceSnapshot, 0, len(c.instances))
	for k, is := range c.instances {
		snap := InstanceSnapshot{
			Type:        k.Type,
			Instance:    k.Instance,
			LastSeenUTC: is.lastSeen,
			AgeSeconds:  nowUTC.Sub(is.lastSeen).Seconds(),
			Metrics:     make([]MetricSnapshot, 0, len(is.fields)),
		}
		if ts, ok := c.schema.Type(k.Type); ok {
			snap.Label = ts.Label
		}
		for _, fs := range is.fields {
			if fs.count == 0 {
				continue
			}
			snap.Metrics = append(snap.Metrics, MetricSnapshot{
				MetricValue: fs.cur,
				Min:         fs.min,
				Max:         fs.max,
				Avg:         fs.sum / float64(fs.count),
			})
		}
		out = append(out, snap)
	}
	c.mu.RUnlock()

	for i := range out {
		for j := range out[i].Metrics {
			out[i].Metrics[j].MetricValue = c.render(out[i].Metrics[j].MetricValue)
		}
		sort.Slice(out[i].Metrics, func(a, b int) bool {
			return out[i].Metrics[a].Key < out[i].Metrics[b].Key
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}

// SnapshotType returns the state of every instance of one type.
func (c *Cache) SnapshotType(nowUTC time.Time, st schema.SensorType) []InstanceSnapshot {
	all := c.Snapshot(nowUTC)
	out := all[:0]
	for _, s := range all {
		if s.Type == st {
			out = append(out, s)
		}
	}
	return out
}

// SnapshotInstance returns the state of one instance.
func (c *Cache) SnapshotInstance(nowUTC time.Time, st schema.SensorType, inst InstanceID) (InstanceSnapshot, bool) {
	for _, s := range c.SnapshotType(nowUTC, st) {
		if s.Instance == inst {
			return s, true
		}
	}
	return InstanceSnapshot{}, false
}

// Expire removes every instance whose last update is older than the
// TTL. It returns the removed keys. A zero TTL disables expiry.
func (c *Cache) Expire(nowUTC time.Time) []Key {
	if c.ttl <= 0 {
		return nil
	}
	cutoff := nowUTC.Add(-c.ttl)

	c.mu.Lock()
	var removed []Key
	for k, is := range c.instances {
		if is.lastSeen.Before(cutoff) {
			delete(c.instances, k)
			removed = append(removed, k)
		}
	}
	if removed != nil {
		c.metrics.expired(len(removed))
		c.metrics.instanceCount(len(c.instances))
	}
	c.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool {
		if removed[i].Type != removed[j].Type {
			return removed[i].Type < removed[j].Type
		}
		return removed[i].Instance < removed[j].Instance
	})
	return removed
}

// Reset drops all instances and aggregates.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.instances = make(map[Key]*instanceState)
	c.metrics.instanceCount(0)
	c.mu.Unlock()
}

// Stats summarizes cache occupancy.
type Stats struct {
	Instances   int `json:"instances"`
	Metrics     int `json:"metrics"`
	Subscribers int `json:"subscribers"`
}

// Stats returns current occupancy numbers.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	st := Stats{Instances: len(c.instances)}
	for _, is := range c.instances {
		st.Metrics += len(is.fields)
	}
	c.mu.RUnlock()
	st.Subscribers = c.bcast.len()
	return st
}

// Subscribe registers a live consumer. A nil filter receives every
// update; a non-nil filter receives updates for that instance only.
// Updates that would block a slow consumer are dropped.
func (c *Cache) Subscribe(filter *Key, buffer int) (int, <-chan MetricValue) {
	return c.bcast.subscribe(filter, buffer)
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Cache) Unsubscribe(id int) {
	c.bcast.unsubscribe(id)
}

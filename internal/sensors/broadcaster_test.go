package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binnacle/internal/schema"
	"binnacle/internal/units"
)

func TestSubscribeReceivesUpdates(t *testing.T) {
	c := newTestCache(t, Config{})

	id, ch := c.Subscribe(nil, 4)
	defer c.Unsubscribe(id)

	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12.6, Unit: units.UnitVolt})
	require.NoError(t, err)

	select {
	case mv := <-ch:
		assert.Equal(t, schema.Battery, mv.Type)
		assert.Equal(t, "voltage", mv.Key)
		assert.InDelta(t, 12.6, mv.SI, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}

func TestSubscribeFilter(t *testing.T) {
	c := newTestCache(t, Config{})

	id, ch := c.Subscribe(&Key{Type: schema.Tank, Instance: 1}, 4)
	defer c.Unsubscribe(id)

	_, err := c.Update(t0, Reading{Type: schema.Tank, Instance: 0, Field: "level", Value: 85, Unit: units.UnitPercent})
	require.NoError(t, err)
	_, err = c.Update(t0, Reading{Type: schema.Tank, Instance: 1, Field: "level", Value: 40, Unit: units.UnitPercent})
	require.NoError(t, err)

	mv := <-ch
	assert.Equal(t, InstanceID(1), mv.Instance)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra update: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsUpdates(t *testing.T) {
	c := newTestCache(t, Config{})

	id, ch := c.Subscribe(nil, 1)
	defer c.Unsubscribe(id)

	for i := 0; i < 5; i++ {
		_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 12 + float64(i)/10, Unit: units.UnitVolt})
		require.NoError(t, err)
	}

	// Only the first buffered update survives; the rest were dropped
	// rather than blocking the writer.
	mv := <-ch
	assert.InDelta(t, 12.0, mv.SI, 1e-9)
	assert.Empty(t, ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newTestCache(t, Config{})
	id, ch := c.Subscribe(nil, 1)
	c.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	c.Unsubscribe(id)
}

func TestRejectedUpdateNotPublished(t *testing.T) {
	c := newTestCache(t, Config{})
	id, ch := c.Subscribe(nil, 4)
	defer c.Unsubscribe(id)

	_, err := c.Update(t0, Reading{Type: schema.Battery, Instance: 0, Field: "voltage", Value: 999, Unit: units.UnitVolt})
	require.Error(t, err)

	select {
	case mv := <-ch:
		t.Fatalf("rejected value published: %+v", mv)
	case <-time.After(50 * time.Millisecond):
	}
}

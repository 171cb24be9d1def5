package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"binnacle/internal/schema"
	"binnacle/internal/sensors"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	// Clients only send control frames; anything longer is a protocol
	// violation.
	streamReadLimit = 512
	// Updates queued per client before the cache starts dropping them.
	streamBuffer = 256
)

// StreamMessage is one frame on the /api/stream socket. A client first
// receives a hello, then a snapshot of the current state, then updates
// as readings land.
type StreamMessage struct {
	Type     string                     `json:"type"`
	ClientID string                     `json:"client_id,omitempty"`
	NowUTC   string                     `json:"now_utc,omitempty"`
	Sensors  []sensors.InstanceSnapshot `json:"sensors,omitempty"`
	Metric   *sensors.MetricValue       `json:"metric,omitempty"`
}

// StreamHub upgrades /api/stream requests and bridges cache
// subscriptions onto websockets.
type StreamHub struct {
	cache    *sensors.Cache
	schema   *schema.Registry
	upgrader websocket.Upgrader
}

func NewStreamHub(cache *sensors.Cache, reg *schema.Registry) *StreamHub {
	return &StreamHub{
		cache:  cache,
		schema: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon serves a boat's local network; any origin
			// may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := h.filter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote an error response.
			log.Printf("web: stream upgrade failed: %v", err)
			return
		}
		h.serve(conn, filter)
	}
}

// filter parses the optional ?type=&instance= pair into a subscription
// filter. Absent both, the client receives every update.
func (h *StreamHub) filter(r *http.Request) (*sensors.Key, error) {
	q := r.URL.Query()
	typ := strings.TrimSpace(q.Get("type"))
	inst := strings.TrimSpace(q.Get("instance"))
	if typ == "" && inst == "" {
		return nil, nil
	}
	if typ == "" || inst == "" {
		return nil, errors.New("type and instance must be given together")
	}
	st := schema.SensorType(typ)
	if _, ok := h.schema.Type(st); !ok {
		return nil, fmt.Errorf("unknown sensor type %q", typ)
	}
	v, err := strconv.Atoi(inst)
	if err != nil || v < 0 {
		return nil, errors.New("instance must be a non-negative integer")
	}
	return &sensors.Key{Type: st, Instance: sensors.InstanceID(v)}, nil
}

func (h *StreamHub) serve(conn *websocket.Conn, filter *sensors.Key) {
	defer conn.Close()

	client := &streamClient{id: uuid.New().String(), conn: conn}

	// Subscribe before the snapshot so nothing falls in the gap
	// between the two. A client may see an update twice, never a
	// missing one.
	subID, updates := h.cache.Subscribe(filter, streamBuffer)
	defer h.cache.Unsubscribe(subID)

	// Reader: consumes pongs and notices when the peer goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	now := time.Now().UTC()
	hello := StreamMessage{
		Type:     "hello",
		ClientID: client.id,
		NowUTC:   now.Format(time.RFC3339Nano),
	}
	if err := client.send(hello); err != nil {
		return
	}
	if err := client.send(StreamMessage{Type: "snapshot", Sensors: h.snapshotFor(now, filter)}); err != nil {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case mv, ok := <-updates:
			if !ok {
				return
			}
			if err := client.send(StreamMessage{Type: "update", Metric: &mv}); err != nil {
				return
			}
		case <-ping.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func (h *StreamHub) snapshotFor(now time.Time, filter *sensors.Key) []sensors.InstanceSnapshot {
	if filter == nil {
		if list := h.cache.Snapshot(now); list != nil {
			return list
		}
		return []sensors.InstanceSnapshot{}
	}
	if snap, ok := h.cache.SnapshotInstance(now, filter.Type, filter.Instance); ok {
		return []sensors.InstanceSnapshot{snap}
	}
	return []sensors.InstanceSnapshot{}
}

// streamClient serializes writes to one connection. gorilla/websocket
// does not allow concurrent writers.
type streamClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamClient) send(msg StreamMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *streamClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
}

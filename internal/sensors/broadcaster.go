package sensors

import "sync"

// broadcaster fans metric updates out to subscribers. Sends never
// block: a subscriber that cannot keep up loses updates rather than
// stalling ingestion.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	filter *Key
	ch     chan MetricValue
}

func (b *broadcaster) subscribe(filter *Key, buffer int) (int, <-chan MetricValue) {
	if buffer <= 0 {
		buffer = 16
	}
	var f *Key
	if filter != nil {
		cp := *filter
		f = &cp
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]*subscription)
	}
	id := b.next
	b.next++
	b.subs[id] = &subscription{filter: f, ch: make(chan MetricValue, buffer)}
	return id, b.subs[id].ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

func (b *broadcaster) publish(mv MetricValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.filter != nil && (sub.filter.Type != mv.Type || sub.filter.Instance != mv.Instance) {
			continue
		}
		select {
		case sub.ch <- mv:
		default:
			// Drop for this subscriber; ingestion never waits.
		}
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

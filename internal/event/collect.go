package event

import "sync"

// Collector accumulates emitted events in order. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends ev. It satisfies Emitter via a method value.
func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Events returns a copy of everything collected so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// CountByType tallies collected events per type.
func (c *Collector) CountByType() map[Type]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[Type]int)
	for _, ev := range c.events {
		counts[ev.Type]++
	}
	return counts
}

// Tee returns an Emitter that forwards each event to every non-nil emitter.
func Tee(emitters ...Emitter) Emitter {
	return func(ev Event) {
		for _, e := range emitters {
			if e != nil {
				e(ev)
			}
		}
	}
}

package buffer

import "sync"

// growThreshold is the fill percentage at which capacity doubles.
const growThreshold = 70

// Growable is an unbounded FIFO queue backed by a ring buffer that doubles
// its capacity when it reaches 70% full. Producers never block.
type Growable[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	totalIn     int64
	totalOut    int64
	resizeCount int
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Count       int
	Capacity    int
	TotalIn     int64
	TotalOut    int64
	ResizeCount int
}

// New creates a queue with the given initial capacity.
func New[T any](initialCapacity int) *Growable[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Growable[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
}

// Send enqueues item. It returns false once the queue is closed.
func (g *Growable[T]) Send(item T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}

	threshold := max((g.capacity*growThreshold)/100, 1)
	if g.count+1 >= threshold {
		g.grow()
	}

	g.buf[g.tail] = item
	g.tail = (g.tail + 1) % g.capacity
	g.count++
	g.totalIn++
	return true
}

// TryReceive dequeues without blocking.
func (g *Growable[T]) TryReceive() (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == 0 {
		var zero T
		return zero, false
	}
	return g.pop(), true
}

// DrainTo dequeues up to limit items (all when limit <= 0).
func (g *Growable[T]) DrainTo(limit int) []T {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == 0 {
		return nil
	}
	n := g.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	for i := range out {
		out[i] = g.pop()
	}
	return out
}

// Close stops further sends. Items already queued can still be received.
func (g *Growable[T]) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Drained reports whether the queue is closed and empty.
func (g *Growable[T]) Drained() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed && g.count == 0
}

// Stats returns queue statistics.
func (g *Growable[T]) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Count:       g.count,
		Capacity:    g.capacity,
		TotalIn:     g.totalIn,
		TotalOut:    g.totalOut,
		ResizeCount: g.resizeCount,
	}
}

// pop removes the head item. Must be called with mu held and count > 0.
func (g *Growable[T]) pop() T {
	item := g.buf[g.head]
	var zero T
	g.buf[g.head] = zero
	g.head = (g.head + 1) % g.capacity
	g.count--
	g.totalOut++
	return item
}

// grow doubles capacity. Must be called with mu held.
func (g *Growable[T]) grow() {
	next := make([]T, g.capacity*2)
	if g.count > 0 {
		if g.head < g.tail {
			copy(next, g.buf[g.head:g.tail])
		} else {
			n := copy(next, g.buf[g.head:])
			copy(next[n:], g.buf[:g.tail])
		}
	}
	g.buf = next
	g.head = 0
	g.tail = g.count
	g.capacity *= 2
	g.resizeCount++
}

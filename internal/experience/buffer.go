package experience

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrBufferClosed is returned when operations are attempted on a closed buffer
	ErrBufferClosed = errors.New("experience buffer is closed")
)

// DefaultBufferCapacity is used when a non-positive capacity is requested
const DefaultBufferCapacity = 10000

// Buffer is a thread-safe ring buffer that drops the oldest experience
// when full.
type Buffer struct {
	mu       sync.RWMutex
	buffer   []*Experience
	capacity int
	size     int
	head     int // write position
	tail     int // read position
	closed   bool

	streamChan chan *Experience

	totalAdded    int64
	totalDropped  int64
	totalStreamed int64

	logger zerolog.Logger
}

// BufferStats contains buffer counters
type BufferStats struct {
	Size          int
	Capacity      int
	TotalAdded    int64
	TotalDropped  int64
	TotalStreamed int64
}

// NewBuffer creates a new experience buffer with the specified capacity
func NewBuffer(capacity int, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &Buffer{
		buffer:     make([]*Experience, capacity),
		capacity:   capacity,
		streamChan: make(chan *Experience, 100),
		logger:     logger.With().Str("component", "experience_buffer").Logger(),
	}
}

// Add appends an experience, evicting the oldest one when full
func (b *Buffer) Add(exp *Experience) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	b.push(exp)
	return nil
}

// AddBatch appends several experiences under one lock
func (b *Buffer) AddBatch(experiences []*Experience) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	for _, exp := range experiences {
		b.push(exp)
	}
	if len(experiences) > 0 {
		b.logger.Debug().
			Int("batch_size", len(experiences)).
			Int64("total_added", b.totalAdded).
			Msg("Added batch of experiences")
	}
	return nil
}

func (b *Buffer) push(exp *Experience) {
	if b.size >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.totalDropped++
		b.logger.Debug().
			Int64("dropped_total", b.totalDropped).
			Msg("Buffer full, dropping oldest experience")
	} else {
		b.size++
	}

	b.buffer[b.head] = exp
	b.head = (b.head + 1) % b.capacity
	b.totalAdded++

	select {
	case b.streamChan <- exp:
		b.totalStreamed++
	default:
	}
}

// Get removes and returns up to n of the oldest experiences
func (b *Buffer) Get(n int) []*Experience {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}

	result := make([]*Experience, n)
	for i := 0; i < n; i++ {
		result[i] = b.buffer[b.tail]
		b.buffer[b.tail] = nil
		b.tail = (b.tail + 1) % b.capacity
		b.size--
	}
	return result
}

// GetAll drains the buffer
func (b *Buffer) GetAll() []*Experience {
	b.mu.RLock()
	n := b.size
	b.mu.RUnlock()
	return b.Get(n)
}

// GetLatest returns the n most recent experiences without removing them
func (b *Buffer) GetLatest(n int) []*Experience {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}
	result := make([]*Experience, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.buffer[(start+i)%b.capacity]
	}
	return result
}

// StreamChannel delivers experiences as they are added. Experiences are
// dropped from the stream, not the buffer, when nobody is reading.
func (b *Buffer) StreamChannel() <-chan *Experience {
	return b.streamChan
}

// Size returns the current number of experiences
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of experiences held
func (b *Buffer) Capacity() int {
	return b.capacity
}

// IsFull reports whether the next Add will evict
func (b *Buffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size >= b.capacity
}

// Close rejects further writes and closes the stream channel
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	b.closed = true
	close(b.streamChan)

	b.logger.Info().
		Int64("total_added", b.totalAdded).
		Int64("total_dropped", b.totalDropped).
		Msg("Experience buffer closed")
	return nil
}

// Stats returns buffer counters
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BufferStats{
		Size:          b.size,
		Capacity:      b.capacity,
		TotalAdded:    b.totalAdded,
		TotalDropped:  b.totalDropped,
		TotalStreamed: b.totalStreamed,
	}
}

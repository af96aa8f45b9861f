package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte ring used to hand captured microphone
// audio from the device callback to the recognizer pump. Writes never block:
// bytes that do not fit are dropped and counted.
type RingBuffer struct {
	mu      sync.Mutex
	buffer  []byte
	read    int
	size    int // bytes currently stored
	dropped int64
	ready   chan struct{}
}

// NewRingBuffer creates a new ring buffer holding up to capacity bytes
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buffer: make([]byte, capacity),
		ready:  make(chan struct{}, 1),
	}
}

// Write stores as much of data as fits and returns the number of bytes stored
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()

	free := len(rb.buffer) - rb.size
	n := len(data)
	if n > free {
		rb.dropped += int64(n - free)
		n = free
	}

	write := (rb.read + rb.size) % len(rb.buffer)
	first := copy(rb.buffer[write:], data[:n])
	copy(rb.buffer, data[first:n])
	rb.size += n

	rb.mu.Unlock()

	if n > 0 {
		select {
		case rb.ready <- struct{}{}:
		default:
		}
	}
	return n
}

// Read moves up to len(p) bytes into p and returns the number read
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	if n > rb.size {
		n = rb.size
	}

	first := copy(p[:n], rb.buffer[rb.read:])
	copy(p[first:n], rb.buffer)
	rb.read = (rb.read + n) % len(rb.buffer)
	rb.size -= n

	return n
}

// Ready is signalled (coalesced) after writes that stored data
func (rb *RingBuffer) Ready() <-chan struct{} {
	return rb.ready
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Space returns the number of bytes available to write
func (rb *RingBuffer) Space() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.size
}

// Dropped returns how many bytes were discarded because the ring was full
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Clear discards buffered data
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.size = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Available() == 0
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.Space() == 0
}

package audio

import (
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(8)

	n := rb.Write([]byte{1, 2, 3})
	if n != 3 {
		t.Errorf("Expected 3 bytes written, got %d", n)
	}
	if rb.Available() != 3 {
		t.Errorf("Expected 3 bytes available, got %d", rb.Available())
	}
	if rb.Space() != 5 {
		t.Errorf("Expected 5 bytes of space, got %d", rb.Space())
	}
}

func TestRingBuffer_WriteOverflowDrops(t *testing.T) {
	rb := NewRingBuffer(4)

	n := rb.Write([]byte{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Errorf("Expected 4 bytes written, got %d", n)
	}
	if !rb.IsFull() {
		t.Error("Expected buffer to be full")
	}
	if rb.Dropped() != 2 {
		t.Errorf("Expected 2 dropped bytes, got %d", rb.Dropped())
	}
}

func TestRingBuffer_Read(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write([]byte{1, 2, 3, 4})

	out := make([]byte, 3)
	n := rb.Read(out)
	if n != 3 {
		t.Fatalf("Expected 3 bytes read, got %d", n)
	}
	if out[0] != 1 || out[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", out)
	}
	if rb.Available() != 1 {
		t.Errorf("Expected 1 byte left, got %d", rb.Available())
	}
}

func TestRingBuffer_ReadEmpty(t *testing.T) {
	rb := NewRingBuffer(8)

	if n := rb.Read(make([]byte, 4)); n != 0 {
		t.Errorf("Expected 0 bytes from empty buffer, got %d", n)
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty")
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(5)

	rb.Write([]byte{1, 2, 3, 4})
	rb.Read(make([]byte, 3))
	rb.Write([]byte{5, 6, 7, 8})

	out := make([]byte, 8)
	n := rb.Read(out)
	if n != 5 {
		t.Fatalf("Expected 5 bytes after wrap, got %d", n)
	}
	want := []byte{4, 5, 6, 7, 8}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Byte %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestRingBuffer_ReadySignal(t *testing.T) {
	rb := NewRingBuffer(4)

	select {
	case <-rb.Ready():
		t.Fatal("Expected no signal before a write")
	default:
	}

	rb.Write([]byte{1})
	rb.Write([]byte{2})

	select {
	case <-rb.Ready():
	default:
		t.Fatal("Expected a signal after writes")
	}

	select {
	case <-rb.Ready():
		t.Fatal("Expected signals to be coalesced")
	default:
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2})

	rb.Clear()

	if !rb.IsEmpty() || rb.Space() != 4 {
		t.Error("Expected buffer to be empty after Clear")
	}
}

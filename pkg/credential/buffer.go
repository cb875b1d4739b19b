package credential

import (
	"crypto/rand"
	"errors"
	"fmt"
	"golang.org/x/sys/unix"
	"sync"
)

// ErrPin is returned by New when the backing memory cannot be locked into RAM.
// Check RLIMIT_MEMLOCK when this occurs.
var ErrPin = errors.New("could not pin credential memory")

// Buffer is a fixed-capacity password buffer.
//
// Only the goroutine running the lock session mutates a Buffer. TryWipe is the exception: it may
// be called from any goroutine and gives up instead of waiting when a mutation is in progress.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a pinned buffer that can hold capacity-1 bytes.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("capacity must be at least 2, got %d", capacity)
	}

	data, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("failed to map credential memory: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("%w: %w", ErrPin, err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(data)
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("failed to exclude credential memory from core dumps: %w", err)
	}

	return &Buffer{data: data}, nil
}

// Cap returns the size of the backing storage.
func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Len returns the number of bytes typed so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Append adds c if it is printable and there is room for it.
// The last byte of the backing storage is never used, mirroring a NUL terminated password.
// Returns false when c was dropped.
func (b *Buffer) Append(c byte) bool {
	if c < 0x20 || c > 0x7e {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.length+1 >= len(b.data) {
		return false
	}

	b.data[b.length] = c
	b.length++
	return true
}

// Backspace removes the last byte. It does nothing on an empty buffer.
func (b *Buffer) Backspace() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length > 0 {
		b.length--
	}
}

// Bytes returns a view of the typed bytes. The view points into the pinned memory and is only
// valid until the next call that mutates the buffer. Do not retain it.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	return b.data[:b.length:b.length]
}

// Last returns the last typed byte.
func (b *Buffer) Last() (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.length == 0 {
		return 0, false
	}

	return b.data[b.length-1], true
}

// Clear overwrites the entire backing storage and empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wipe()
}

// TryWipe clears the buffer unless another goroutine is using it at this instant.
// It never blocks and reports whether the wipe happened.
func (b *Buffer) TryWipe() bool {
	if !b.mu.TryLock() {
		return false
	}
	defer b.mu.Unlock()

	b.wipe()
	return true
}

// wipe requires holding mu.
func (b *Buffer) wipe() {
	b.length = 0
	if b.closed {
		return
	}

	if _, err := rand.Read(b.data); err != nil {
		clear(b.data)
	}
}

// Close wipes the buffer and releases its memory. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.wipe()
	b.closed = true

	var err error
	if e := unix.Munlock(b.data); e != nil {
		err = errors.Join(err, fmt.Errorf("failed to unlock credential memory: %w", e))
	}
	if e := unix.Munmap(b.data); e != nil {
		err = errors.Join(err, fmt.Errorf("failed to unmap credential memory: %w", e))
	}
	b.data = nil

	return err
}

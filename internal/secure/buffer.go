package secure

import (
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"
	"sync"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"go.uber.org/zap/zapcore"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/logging"
)

// Placeholder is how a Buffer renders in any developer-facing output.
const Placeholder = "SecureBuffer(" + logging.RedactedValue + ")"

// region owns the protected memory. It is kept separate from Buffer so
// the allocator can track and purge it, and so the runtime cleanup can
// release it without keeping the Buffer reachable.
type region struct {
	mu      sync.Mutex
	memory  Memory
	mapping []byte
	data    []byte
	length  int
	locked  bool
	closed  bool
}

// release zeroes, unlocks and frees the memory, in that order. It
// reports whether this call performed the release.
func (r *region) release() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, nil
	}
	r.closed = true

	if r.mapping == nil {
		return true, nil
	}

	wipe(r.mapping)

	var firstErr error
	if r.locked {
		if err := r.memory.Unlock(r.mapping); err != nil {
			firstErr = fmt.Errorf("secure: unlock failed: %w", err)
		}
		r.locked = false
	}
	if err := r.memory.Free(r.mapping); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("secure: free failed: %w", err)
	}

	r.mapping = nil
	r.data = nil
	return true, firstErr
}

// Buffer holds secret bytes in locked memory outside the Go heap. It is
// read-only after construction. A Buffer must be closed by its owner;
// after Close, Bytes, Text and Copy panic.
type Buffer struct {
	region    *region
	allocator *Allocator
	cleanup   runtime.Cleanup
}

// Bytes returns the secret bytes. The slice points into protected memory
// and is only valid until Close; do not retain it or write through it.
// The Buffer must stay reachable while the slice is in use, which a
// deferred Close guarantees.
func (b *Buffer) Bytes() []byte {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()

	if b.region.closed {
		panic("secure: read from closed buffer")
	}
	return b.region.data
}

// Text returns the contents as a string, or a DecodeError if they are not
// valid UTF-8. The returned string is a heap copy; use it only at API
// boundaries that require a string.
func (b *Buffer) Text() (string, error) {
	defer runtime.KeepAlive(b)

	data := b.Bytes()
	if offset := invalidUTF8Offset(data); offset >= 0 {
		return "", &scerrors.DecodeError{Context: "secure buffer", Offset: offset}
	}
	return string(data), nil
}

// Copy returns a heap copy of the contents. This is the deliberate exit
// point from protected memory; the caller owns the copy and should wipe
// it with Wipe when done.
func (b *Buffer) Copy() []byte {
	defer runtime.KeepAlive(b)

	data := b.Bytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// Len returns the number of secret bytes.
func (b *Buffer) Len() int {
	return b.region.length
}

// Locked reports whether the memory is currently locked against swap.
// An empty buffer is never locked.
func (b *Buffer) Locked() bool {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()
	return b.region.locked
}

// Closed reports whether the buffer has been released.
func (b *Buffer) Closed() bool {
	b.region.mu.Lock()
	defer b.region.mu.Unlock()
	return b.region.closed
}

// Equal compares the contents of two buffers in constant time.
func (b *Buffer) Equal(other *Buffer) bool {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(other)
	return subtle.ConstantTimeCompare(b.Bytes(), other.Bytes()) == 1
}

// WriteTo writes the contents to w without an intermediate heap copy.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	defer runtime.KeepAlive(b)
	n, err := w.Write(b.Bytes())
	return int64(n), err
}

// Close zeroes the contents, unlocks and frees the memory. Close is
// idempotent; a nil Buffer is a no-op.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}
	b.cleanup.Stop()
	return b.allocator.release(b.region)
}

// String implements fmt.Stringer and never reveals the contents.
func (b *Buffer) String() string {
	return Placeholder
}

// GoString implements fmt.GoStringer for %#v.
func (b *Buffer) GoString() string {
	return Placeholder
}

// Format renders the placeholder for every verb, including %x and %q.
func (b *Buffer) Format(f fmt.State, verb rune) {
	_, _ = io.WriteString(f, Placeholder)
}

// MarshalLogObject lets the buffer be logged with zap.Object; only its
// length and lock state are emitted.
func (b *Buffer) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("value", logging.RedactedValue)
	enc.AddInt("length", b.Len())
	enc.AddBool("locked", b.Locked())
	return nil
}

// Wipe zeroes a heap slice that held secret bytes.
func Wipe(data []byte) {
	wipe(data)
}

func wipe(data []byte) {
	if len(data) == 0 {
		return
	}
	memguard.WipeBytes(data)
}

// invalidUTF8Offset returns the index of the first byte that does not
// start a valid UTF-8 sequence, or -1 if data is valid.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for offset := 0; offset < len(data); {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size == 1 {
			return offset
		}
		offset += size
	}
	return -1
}

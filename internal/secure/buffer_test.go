package secure

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/secure/securetest"
)

func TestNew_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("sk-test-0123456789")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x20}},
		{"single byte", []byte{'x'}},
		{"empty", []byte{}},
		{"nil", nil},
		{"large", bytes.Repeat([]byte("abcdef"), 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			allocator := NewAllocator()
			buffer, err := allocator.New(tt.data)
			require.NoError(t, err)
			defer buffer.Close()

			assert.True(t, bytes.Equal(tt.data, buffer.Bytes()))
			assert.Equal(t, len(tt.data), buffer.Len())
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	t.Parallel()

	source := []byte("original")
	buffer, err := NewAllocator().New(source)
	require.NoError(t, err)
	defer buffer.Close()

	source[0] = 'X'
	assert.Equal(t, "original", string(buffer.Bytes()))
}

func TestTake_WipesSource(t *testing.T) {
	t.Parallel()

	source := []byte("api-key-to-take")
	buffer, err := NewAllocator().Take(source)
	require.NoError(t, err)
	defer buffer.Close()

	assert.Equal(t, "api-key-to-take", string(buffer.Bytes()))
	assert.True(t, securetest.AllZero(source))
}

func TestClose_ZeroesThenUnlocksThenFrees(t *testing.T) {
	t.Parallel()

	memory := &securetest.Memory{}
	allocator := NewAllocator(WithMemory(memory))

	buffer, err := allocator.New([]byte("wipe me before release"))
	require.NoError(t, err)
	assert.True(t, buffer.Locked())

	require.NoError(t, buffer.Close())

	assert.Equal(t, []string{"alloc", "lock", "unlock", "free"}, memory.Ops())
	for _, event := range memory.Events() {
		switch event.Op {
		case "lock":
			// Locked before the secret was copied in.
			assert.True(t, securetest.AllZero(event.Snapshot))
		case "unlock", "free":
			assert.Len(t, event.Snapshot, len("wipe me before release"))
			assert.True(t, securetest.AllZero(event.Snapshot), "%s saw non-zero memory", event.Op)
		}
	}
}

func TestClose_DiscardedWithoutUse(t *testing.T) {
	t.Parallel()

	memory := &securetest.Memory{}
	allocator := NewAllocator(WithMemory(memory))

	buffer, err := allocator.New([]byte("never read"))
	require.NoError(t, err)
	require.NoError(t, buffer.Close())

	assert.Equal(t, 1, memory.Count("unlock"))
	assert.Equal(t, 1, memory.Count("free"))
	assert.Equal(t, 0, allocator.Live())
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	memory := &securetest.Memory{}
	allocator := NewAllocator(WithMemory(memory))

	buffer, err := allocator.New([]byte("twice"))
	require.NoError(t, err)

	require.NoError(t, buffer.Close())
	require.NoError(t, buffer.Close())

	assert.Equal(t, 1, memory.Count("free"))
	assert.True(t, buffer.Closed())

	var nilBuffer *Buffer
	assert.NoError(t, nilBuffer.Close())
}

func TestEmptyBuffer_NotLockedNotAllocated(t *testing.T) {
	t.Parallel()

	memory := &securetest.Memory{}
	allocator := NewAllocator(WithMemory(memory))

	buffer, err := allocator.New(nil)
	require.NoError(t, err)

	assert.False(t, buffer.Locked())
	assert.Empty(t, buffer.Bytes())
	require.NoError(t, buffer.Close())
	assert.Empty(t, memory.Ops())
}

func TestAccessAfterClosePanics(t *testing.T) {
	t.Parallel()

	buffer, err := NewAllocator().New([]byte("gone"))
	require.NoError(t, err)
	require.NoError(t, buffer.Close())

	assert.PanicsWithValue(t, "secure: read from closed buffer", func() { buffer.Bytes() })
	assert.Panics(t, func() { _, _ = buffer.Text() })
	assert.Panics(t, func() { buffer.Copy() })
}

func TestLockFailure_BestEffort(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	memory := &securetest.Memory{RefuseLock: true}
	allocator := NewAllocator(WithMemory(memory), WithLogger(zap.New(core)))

	buffer, err := allocator.New([]byte("still usable"))
	require.NoError(t, err)

	assert.False(t, buffer.Locked())
	assert.Equal(t, "still usable", string(buffer.Bytes()))
	warnings := logs.FilterMessageSnippet("memory lock failed").All()
	require.Len(t, warnings, 1)
	if limit, ok := memlockLimit(); ok {
		assert.Equal(t, limit, warnings[0].ContextMap()["memlock_limit"])
	}

	require.NoError(t, buffer.Close())
	assert.Equal(t, 0, memory.Count("unlock"), "an unlocked region must not be unlocked")
	assert.Equal(t, 1, memory.Count("free"))
}

func TestLockFailure_Required(t *testing.T) {
	t.Parallel()

	memory := &securetest.Memory{RefuseLock: true}
	allocator := NewAllocator(WithMemory(memory), WithLockPolicy(LockRequired))

	buffer, err := allocator.New([]byte("must be locked"))
	assert.Nil(t, buffer)
	require.Error(t, err)
	assert.ErrorIs(t, err, scerrors.ErrLockFailed)
	assert.ErrorIs(t, err, securetest.ErrLockRefused)

	// The region was released and never held the secret.
	assert.Equal(t, []string{"alloc", "lock", "free"}, memory.Ops())
	for _, event := range memory.Events() {
		assert.True(t, securetest.AllZero(event.Snapshot))
	}
	assert.Equal(t, 0, allocator.Live())
}

func TestAllocFailure(t *testing.T) {
	t.Parallel()

	allocator := NewAllocator(WithMemory(&securetest.Memory{FailAlloc: true}))
	_, err := allocator.New([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, allocator.Live())
}

func TestText(t *testing.T) {
	t.Parallel()

	allocator := NewAllocator()

	valid, err := allocator.New([]byte("héllo"))
	require.NoError(t, err)
	defer valid.Close()

	text, err := valid.Text()
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	invalid, err := allocator.New([]byte{'o', 'k', 0xff, 's', 'e', 'c', 'r', 'e', 't'})
	require.NoError(t, err)
	defer invalid.Close()

	_, err = invalid.Text()
	var decodeErr *scerrors.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 2, decodeErr.Offset)
	assert.NotContains(t, err.Error(), "secret")
}

func TestRendering_NeverRevealsContent(t *testing.T) {
	t.Parallel()

	const secret = "sk-very-secret-value"
	buffer, err := NewAllocator().New([]byte(secret))
	require.NoError(t, err)
	defer buffer.Close()

	for _, format := range []string{"%s", "%v", "%+v", "%#v", "%q", "%x", "%X", "%d"} {
		rendered := fmt.Sprintf(format, buffer)
		assert.Equal(t, Placeholder, rendered, format)
		assert.NotContains(t, rendered, secret)
	}

	wrapped := fmt.Sprintf("%v", struct{ Key *Buffer }{buffer})
	assert.NotContains(t, wrapped, secret)
	assert.True(t, strings.Contains(wrapped, "REDACTED"))
}

func TestMarshalLogObject(t *testing.T) {
	t.Parallel()

	const secret = "log-me-not"
	buffer, err := NewAllocator(WithMemory(&securetest.Memory{})).New([]byte(secret))
	require.NoError(t, err)
	defer buffer.Close()

	core, logs := observer.New(zap.DebugLevel)
	zap.New(core).Info("buffer", zap.Object("key", buffer), zap.Stringer("key_string", buffer))

	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, map[string]interface{}{"value": "[REDACTED]", "length": len(secret), "locked": true}, fields["key"])
	assert.Equal(t, Placeholder, fields["key_string"])
}

func TestEqualAndCopy(t *testing.T) {
	t.Parallel()

	allocator := NewAllocator()
	a, err := allocator.New([]byte("same"))
	require.NoError(t, err)
	defer a.Close()
	b, err := allocator.New([]byte("same"))
	require.NoError(t, err)
	defer b.Close()
	c, err := allocator.New([]byte("diff"))
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	copied := a.Copy()
	assert.Equal(t, []byte("same"), copied)
	Wipe(copied)
	assert.True(t, securetest.AllZero(copied))
	assert.Equal(t, "same", string(a.Bytes()))
}

func TestWriteTo(t *testing.T) {
	t.Parallel()

	buffer, err := NewAllocator().New([]byte("reply text"))
	require.NoError(t, err)
	defer buffer.Close()

	var out bytes.Buffer
	n, err := buffer.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "reply text", out.String())
}

func TestInvalidUTF8Offset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data []byte
		want int
	}{
		{[]byte("valid"), -1},
		{[]byte{}, -1},
		{[]byte{0xff}, 0},
		{[]byte("ab\xc3"), 2},
		{[]byte("日本\xffx"), 6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, invalidUTF8Offset(tt.data), "%q", tt.data)
	}
}

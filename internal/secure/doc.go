// Package secure provides a memory-safe buffer for secrets in transit:
// API keys, endpoint URLs, chat message bodies and image references.
//
// A [Buffer] copies its input into memory allocated outside the Go heap
// (mmap via memcall), locks it into physical RAM (mlock), and on Linux
// marks it excluded from core dumps. On Close the memory is zeroed,
// then unlocked, then unmapped, always in that order. Close is
// idempotent and runs on every exit path the caller defers it on; a
// runtime cleanup releases buffers that become unreachable without
// being closed.
//
// Locking is delegated to a [Memory] capability so tests can observe
// the bytes at unlock and free time. What happens when the OS refuses
// to lock is a [LockPolicy]: best-effort (log and continue) or required
// (fail construction with a LockError).
//
// A Buffer never reveals its contents through fmt or zap: every verb
// renders a fixed redacted placeholder. Use [Buffer.Bytes] or
// [Buffer.Text] for deliberate access, and [Buffer.Copy] for the one
// intentional copy out of protected memory at the serialization boundary.
//
// An [Allocator] tracks its live buffers; [Allocator.Purge] closes all
// of them, which the CLI wires to SIGINT and SIGTERM.
package secure

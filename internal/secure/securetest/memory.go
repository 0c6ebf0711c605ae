// Package securetest provides a secure.Memory that records what happens
// to each region, for tests that need to see memory at release time.
package securetest

import (
	"bytes"
	"errors"
	"sync"
)

// ErrLockRefused is returned by Lock when a Memory refuses locks.
var ErrLockRefused = errors.New("securetest: lock refused")

// Event is one call made on a Memory.
type Event struct {
	Op string // "alloc", "lock", "unlock" or "free"
	// Snapshot is a copy of the region at the time of the call. It is
	// empty for "alloc".
	Snapshot []byte
}

// Memory is a heap-backed secure.Memory that records every call.
type Memory struct {
	// RefuseLock makes every Lock call fail with ErrLockRefused.
	RefuseLock bool
	// FailAlloc makes every Alloc call fail.
	FailAlloc bool

	mu     sync.Mutex
	events []Event
}

func (m *Memory) record(op string, region []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snapshot []byte
	if region != nil {
		snapshot = bytes.Clone(region)
	}
	m.events = append(m.events, Event{Op: op, Snapshot: snapshot})
}

// Alloc returns a zeroed heap slice.
func (m *Memory) Alloc(size int) ([]byte, error) {
	if m.FailAlloc {
		return nil, errors.New("securetest: alloc refused")
	}
	m.record("alloc", nil)
	return make([]byte, size), nil
}

// Lock records the call and fails when RefuseLock is set.
func (m *Memory) Lock(region []byte) error {
	m.record("lock", region)
	if m.RefuseLock {
		return ErrLockRefused
	}
	return nil
}

// Unlock records the region contents.
func (m *Memory) Unlock(region []byte) error {
	m.record("unlock", region)
	return nil
}

// Free records the region contents.
func (m *Memory) Free(region []byte) error {
	m.record("free", region)
	return nil
}

// Events returns a copy of the recorded calls.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Ops returns the recorded operation names in order.
func (m *Memory) Ops() []string {
	var ops []string
	for _, event := range m.Events() {
		ops = append(ops, event.Op)
	}
	return ops
}

// Count returns how many times op was called.
func (m *Memory) Count(op string) int {
	count := 0
	for _, event := range m.Events() {
		if event.Op == op {
			count++
		}
	}
	return count
}

// AllZero reports whether every byte of data is zero.
func AllZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

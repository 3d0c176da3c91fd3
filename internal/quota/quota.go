// Package quota implements the lock-free atomic reservation bucket (C5):
// per-axis counters over runtime, memory, I/O, network, and concurrency,
// gated by a fixed-order compare-then-commit try_reserve and released
// RAII-style via Reservation.Release. Grounded in the same sync/atomic
// counter idiom the teacher uses for its session metrics counters
// (internal/session/executor.go), generalized to five independent axes.
package quota

import (
	"fmt"
	"sync/atomic"
)

// Axis names one of the five reservation dimensions, used in
// ErrQuotaExhausted to report which axis overflowed.
type Axis string

const (
	AxisRuntime     Axis = "runtime"
	AxisMemory      Axis = "memory"
	AxisIO          Axis = "io"
	AxisNetwork     Axis = "network"
	AxisConcurrency Axis = "concurrency"
)

// ExhaustedError reports the axis, the remaining headroom, and the
// amount requested when try_reserve is refused.
type ExhaustedError struct {
	Axis      Axis
	Available uint64
	Requested uint64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("quota: axis %s exhausted (available=%d requested=%d)", e.Axis, e.Available, e.Requested)
}

// Limits fixes the per-axis ceiling for a Bucket.
type Limits struct {
	Runtime     uint64
	Memory      uint64
	IO          uint64
	Network     uint64
	Concurrency uint64
}

// Bucket holds one set of atomic counters guarded by a fixed limit set.
// All fields are accessed exclusively through atomic operations; the
// struct itself requires no external locking.
type Bucket struct {
	limits Limits

	runtimeUsed     atomic.Uint64
	memoryUsed      atomic.Uint64
	ioUsed          atomic.Uint64
	networkUsed     atomic.Uint64
	concurrencyUsed atomic.Uint64
}

// New creates a Bucket with the given limits, all counters starting at
// zero.
func New(limits Limits) *Bucket {
	return &Bucket{limits: limits}
}

// Reservation is a scoped hold on a tuple of deltas. Release restores the
// bucket's counters; it is idempotent — calling it more than once is a
// no-op after the first call.
type Reservation struct {
	bucket   *Bucket
	runtime  uint64
	memory   uint64
	io       uint64
	network  uint64
	released atomic.Bool
}

// Release drops the reservation, subtracting its deltas from the bucket.
// Safe to call multiple times and safe to call from a defer guarding a
// panicking verb body.
func (r *Reservation) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	r.bucket.runtimeUsed.Add(^(r.runtime - 1))
	r.bucket.memoryUsed.Add(^(r.memory - 1))
	r.bucket.ioUsed.Add(^(r.io - 1))
	r.bucket.networkUsed.Add(^(r.network - 1))
	r.bucket.concurrencyUsed.Add(^uint64(0))
}

// TryReserve attempts to reserve (runtime, memory, io, network, 1) atomically
// in the fixed axis order runtime -> memory -> io -> network -> concurrency.
// Each axis is checked with a relaxed load before any counter is mutated;
// if any axis would overflow, no counter is touched and an *ExhaustedError
// names the offending axis. On success every counter is incremented and a
// Reservation owning the deltas is returned. A reservation of all zeros
// succeeds without touching any counter, concurrency included.
func (b *Bucket) TryReserve(runtime, memory, io, network uint64) (*Reservation, error) {
	if runtime == 0 && memory == 0 && io == 0 && network == 0 {
		r := &Reservation{bucket: b}
		r.released.Store(true)
		return r, nil
	}
	if avail := headroom(b.limits.Runtime, b.runtimeUsed.Load()); runtime > avail {
		return nil, &ExhaustedError{Axis: AxisRuntime, Available: avail, Requested: runtime}
	}
	if avail := headroom(b.limits.Memory, b.memoryUsed.Load()); memory > avail {
		return nil, &ExhaustedError{Axis: AxisMemory, Available: avail, Requested: memory}
	}
	if avail := headroom(b.limits.IO, b.ioUsed.Load()); io > avail {
		return nil, &ExhaustedError{Axis: AxisIO, Available: avail, Requested: io}
	}
	if avail := headroom(b.limits.Network, b.networkUsed.Load()); network > avail {
		return nil, &ExhaustedError{Axis: AxisNetwork, Available: avail, Requested: network}
	}
	if avail := headroom(b.limits.Concurrency, b.concurrencyUsed.Load()); avail < 1 {
		return nil, &ExhaustedError{Axis: AxisConcurrency, Available: avail, Requested: 1}
	}

	b.runtimeUsed.Add(runtime)
	b.memoryUsed.Add(memory)
	b.ioUsed.Add(io)
	b.networkUsed.Add(network)
	b.concurrencyUsed.Add(1)

	return &Reservation{bucket: b, runtime: runtime, memory: memory, io: io, network: network}, nil
}

func headroom(limit, used uint64) uint64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// UtilizationPercent averages used/limit across the five axes, expressed
// as a percentage. An axis with a zero limit is excluded from the average
// (treated as unconstrained).
func (b *Bucket) UtilizationPercent() float64 {
	type pair struct{ used, limit uint64 }
	pairs := []pair{
		{b.runtimeUsed.Load(), b.limits.Runtime},
		{b.memoryUsed.Load(), b.limits.Memory},
		{b.ioUsed.Load(), b.limits.IO},
		{b.networkUsed.Load(), b.limits.Network},
		{b.concurrencyUsed.Load(), b.limits.Concurrency},
	}
	var sum float64
	var n int
	for _, p := range pairs {
		if p.limit == 0 {
			continue
		}
		sum += float64(p.used) / float64(p.limit) * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// IsCritical reports whether utilization has crossed the 90% soft-alarm
// threshold.
func (b *Bucket) IsCritical() bool {
	return b.UtilizationPercent() >= 90
}

// Snapshot returns the current used values per axis, for telemetry export.
type Snapshot struct {
	RuntimeUsed     uint64
	MemoryUsed      uint64
	IOUsed          uint64
	NetworkUsed     uint64
	ConcurrencyUsed uint64
}

// Snapshot reads all five counters. Not atomic as a group; intended for
// monitoring, not correctness-critical logic.
func (b *Bucket) Snapshot() Snapshot {
	return Snapshot{
		RuntimeUsed:     b.runtimeUsed.Load(),
		MemoryUsed:      b.memoryUsed.Load(),
		IOUsed:          b.ioUsed.Load(),
		NetworkUsed:     b.networkUsed.Load(),
		ConcurrencyUsed: b.concurrencyUsed.Load(),
	}
}

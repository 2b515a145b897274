// Copyright 2018 Capsule8, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pmu describes CPU performance monitoring units to a counter
// scheduler. A PMU backend (e.g. power8) translates raw event codes into
// resource constraints and synthesizes the control register images that
// program the hardware; this package holds the hardware-independent types
// those backends produce and consume.
package pmu

// GenericEvent identifies one of the cross-platform hardware events that
// every backend maps to a native event code.
type GenericEvent int

const (
	PERF_COUNT_HW_CPU_CYCLES GenericEvent = iota
	PERF_COUNT_HW_INSTRUCTIONS
	PERF_COUNT_HW_CACHE_REFERENCES
	PERF_COUNT_HW_CACHE_MISSES
	PERF_COUNT_HW_BRANCH_INSTRUCTIONS
	PERF_COUNT_HW_BRANCH_MISSES
	PERF_COUNT_HW_BUS_CYCLES
	PERF_COUNT_HW_STALLED_CYCLES_FRONTEND
	PERF_COUNT_HW_STALLED_CYCLES_BACKEND
	PERF_COUNT_HW_REF_CPU_CYCLES
	PERF_COUNT_HW_MAX
)

// Feature flags advertised by a PMU backend.
const (
	// FlagOnlyCountRun indicates counters only advance while the run
	// latch is set, which makes total-count and run-count events
	// interchangeable for alternatives purposes.
	FlagOnlyCountRun uint64 = 1 << iota

	// FlagHasSSlot indicates the sampled instruction's pipeline slot is
	// recoverable from the sampling registers.
	FlagHasSSlot

	// FlagHasSIER indicates the PMU implements the sampled instruction
	// event register.
	FlagHasSIER
)

// Constraint is one event's resource demand, expressed as a (mask, value)
// pair over a 64-bit vector. The vector is partitioned into value fields
// (an exact configuration the event requires, compared after masking) and
// adder fields (small counters that accumulate by integer addition across
// events; overflow into the adjacent bit, which appears only in the mask,
// signals a resource conflict). See ConstraintSet for the accumulation
// arithmetic.
type Constraint struct {
	Mask  uint64
	Value uint64
}

// RegisterSet is the control register image programming one simultaneously
// scheduled group of events: the primary enable word, the per-counter
// selector/unit word, and the sampling/threshold word.
type RegisterSet struct {
	MMCR0 uint64
	MMCR1 uint64
	MMCRA uint64
}

// PMU describes one hardware variant's counting resources and the
// operations that allocate and encode events for it. A PMU value is
// constructed once by its backend package, registered, and treated as
// read-only from then on; all operation fields are pure functions, safe
// for concurrent use.
type PMU struct {
	// Name identifies the hardware variant, e.g. "POWER8".
	Name string

	// NumCounters is the size of the counter pool.
	NumCounters int

	// MaxAlternatives bounds the slice length GetAlternatives returns.
	MaxAlternatives int

	// AddFields has the low bit of every adder field in the constraint
	// vector set; it drives the carry term when two accumulated values
	// are combined.
	AddFields uint64

	// TestAdder is added once to an accumulated value before the
	// overflow test so that adder fields overflow exactly when their
	// hardware limit is exceeded rather than at their natural bit width.
	TestAdder uint64

	// Flags advertises optional hardware features (Flag* bits).
	Flags uint64

	// GenericEvents maps cross-platform event identifiers to this
	// hardware's native event codes.
	GenericEvents map[GenericEvent]uint64

	// GetConstraint decodes one raw event code into its resource
	// constraint, or returns an error for an event the hardware cannot
	// encode at all. It never inspects other events.
	GetConstraint func(event uint64) (Constraint, error)

	// GetAlternatives returns the event codes that count the same
	// logical quantity as event using different hardware resources.
	// The first element is always event itself. flags is the PMU flags
	// word in effect for the session (FlagOnlyCountRun enables the
	// run-latch substitutions).
	GetAlternatives func(event uint64, flags uint64) []uint64

	// ComputeRegisters assigns counters to an already-validated group
	// of events and packs the control register image. The returned
	// slice maps each input index to its zero-based counter slot.
	// Passing a group that never passed constraint checking is a
	// caller bug; the result for such input is unspecified.
	ComputeRegisters func(events []uint64) ([]int, RegisterSet)

	// DisableCounter clears the selector field of the one-based counter
	// slot pmc in regs, freeing that counter without recomputing the
	// whole image. Slots without a selector field are a no-op.
	DisableCounter func(pmc int, regs *RegisterSet)
}

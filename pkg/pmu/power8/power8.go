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

// Package power8 implements counter allocation and control register
// synthesis for the POWER8 performance monitoring unit: six counters, of
// which PMC1-PMC4 are programmable and PMC5/PMC6 each count a single fixed
// event.
package power8

import (
	"errors"

	"github.com/capsule8/pmualloc/pkg/pmu"
)

// Raw event codes pack the full measurement request into 64 bits:
//
//	bits  0:7   pmcxsel   selector code
//	bit   8     mark      sample capture attached
//	bit   11    combine
//	bits 12:15  unit
//	bits 16:19  pmc       counter pin, 0 = assign automatically
//	bits 20:23  cache_sel L1/L2/L3 cache sub-selector (bit 22 flags L1)
//	bits 24:28  sample    sampling mode and eligibility, marked events only
//	bits 29:31  thresh_sel
//	bits 32:39  thresh_ctl threshold start/stop, or fabric match value
//	bits 40:49  thresh_cmp 3-bit exponent, 7-bit mantissa
const (
	eventThrCmpShift   = 40
	eventThrCmpMask    = 0x3ff
	eventThrCtlShift   = 32
	eventThrCtlMask    = 0xff
	eventThrSelShift   = 29
	eventThrSelMask    = 0x7
	eventThreshShift   = 29 // sel, ctl and cmp as one field
	eventThreshMask    = 0x1fffff
	eventSampleShift   = 24
	eventSampleMask    = 0x1f
	eventCacheSelShift = 20
	eventCacheSelMask  = 0xf
	eventIsL1          = 4 << eventCacheSelShift
	eventPMCShift      = 16
	eventPMCMask       = 0xf
	eventUnitShift     = 12
	eventUnitMask      = 0xf
	eventCombineShift  = 11
	eventCombineMask   = 0x1
	eventMarkedShift   = 8
	eventIsMarked      = 1 << eventMarkedShift
	eventPselMask      = 0xff
)

// Constraint vector layout. PMC1-PMC6 and NC ("number of counters") are
// adder fields; everything above bit 16 is a value field.
//
//	bits  0:11  p1..p6    two bits per counter, low bit added
//	bits 12:15  nc        programmable counters in use
//	bits 16:20  sample
//	bits 22:23  l1 I/D qualifier
//	bits 32:52  thresh    sel + ctl + cmp
//	bits 56:63  fab_match
const (
	cnstNCShift = 12
	cnstNCVal   = 1 << cnstNCShift
	cnstNCMask  = 8 << cnstNCShift

	// Up to four events may use the programmable counters, which needs
	// three bits of nc; biasing by 3 in the test adder makes the fifth
	// event carry into the mask bit.
	testAdder = 3 << cnstNCShift

	cnstSampleShift   = 16
	cnstL1QualShift   = 22
	cnstThreshShift   = 32
	cnstFabMatchShift = 56
)

func cnstPMCVal(pmc uint64) uint64 { return 1 << ((pmc - 1) * 2) }
func cnstPMCMask(pmc uint64) uint64 { return 2 << ((pmc - 1) * 2) }

func cnstSampleVal(v uint64) uint64 { return (v & eventSampleMask) << cnstSampleShift }
func cnstL1QualVal(v uint64) uint64 { return (v & 3) << cnstL1QualShift }
func cnstThreshVal(v uint64) uint64 { return (v & eventThreshMask) << cnstThreshShift }
func cnstFabVal(v uint64) uint64 { return (v & eventThrCtlMask) << cnstFabMatchShift }

// addFields has every adder field's low bit set: the two-bit fields for
// PMC1-PMC6 plus nc.
const addFields = 1<<0 | 1<<2 | 1<<4 | 1<<6 | 1<<8 | 1<<10 | cnstNCVal

// MMCR1 packs unit, combine and selector per programmable counter, higher
// counters at lower bit positions, plus the two L1 qualifier bits.
func mmcr1UnitShift(pmc uint64) uint64 { return 60 - 4*(pmc-1) }
func mmcr1CombineShift(pmc uint64) uint64 { return 35 - (pmc - 1) }
func mmcr1PMCSelShift(pmc uint64) uint64 { return 24 - 8*(pmc-1) }

const (
	mmcr1DCQualShift = 47
	mmcr1ICQualShift = 46
)

// MMCRA field offsets and fixed bits.
const (
	mmcraSampleEnable  = 1 << 0
	mmcraSampModeShift = 1
	mmcraSampEligShift = 4
	mmcraThrCtlShift   = 8
	mmcraThrSelShift   = 16
	mmcraThrCmpShift   = 32
	mmcraSDARModeTLB   = uint64(1) << 42
)

// MMCR0 freeze-on-overflow enables.
const (
	mmcr0PMC1CE = 0x00008000
	mmcr0PMCjCE = 0x00004000
)

var (
	// ErrBadCounter rejects a pin outside the counter pool or a pin to
	// PMC5/PMC6 with a selector those counters cannot count.
	ErrBadCounter = errors.New("power8: invalid counter selection for event")

	// ErrBadCacheSel rejects an L2/L3 event with a non-zero cache
	// sub-selector. The selector lives in MMCRC, which only the
	// hypervisor can write; it is assumed pre-zeroed, so only the zero
	// selector is usable.
	ErrBadCacheSel = errors.New("power8: cache selector not programmable for L2/L3 unit")

	// ErrBadThreshold rejects a denormal threshold compare encoding:
	// a non-zero exponent with both high mantissa bits clear.
	ErrBadThreshold = errors.New("power8: invalid threshold compare encoding")
)

func extract(event, shift, mask uint64) uint64 {
	return (event >> shift) & mask
}

// isFabMatch reports whether event is one of the two fabric response match
// events, whose threshold control byte carries a match value rather than a
// timing threshold. Only pmc, unit and pmcxsel participate; the edge bit
// (bit 0) is ignored.
func isFabMatch(event uint64) bool {
	event &= 0xff0fe
	return event == PM_MRK_FAB_RSP_MATCH || event == PM_MRK_FAB_RSP_MATCH_CYC
}

// GetConstraint decodes one raw event code into its constraint vector,
// rejecting encodings the hardware cannot count at all.
func GetConstraint(event uint64) (pmu.Constraint, error) {
	var mask, value uint64

	pmc := extract(event, eventPMCShift, eventPMCMask)
	unit := extract(event, eventUnitShift, eventUnitMask)
	cache := extract(event, eventCacheSelShift, eventCacheSelMask)

	if pmc != 0 {
		if pmc > 6 {
			return pmu.Constraint{}, ErrBadCounter
		}

		mask |= cnstPMCMask(pmc)
		value |= cnstPMCVal(pmc)

		if pmc >= 5 && event != PM_RUN_INST_CMPL && event != PM_RUN_CYC {
			return pmu.Constraint{}, ErrBadCounter
		}
	}

	if pmc <= 4 {
		// Count programmable counters in use. Events with pmc == 0
		// still consume one, it just gets assigned later. PMC5 and
		// PMC6 stay out of nc: each counts exactly one event, checked
		// above.
		mask |= cnstNCMask
		value |= cnstNCVal
	}

	if unit >= 6 && unit <= 9 {
		if cache != 0 {
			return pmu.Constraint{}, ErrBadCacheSel
		}
	} else if event&eventIsL1 != 0 {
		mask |= cnstL1QualVal(3)
		value |= cnstL1QualVal(cache)
	}

	if event&eventIsMarked != 0 {
		mask |= cnstSampleVal(eventSampleMask)
		value |= cnstSampleVal(event >> eventSampleShift)
	}

	if isFabMatch(event) {
		// The threshold control byte is the fabric match value here,
		// so constrain it as an exact value instead of a threshold.
		mask |= cnstFabVal(eventThrCtlMask)
		value |= cnstFabVal(event >> eventThrCtlShift)
	} else {
		// A non-zero exponent requires at least one of the two high
		// mantissa bits; anything else is a denormal the comparator
		// cannot represent.
		cmp := extract(event, eventThrCmpShift, eventThrCmpMask)
		if exp := cmp >> 7; exp != 0 && cmp&0x60 == 0 {
			return pmu.Constraint{}, ErrBadThreshold
		}

		mask |= cnstThreshVal(eventThreshMask)
		value |= cnstThreshVal(event >> eventThreshShift)
	}

	return pmu.Constraint{Mask: mask, Value: value}, nil
}

// findAlternative returns the row of eventAlternatives containing event, or
// -1. Rows are sorted by first column, so the scan stops at the first key
// past event.
func findAlternative(event uint64) int {
	for i := range eventAlternatives {
		if event < eventAlternatives[i][0] {
			break
		}

		for j := 0; j < maxAlt && eventAlternatives[i][j] != 0; j++ {
			if event == eventAlternatives[i][j] {
				return i
			}
		}
	}

	return -1
}

// GetAlternatives returns every event code equivalent to event, the input
// itself first. With FlagOnlyCountRun set, counters only advance while the
// run latch is set, so PM_CYC counts the same thing as PM_RUN_CYC and
// PM_INST_CMPL the same as PM_RUN_INST_CMPL; those pairs substitute for
// each other in both directions.
func GetAlternatives(event uint64, flags uint64) []uint64 {
	alt := make([]uint64, 0, maxAlt+1)
	alt = append(alt, event)

	if i := findAlternative(event); i >= 0 {
		for j := 0; j < maxAlt; j++ {
			altEvent := eventAlternatives[i][j]
			if altEvent != 0 && altEvent != event {
				alt = append(alt, altEvent)
			}
		}
	}

	if flags&pmu.FlagOnlyCountRun != 0 {
		n := len(alt)
		for i := 0; i < n; i++ {
			switch alt[i] {
			case PM_CYC:
				alt = append(alt, PM_RUN_CYC)
			case PM_RUN_CYC:
				alt = append(alt, PM_CYC)
			case PM_INST_CMPL:
				alt = append(alt, PM_RUN_INST_CMPL)
			case PM_RUN_INST_CMPL:
				alt = append(alt, PM_INST_CMPL)
			}
		}
	}

	return alt
}

// ComputeRegisters assigns a counter to each event and packs the group's
// control register image. Events must already have passed constraint
// checking, individually and combined; the result for an unchecked group is
// unspecified. The returned slice maps each input index to its zero-based
// counter.
//
// Assignment takes two passes: free counters can only be handed out once
// every explicit pin in the group is known, and packing needs final counter
// numbers.
func ComputeRegisters(events []uint64) ([]int, pmu.RegisterSet) {
	var regs pmu.RegisterSet
	var pmcInUse uint64

	for _, event := range events {
		if pmc := extract(event, eventPMCShift, eventPMCMask); pmc != 0 {
			pmcInUse |= 1 << pmc
		}
	}

	// In continuous sampling mode, update the SDAR on TLB miss.
	regs.MMCRA = mmcraSDARModeTLB

	counters := make([]int, len(events))
	for i, event := range events {
		pmc := extract(event, eventPMCShift, eventPMCMask)
		unit := extract(event, eventUnitShift, eventUnitMask)
		combine := extract(event, eventCombineShift, eventCombineMask)
		psel := event & eventPselMask

		if pmc == 0 {
			for pmc = 1; pmc <= 4; pmc++ {
				if pmcInUse&(1<<pmc) == 0 {
					break
				}
			}

			pmcInUse |= 1 << pmc
		}

		if pmc <= 4 {
			regs.MMCR1 |= unit << mmcr1UnitShift(pmc)
			regs.MMCR1 |= combine << mmcr1CombineShift(pmc)
			regs.MMCR1 |= psel << mmcr1PMCSelShift(pmc)
		}

		if event&eventIsL1 != 0 {
			cache := event >> eventCacheSelShift
			regs.MMCR1 |= (cache & 1) << mmcr1ICQualShift
			cache >>= 1
			regs.MMCR1 |= (cache & 1) << mmcr1DCQualShift
		}

		if event&eventIsMarked != 0 {
			regs.MMCRA |= mmcraSampleEnable

			val := extract(event, eventSampleShift, eventSampleMask)
			if val != 0 {
				regs.MMCRA |= (val & 3) << mmcraSampModeShift
				regs.MMCRA |= (val >> 2) << mmcraSampEligShift
			}
		}

		if isFabMatch(event) {
			regs.MMCR1 |= extract(event, eventThrCtlShift, eventThrCtlMask)
		} else {
			regs.MMCRA |= extract(event, eventThrCtlShift, eventThrCtlMask) << mmcraThrCtlShift
			regs.MMCRA |= extract(event, eventThrSelShift, eventThrSelMask) << mmcraThrSelShift
			regs.MMCRA |= extract(event, eventThrCmpShift, eventThrCmpMask) << mmcraThrCmpShift
		}

		counters[i] = int(pmc) - 1
	}

	// pmcInUse is 1-based. PMC1 has its own count enable; PMC2-PMC4
	// share one.
	if pmcInUse&0x2 != 0 {
		regs.MMCR0 = mmcr0PMC1CE
	}
	if pmcInUse&0x7c != 0 {
		regs.MMCR0 |= mmcr0PMCjCE
	}

	return counters, regs
}

// DisableCounter clears the selector field of the one-based counter pmc so
// the hardware stops counting on it. PMC5 and PMC6 have no selector field
// in MMCR1; disabling them is a no-op here.
func DisableCounter(pmc int, regs *pmu.RegisterSet) {
	if pmc >= 1 && pmc <= 4 {
		regs.MMCR1 &^= eventPselMask << mmcr1PMCSelShift(uint64(pmc))
	}
}

// New returns the POWER8 capability descriptor.
func New() *pmu.PMU {
	return &pmu.PMU{
		Name:             "POWER8",
		NumCounters:      6,
		MaxAlternatives:  maxAlt + 1,
		AddFields:        addFields,
		TestAdder:        testAdder,
		Flags:            pmu.FlagHasSSlot | pmu.FlagHasSIER,
		GenericEvents:    genericEvents,
		GetConstraint:    GetConstraint,
		GetAlternatives:  GetAlternatives,
		ComputeRegisters: ComputeRegisters,
		DisableCounter:   DisableCounter,
	}
}

// Register adds the POWER8 descriptor to r under a pattern covering the
// generation's sub-variants (power8, power8E, power8NVL).
func Register(r *pmu.Registry) error {
	return r.Register("power8*", New())
}

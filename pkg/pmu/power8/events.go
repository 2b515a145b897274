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

package power8

import "github.com/capsule8/pmualloc/pkg/pmu"

// Event codes used by the generic event table, the alternatives logic, and
// the single-purpose counter checks. Names follow the hardware reference
// manual.
const (
	PM_CYC            uint64 = 0x0001e
	PM_GCT_NOSLOT_CYC uint64 = 0x100f8
	PM_CMPLU_STALL    uint64 = 0x4000a
	PM_INST_CMPL      uint64 = 0x00002
	PM_BRU_FIN        uint64 = 0x10068
	PM_BR_MPRED_CMPL  uint64 = 0x400f6

	// Only legal events for PMC5 and PMC6; those counters count nothing
	// else.
	PM_RUN_INST_CMPL uint64 = 0x500fa
	PM_RUN_CYC       uint64 = 0x600f4

	// Fabric response match events, identified structurally by their
	// pmc/unit/pmcxsel pattern. Their threshold control byte carries the
	// match value instead of a timing threshold.
	PM_MRK_FAB_RSP_MATCH     uint64 = 0x30056
	PM_MRK_FAB_RSP_MATCH_CYC uint64 = 0x4f052
)

// genericEvents maps the cross-platform hardware event identifiers to
// native POWER8 codes.
var genericEvents = map[pmu.GenericEvent]uint64{
	pmu.PERF_COUNT_HW_CPU_CYCLES:              PM_CYC,
	pmu.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND: PM_GCT_NOSLOT_CYC,
	pmu.PERF_COUNT_HW_STALLED_CYCLES_BACKEND:  PM_CMPLU_STALL,
	pmu.PERF_COUNT_HW_INSTRUCTIONS:            PM_INST_CMPL,
	pmu.PERF_COUNT_HW_BRANCH_INSTRUCTIONS:     PM_BRU_FIN,
	pmu.PERF_COUNT_HW_BRANCH_MISSES:           PM_BR_MPRED_CMPL,
}

const maxAlt = 2

// eventAlternatives groups event codes that count the same logical quantity
// on different counting resources. Rows are sorted ascending by their first
// column so lookup can stop scanning once the key passes the query.
var eventAlternatives = [][maxAlt]uint64{
	{0x10134, 0x301e2}, // PM_MRK_ST_CMPL
	{0x10138, 0x40138}, // PM_BR_MRK_2PATH
	{0x18082, 0x3e05e}, // PM_L3_CO_MEPF
	{0x1d14e, 0x401e8}, // PM_MRK_DATA_FROM_L2MISS
	{0x1e054, 0x4000a}, // PM_CMPLU_STALL
	{0x20036, 0x40036}, // PM_BR_2PATH
	{0x200f2, 0x300f2}, // PM_INST_DISP
	{0x200f4, 0x600f4}, // PM_RUN_CYC
	{0x2013c, 0x3012e}, // PM_MRK_FILT_MATCH
	{0x3e054, 0x400f0}, // PM_LD_MISS_L1
	{0x400fa, 0x500fa}, // PM_RUN_INST_CMPL
}

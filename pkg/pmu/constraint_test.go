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

package pmu_test

import (
	"testing"

	"github.com/capsule8/pmualloc/pkg/pmu"
	"github.com/capsule8/pmualloc/pkg/pmu/power8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pmcShift  = 16
	unitShift = 12
)

func mustConstraint(t *testing.T, p *pmu.PMU, event uint64) pmu.Constraint {
	c, err := p.GetConstraint(event)
	require.NoError(t, err, "event %#x", event)
	return c
}

func TestConstraintSetProgrammablePool(t *testing.T) {
	p := power8.New()
	set := pmu.NewConstraintSet(p)

	// Four unpinned events fit the programmable counters; a fifth
	// overflows the nc adder field.
	for i := 0; i < 4; i++ {
		event := uint64(0x10+i) | 2<<unitShift
		assert.True(t, set.Add(mustConstraint(t, p, event)), "event %d", i)
	}
	assert.Equal(t, 4, set.N())

	assert.False(t, set.Add(mustConstraint(t, p, 0x99|2<<unitShift)))
	assert.Equal(t, 4, set.N())

	// The fixed-function counters are still free: they don't draw from
	// the programmable pool.
	assert.True(t, set.Add(mustConstraint(t, p, power8.PM_RUN_INST_CMPL)))
	assert.True(t, set.Add(mustConstraint(t, p, power8.PM_RUN_CYC)))
	assert.Equal(t, 6, set.N())
}

func TestConstraintSetPinConflict(t *testing.T) {
	p := power8.New()
	set := pmu.NewConstraintSet(p)

	pinned := uint64(0x42) | 3<<pmcShift
	assert.True(t, set.Add(mustConstraint(t, p, pinned)))

	// A second pin to the same counter overflows its adder field.
	assert.False(t, set.Add(mustConstraint(t, p, uint64(0x17)|3<<pmcShift)))

	// A different counter is fine.
	assert.True(t, set.Add(mustConstraint(t, p, uint64(0x17)|4<<pmcShift)))
}

func TestConstraintSetValueFieldConflict(t *testing.T) {
	p := power8.New()
	set := pmu.NewConstraintSet(p)

	// Threshold control is a value field shared by the whole group: two
	// events demanding different settings cannot coexist, two demanding
	// the same one can.
	thrA := uint64(0x42) | 0x3c<<32
	thrB := uint64(0x17) | 0x1d<<32

	assert.True(t, set.Add(mustConstraint(t, p, thrA)))
	assert.False(t, set.Add(mustConstraint(t, p, thrB)))
	assert.True(t, set.Add(mustConstraint(t, p, uint64(0x17)|0x3c<<32)))
}

func TestConstraintSetLimit(t *testing.T) {
	p := power8.New()
	set := pmu.NewConstraintSet(p)

	// Fill the whole pool: all four programmable counters plus both
	// fixed-function ones.
	require.True(t, set.Add(mustConstraint(t, p, power8.PM_RUN_CYC)))
	require.True(t, set.Add(mustConstraint(t, p, power8.PM_RUN_INST_CMPL)))
	for i := 0; i < 4; i++ {
		require.True(t, set.Add(mustConstraint(t, p, uint64(0x10+i)|2<<unitShift)))
	}
	require.Equal(t, p.NumCounters, set.N())

	// Nothing else fits, pinned or not.
	assert.False(t, set.Add(mustConstraint(t, p, uint64(0x99)|2<<unitShift)))
	assert.False(t, set.Add(mustConstraint(t, p, power8.PM_RUN_CYC)))
	assert.False(t, set.Add(mustConstraint(t, p, uint64(0x99)|3<<pmcShift)))
}

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

package pmu

// ConstraintSet accumulates per-event constraints and answers whether the
// events admitted so far can count simultaneously. Value fields are checked
// by mask-and-compare; adder fields accumulate by addition, with the PMU's
// TestAdder bias making each field overflow into its mask bit exactly when
// its hardware limit is exceeded. The whole feasibility test is therefore
// two XOR-mask comparisons per added event, independent of how many events
// are already in the set.
//
// ConstraintSet is the feasibility predicate only. Choosing which events to
// drop or re-encode when Add reports a conflict is the caller's job, as is
// any retry via GetAlternatives.
type ConstraintSet struct {
	addFields uint64
	testAdder uint64
	limit     int

	mask  uint64
	value uint64
	n     int
}

// NewConstraintSet returns an empty set sized for p's counter pool.
func NewConstraintSet(p *PMU) *ConstraintSet {
	return &ConstraintSet{
		addFields: p.AddFields,
		testAdder: p.TestAdder,
		limit:     p.NumCounters,
	}
}

// Add attempts to admit one more event's constraint. It returns true and
// updates the set if the event can coexist with everything already
// admitted, and returns false leaving the set unchanged otherwise.
func (s *ConstraintSet) Add(c Constraint) bool {
	if s.n >= s.limit {
		return false
	}

	// Combine the accumulated value with the new one. For value fields
	// this is a plain OR; for adder fields the carry term adds the low
	// bits where both contributions are present.
	nv := (s.value | c.Value) + (s.value & c.Value & s.addFields)

	// The biased sum must still agree with every value field already
	// accumulated and with the new event's own fields; a disagreement in
	// an adder field's mask bit is an overflow, i.e. oversubscription.
	if ((nv+s.testAdder)^s.value)&s.mask != 0 ||
		((nv+s.testAdder)^c.Value)&c.Mask != 0 {
		return false
	}

	s.value = nv
	s.mask |= c.Mask
	s.n++
	return true
}

// N returns the number of events admitted so far.
func (s *ConstraintSet) N() int {
	return s.n
}

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

func TestRegistryLookup(t *testing.T) {
	r := &pmu.Registry{}
	require.NoError(t, power8.Register(r))

	// One registration covers the generation's sub-variants.
	for _, platform := range []string{"power8", "power8E", "power8NVL"} {
		p, ok := r.Lookup(platform)
		require.True(t, ok, "platform %q", platform)
		assert.Equal(t, "POWER8", p.Name, "platform %q", platform)
	}

	// Unclaimed hardware is a miss, not an error.
	p, ok := r.Lookup("power9")
	assert.False(t, ok)
	assert.Nil(t, p)

	_, ok = r.Lookup("x86_64")
	assert.False(t, ok)
}

func TestRegistryOrder(t *testing.T) {
	r := &pmu.Registry{}

	specific := &pmu.PMU{Name: "POWER8E"}
	generic := &pmu.PMU{Name: "POWER8"}

	require.NoError(t, r.Register("power8E", specific))
	require.NoError(t, r.Register("power8*", generic))

	// Patterns match in registration order.
	p, ok := r.Lookup("power8E")
	require.True(t, ok)
	assert.Same(t, specific, p)

	p, ok = r.Lookup("power8NVL")
	require.True(t, ok)
	assert.Same(t, generic, p)
}

func TestRegistryBadPattern(t *testing.T) {
	r := &pmu.Registry{}
	assert.Error(t, r.Register("power[8", &pmu.PMU{Name: "bad"}))
}

func TestGenericEvents(t *testing.T) {
	p := power8.New()

	// Every generic event the backend claims must itself be encodable.
	for id, event := range p.GenericEvents {
		_, err := p.GetConstraint(event)
		assert.NoError(t, err, "generic event %d (%#x)", id, event)
	}
}

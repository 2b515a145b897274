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

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/golang/glog"
)

// Registry maps platform identity strings to PMU descriptors. Backends
// register themselves under a glob pattern so that one descriptor can cover
// the sub-variants of a processor generation (e.g. "power8*" matches
// "power8", "power8E" and "power8NVL"). Registration happens once at
// startup; lookups afterwards are read-only and need no synchronization.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	pattern string
	matcher glob.Glob
	pmu     *PMU
}

// Register adds p under the given identity pattern. It fails only on a
// malformed pattern.
func (r *Registry) Register(pattern string, p *PMU) error {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("pmu: bad platform pattern %q: %v", pattern, err)
	}

	r.entries = append(r.entries, registryEntry{
		pattern: pattern,
		matcher: matcher,
		pmu:     p,
	})

	glog.V(1).Infof("Registered PMU %s for platform pattern %q",
		p.Name, pattern)
	return nil
}

// Lookup returns the descriptor registered for platform, trying patterns in
// registration order. A miss is not an error: running on hardware no
// backend claims simply means no counters are available.
func (r *Registry) Lookup(platform string) (*PMU, bool) {
	for _, e := range r.entries {
		if e.matcher.Match(platform) {
			return e.pmu, true
		}
	}

	glog.V(2).Infof("No PMU registered for platform %q", platform)
	return nil, false
}

// DefaultRegistry is the registry package-level Register and Lookup use.
var DefaultRegistry = &Registry{}

// Register adds p to the default registry under pattern.
func Register(pattern string, p *PMU) error {
	return DefaultRegistry.Register(pattern, p)
}

// Lookup consults the default registry.
func Lookup(platform string) (*PMU, bool) {
	return DefaultRegistry.Lookup(platform)
}

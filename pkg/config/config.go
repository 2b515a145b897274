package config

import (
	"github.com/golang/glog"
	"github.com/kelseyhightower/envconfig"
)

// PMU contains overridable configuration options for counter allocation
var PMU struct {
	// Platform identity string to use instead of the one detected from
	// the running hardware. Useful for exercising a backend's encoding
	// logic on a different host.
	Platform string

	// OnlyCountRun requests run-latch-only counting, which widens the
	// set of alternatives each event has available.
	OnlyCountRun bool `split_words:"true"`
}

func init() {
	err := envconfig.Process("PMUALLOC", &PMU)
	if err != nil {
		glog.Fatal(err)
	}
}

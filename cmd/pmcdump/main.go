// Copyright 2018 Capsule8 Inc. All rights reserved.

// pmcdump decodes raw PMU event codes and shows how they would be placed on
// the hardware: the constraint vector each event contributes, its
// alternative encodings, and the control register image for the whole group.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/capsule8/pmualloc/pkg/config"
	"github.com/capsule8/pmualloc/pkg/pmu"
	"github.com/capsule8/pmualloc/pkg/pmu/power8"
	"github.com/capsule8/pmualloc/pkg/sysinfo"
	"github.com/golang/glog"
)

var (
	platform = flag.String("platform", "",
		"platform identity to select a PMU backend (default: detect)")
	runOnly = flag.Bool("run-only", false,
		"assume run-latch-only counting when listing alternatives")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] rawcode [rawcode ...]\n",
			os.Args[0])
		os.Exit(2)
	}

	err := power8.Register(pmu.DefaultRegistry)
	if err != nil {
		glog.Fatalf("error registering PMU backends: %s", err)
	}

	p, err := selectPMU()
	if err != nil {
		glog.Fatalf("error selecting PMU: %s", err)
	}

	flags := p.Flags
	if *runOnly || config.PMU.OnlyCountRun {
		flags |= pmu.FlagOnlyCountRun
	}

	events := make([]uint64, 0, flag.NArg())
	set := pmu.NewConstraintSet(p)
	for _, arg := range flag.Args() {
		event, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 64)
		if err != nil {
			glog.Fatalf("bad event code %q: %s", arg, err)
		}

		dumpEvent(p, event, flags, set)
		events = append(events, event)
	}

	if set.N() != len(events) {
		fmt.Printf("\ngroup of %d events is not schedulable together\n",
			len(events))
		return
	}

	counters, regs := p.ComputeRegisters(events)
	fmt.Printf("\ngroup of %d events on %s:\n", len(events), p.Name)
	for i, event := range events {
		fmt.Printf("  %#07x -> PMC%d\n", event, counters[i]+1)
	}
	fmt.Printf("  MMCR0 %#016x\n", regs.MMCR0)
	fmt.Printf("  MMCR1 %#016x\n", regs.MMCR1)
	fmt.Printf("  MMCRA %#016x\n", regs.MMCRA)
}

func selectPMU() (*pmu.PMU, error) {
	identity := *platform
	if identity == "" {
		identity = config.PMU.Platform
	}
	if identity == "" {
		detected, err := sysinfo.Platform()
		if err != nil {
			return nil, err
		}
		identity = detected
	}

	p, ok := pmu.Lookup(identity)
	if !ok {
		return nil, fmt.Errorf("no PMU backend for platform %q", identity)
	}

	glog.V(1).Infof("Using PMU %s for platform %q", p.Name, identity)
	return p, nil
}

func dumpEvent(p *pmu.PMU, event uint64, flags uint64, set *pmu.ConstraintSet) {
	fmt.Printf("%#07x:\n", event)

	c, err := p.GetConstraint(event)
	if err != nil {
		fmt.Printf("  rejected: %s\n", err)
		return
	}
	fmt.Printf("  constraint mask %#016x value %#016x\n", c.Mask, c.Value)

	if !set.Add(c) {
		fmt.Printf("  conflicts with preceding events\n")
	}

	alts := p.GetAlternatives(event, flags)
	if len(alts) > 1 {
		names := make([]string, 0, len(alts)-1)
		for _, alt := range alts[1:] {
			names = append(names, fmt.Sprintf("%#07x", alt))
		}
		fmt.Printf("  alternatives: %s\n", strings.Join(names, " "))
	}
}

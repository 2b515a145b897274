package sysinfo

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

type utsname struct {
	Sysname    [65]byte /* Operating system name (e.g., "Linux") */
	Nodename   [65]byte /* Name within "some implementation-defined network" */
	Release    [65]byte /* Operating system release (e.g., "2.6.28") */
	Version    [65]byte /* Operating system version */
	Machine    [65]byte /* Hardware identifier */
	Domainname [65]byte /* NIS or YP domain name */
}

// Uname syscall to get system info
func Uname() (*utsname, error) {
	var err error
	var name utsname
	_, _, errno := unix.Syscall(unix.SYS_UNAME, uintptr(unsafe.Pointer(&name)), 0, 0)
	if errno != 0 {
		err = errno
	}
	return &name, err
}

// Platform returns the processor identity string used to select a PMU
// backend, e.g. "power8" or "power8E". On PowerPC this is the cpu field of
// /proc/cpuinfo ("POWER8E (raw), altivec supported" becomes "power8E");
// elsewhere it falls back to the uname machine field.
func Platform() (string, error) {
	if cpu, err := cpuinfoCPU("/proc/cpuinfo"); err == nil && cpu != "" {
		return cpu, nil
	}

	name, err := Uname()
	if err != nil {
		return "", err
	}

	machine := name.Machine[:]
	if i := bytes.IndexByte(machine, 0); i >= 0 {
		machine = machine[:i]
	}
	return string(machine), nil
}

func cpuinfoCPU(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "cpu" {
			continue
		}

		// "POWER8E (raw), altivec supported" -> "power8E"
		cpu := strings.TrimSpace(parts[1])
		if i := strings.IndexAny(cpu, " ,"); i >= 0 {
			cpu = cpu[:i]
		}
		if strings.HasPrefix(cpu, "POWER") {
			cpu = "power" + cpu[len("POWER"):]
		}
		return cpu, nil
	}

	return "", scanner.Err()
}

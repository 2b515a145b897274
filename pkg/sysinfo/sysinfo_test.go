package sysinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCpuinfo(t *testing.T, contents string) string {
	filename := filepath.Join(t.TempDir(), "cpuinfo")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0644))
	return filename
}

func TestCpuinfoCPU(t *testing.T) {
	cases := []struct {
		contents string
		cpu      string
	}{
		{
			"processor\t: 0\ncpu\t\t: POWER8E (raw), altivec supported\n" +
				"clock\t\t: 3425.000000MHz\n",
			"power8E",
		},
		{
			"processor\t: 0\ncpu\t\t: POWER8 (architected), altivec supported\n",
			"power8",
		},
		{
			// No cpu line at all, e.g. x86.
			"processor\t: 0\nvendor_id\t: GenuineIntel\ncpu family\t: 6\n",
			"",
		},
	}

	for _, tc := range cases {
		cpu, err := cpuinfoCPU(writeCpuinfo(t, tc.contents))
		require.NoError(t, err)
		assert.Equal(t, tc.cpu, cpu)
	}
}

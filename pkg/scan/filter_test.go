package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lndup/lndup/pkg/config"
)

func TestCompileFilter_RejectsNonBoolean(t *testing.T) {
	_, err := CompileFilter(`Size + 1`)
	require.Error(t, err)

	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCompileFilter_RejectsUnknownField(t *testing.T) {
	_, err := CompileFilter(`Owner == "root"`)
	assert.Error(t, err)
}

func TestRunFilter(t *testing.T) {
	tests := []struct {
		name string
		src  string
		file File
		keep bool
	}{
		{"size threshold", `Size > 100`, candidate("/data/big.iso", 200, 1), true},
		{"size threshold rejects", `Size > 100`, candidate("/data/small.txt", 10, 2), false},
		{"name match", `Name endsWith ".iso"`, candidate("/data/big.iso", 200, 3), true},
		{"path match", `Path contains "/data/"`, candidate("/data/x", 1, 4), true},
		{"combined", `Size >= 10 && Name != "skip.me"`, candidate("/d/skip.me", 50, 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := CompileFilter(tt.src)
			require.NoError(t, err)

			keep, err := RunFilter(program, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.keep, keep)
		})
	}
}

func TestCompileExcludes(t *testing.T) {
	excludes, err := CompileExcludes([]string{`\.bak$`, `(?i)cache`})
	require.NoError(t, err)
	require.Len(t, excludes, 2)

	match, err := excludes[0].MatchString("/data/old.bak")
	require.NoError(t, err)
	assert.True(t, match)

	match, err = excludes[1].MatchString("/data/Cache/blob")
	require.NoError(t, err)
	assert.True(t, match)
}

func TestCompileExcludes_InvalidPattern(t *testing.T) {
	_, err := CompileExcludes([]string{`valid`, `(`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude pattern")

	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
}

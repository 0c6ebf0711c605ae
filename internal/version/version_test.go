package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	t.Parallel()

	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	}

	tests := []struct {
		name string
		in   buildInfo
		want buildInfo
	}{
		{
			name: "defaults are filled",
			in:   buildInfo{version: "dev", commit: "unknown", time: "unknown"},
			want: buildInfo{version: "v1.2.3", commit: "0123456", time: "2026-10-01T12:00:00Z"},
		},
		{
			name: "ldflags win",
			in:   buildInfo{version: "v2.0.0", commit: "abc1234", time: "today"},
			want: buildInfo{version: "v2.0.0", commit: "abc1234", time: "today"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fillFromBuildInfo(tt.in, bi))
		})
	}

	devel := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	assert.Equal(t, "dev", fillFromBuildInfo(buildInfo{version: "dev"}, devel).version)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	info := Info()
	assert.True(t, strings.HasPrefix(info, "securechat "+Short()))
	assert.Contains(t, info, runtime.Version())
}

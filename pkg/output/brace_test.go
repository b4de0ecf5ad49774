package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPair(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want string
	}{
		{"common prefix", "/a/dup1", "/a/dup2", "/a/dup{1,2}"},
		{"common suffix", "x/old.txt", "y/old.txt", "{x,y}/old.txt"},
		{"prefix and suffix", "/data/a/file.bin", "/data/b/file.bin", "/data/{a,b}/file.bin"},
		{"prefix too short", "ab1", "ab2", "ab1 <-> ab2"},
		{"nothing shared", "/one", "/two", "/one <-> /two"},
		{"different lengths", "/srv/video.mkv", "/srv/video-copy.mkv", "/srv/video{,-copy}.mkv"},
		{"multibyte boundary stays whole", "/aé", "/aèx", "/aé <-> /aèx"},
		{"multibyte prefix kept", "/données/f1", "/données/f2", "/données/f{1,2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pair(tt.a, tt.b, true))
		})
	}
}

func TestPair_Disabled(t *testing.T) {
	assert.Equal(t, "/a/dup1 <-> /a/dup2", Pair("/a/dup1", "/a/dup2", false))
}

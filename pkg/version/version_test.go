package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	var tests = []struct {
		name     string
		info     Info
		expected string
	}{
		{name: "no vcs", info: Info{}, expected: "devel"},
		{name: "short", info: Info{Commit: "abc123"}, expected: "abc123"},
		{name: "long", info: Info{Commit: "0123456789abcdef0123"}, expected: "0123456789ab"},
		{name: "dirty", info: Info{Commit: "abc123", Modified: true}, expected: "abc123-dirty"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.String())
		})
	}
}

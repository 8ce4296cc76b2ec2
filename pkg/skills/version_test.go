package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.10.0", "1.9.0", 1},
		{"1.0", "1.0.0", 0},
		{"1", "0.9.9", 1},
		{"1.0.0-beta", "1.0.0", 0},
		{"1.0.1-beta", "1.0.0", 1},
		{"1.0.0", "1.0.1-rc.1", -1},
		{"2.0.0-rc.1", "1.9.9", 1},
		{"1.0.0", "1.0.0+build.5", 0},
		{"1.2.3.4", "1.2.3", 0},
		{"", "1.0.0", 0},
		{"1.0.0", "", 0},
		{"x.y.z", "0.0.0", 0},
		{"0.0.1", "x.y.z", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestIsValidVersion(t *testing.T) {
	valid := []string{"0.0.0", "1.2.3", "10.20.30", "1.0.0-beta", "1.0.0-rc.1", "1.0.0+build.1", "1.0.0-alpha+001"}
	invalid := []string{"", "1", "1.0", "v1.0.0", "1.0.0-", "1.0.0 beta", "a.b.c"}

	for _, v := range valid {
		assert.True(t, IsValidVersion(v), v)
	}
	for _, v := range invalid {
		assert.False(t, IsValidVersion(v), v)
	}
}

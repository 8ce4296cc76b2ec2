package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "********cdef", maskToken("ghp_abcdef"))
	assert.Equal(t, "********", maskToken("abcd"))
	assert.Equal(t, "********", maskToken(""))
}

func TestDescribeToken(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	assert.Equal(t, "********1234", describeToken("ghp_1234", "ghp_1234"))
	assert.Equal(t, "********9999 (from environment)", describeToken("", "env_9999"))
	assert.Equal(t, "(not set)", describeToken("", ""))
}

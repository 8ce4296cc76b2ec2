package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentBody(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"drops frontmatter", "---\nname: react\n---\n# React\n\nHooks.\n", "# React\n\nHooks.\n"},
		{"no frontmatter", "# Plain\n", "# Plain\n"},
		{"frontmatter only", "---\nname: empty\n---\n", "---\nname: empty\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, documentBody(tt.content))
		})
	}
}

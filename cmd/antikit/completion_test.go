package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterCompletions(t *testing.T) {
	names := []string{"react", "react-native", "vue", "golang"}

	assert.Equal(t, names, filterCompletions(names, nil, ""))
	assert.Equal(t, []string{"react", "react-native"}, filterCompletions(names, nil, "re"))
	assert.Equal(t, []string{"react-native"}, filterCompletions(names, []string{"react"}, "re"))
	assert.Nil(t, filterCompletions(names, nil, "svelte"))
}

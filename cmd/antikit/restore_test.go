package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vunamhung/antikit/pkg/backup"
	"github.com/vunamhung/antikit/pkg/skills"
)

func TestRestoreRows(t *testing.T) {
	rows := restoreRows([]backup.Skill{
		{Name: "react", Version: "1.2.0", SourceName: "official"},
		{Name: "go", Source: &skills.Ref{Owner: "acme", Repo: "packs"}},
		{Name: "plain"},
	})

	assert.Equal(t, [][]string{
		{"react", "1.2.0", "official"},
		{"go", "-", "acme/packs"},
		{"plain", "-", "-"},
	}, rows)
}

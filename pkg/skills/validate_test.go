package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("valid skill", func(t *testing.T) {
		r := Validate([]byte("---\nname: a\ndescription: d\nversion: 1.0.0\ndependencies: [b]\n---\n"))
		assert.True(t, r.Valid())
		assert.Empty(t, r.Warnings)
		require.NotNil(t, r.Frontmatter)
		assert.Equal(t, "a", r.Frontmatter.Name)
	})

	t.Run("missing frontmatter", func(t *testing.T) {
		r := Validate([]byte("# nope"))
		assert.False(t, r.Valid())
		assert.Contains(t, r.Errors, "Missing or invalid YAML frontmatter")
	})

	t.Run("missing fields", func(t *testing.T) {
		r := Validate([]byte("---\nauthor: me\n---\n"))
		assert.False(t, r.Valid())
		assert.Contains(t, r.Errors, `Missing "name" field`)
		assert.Contains(t, r.Errors, `Missing "description" field`)
		assert.Contains(t, r.Errors, `Missing "version" field`)
	})

	t.Run("loose version is a warning", func(t *testing.T) {
		r := Validate([]byte("---\nname: a\ndescription: d\nversion: 1.0\n---\n"))
		assert.True(t, r.Valid())
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("bad dependency names", func(t *testing.T) {
		r := Validate([]byte("---\nname: a\ndescription: d\nversion: 1.0.0\ndependencies: [a, owner/repo]\n---\n"))
		assert.False(t, r.Valid())
		assert.Contains(t, r.Errors, "Invalid dependency name: owner/repo")
		assert.Contains(t, r.Warnings, "Skill depends on itself; the dependency will be skipped")
	})
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SkillFileName)

	_, err := ValidateFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("---\nname: a\ndescription: d\nversion: 0.1.0\n---\n"), 0o644))
	r, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, r.Valid())
	assert.Equal(t, path, r.Path)
}

func TestResolveSkillFile(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveSkillFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SkillFileName), got)

	got, err = ResolveSkillFile(filepath.Join(dir, SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SkillFileName), got)
}

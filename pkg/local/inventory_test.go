package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vunamhung/antikit/pkg/apperr"
	"github.com/vunamhung/antikit/pkg/skills"
)

func writeSkill(t *testing.T, dir, name, content string) string {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, skills.SkillFileName), []byte(content), 0o644))
	return skillDir
}

func newProject(t *testing.T) (root, skillsDir string) {
	t.Helper()
	root = t.TempDir()
	skillsDir = filepath.Join(root, ".agent", "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))
	return root, skillsDir
}

func TestFindSkillsDirWalksUp(t *testing.T) {
	root, skillsDir := newProject(t)
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, skillsDir, FindSkillsDir(nested, ".agent/skills"))
	assert.Equal(t, "", FindSkillsDir(t.TempDir(), ".agent/missing-skills-dir"))
}

func TestGetOrCreateSkillsDir(t *testing.T) {
	root := t.TempDir()
	inv, err := NewInventory(WithStartDir(root), WithSkillsDirName(".agent/test-skills"))
	require.NoError(t, err)
	assert.Equal(t, "", inv.SkillsDir())

	dir, err := inv.GetOrCreateSkillsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".agent", "test-skills"), dir)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, inv.SkillsDir())
}

func TestList(t *testing.T) {
	root, skillsDir := newProject(t)

	writeSkill(t, skillsDir, "beta", "---\nname: beta\ndescription: Beta skill\nversion: 1.1.0\n---\n")
	alpha := writeSkill(t, skillsDir, "alpha", "---\nname: alpha\ndescription: Alpha skill\n---\n")
	require.NoError(t, skills.WriteMetadata(alpha, &skills.Metadata{
		Name:    "alpha",
		Version: "2.0.0",
		Source:  &skills.Ref{Owner: "o", Repo: "r", Branch: "main"},
	}))
	writeSkill(t, skillsDir, "plain", "no frontmatter here")
	writeSkill(t, skillsDir, ".hidden", "---\nname: hidden\n---\n")
	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "README.md"), []byte("x"), 0o644))

	inv, err := NewInventory(WithStartDir(root))
	require.NoError(t, err)

	list, err := inv.List()
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "2.0.0", list[0].Version)
	assert.Equal(t, "Alpha skill", list[0].Description)
	require.NotNil(t, list[0].Metadata)
	assert.True(t, list[0].Metadata.HasSource())

	assert.Equal(t, "beta", list[1].Name)
	assert.Equal(t, "1.1.0", list[1].Version)
	assert.Nil(t, list[1].Metadata)

	assert.Equal(t, "plain", list[2].Name)
	assert.Equal(t, LocalVersion, list[2].Version)
	assert.Empty(t, list[2].Description)

	names, err := inv.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "plain"}, names)
}

func TestListWithoutSkillsDir(t *testing.T) {
	inv, err := NewInventory(WithStartDir(t.TempDir()), WithSkillsDirName(".agent/nothing-here"))
	require.NoError(t, err)

	list, err := inv.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListFollowsSymlinks(t *testing.T) {
	root, skillsDir := newProject(t)

	actual := writeSkill(t, filepath.Join(root, "elsewhere"), "linked", "---\nname: linked\ndescription: via symlink\n---\n")
	require.NoError(t, os.Symlink(actual, filepath.Join(skillsDir, "linked")))

	target := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(skillsDir, "file-link")))
	require.NoError(t, os.Symlink("/non/existent/path", filepath.Join(skillsDir, "broken")))

	inv, err := NewInventory(WithStartDir(root))
	require.NoError(t, err)

	list, err := inv.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "linked", list[0].Name)
	assert.Equal(t, "via symlink", list[0].Description)
}

func TestExistsAndRemove(t *testing.T) {
	root, skillsDir := newProject(t)
	writeSkill(t, skillsDir, "gone", "---\nname: gone\n---\n")

	inv, err := NewInventory(WithStartDir(root))
	require.NoError(t, err)

	assert.True(t, inv.Exists("gone"))
	require.NoError(t, inv.Remove("gone"))
	assert.False(t, inv.Exists("gone"))

	err = inv.Remove("gone")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.SkillNotFound))
	assert.Equal(t, `Skill "gone" not found`, err.Error())
}

func TestRemoveWithoutSkillsDir(t *testing.T) {
	inv, err := NewInventory(WithStartDir(t.TempDir()), WithSkillsDirName(".agent/nothing-here"))
	require.NoError(t, err)

	err = inv.Remove("x")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.DirectoryNotFound))
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../x", "a/b", `a\b`, ".hidden"} {
		err := ValidateName(bad)
		assert.True(t, apperr.IsCode(err, apperr.InvalidInput), bad)
	}
	assert.NoError(t, ValidateName("react-patterns"))
}

func TestGetAndReadSkillFile(t *testing.T) {
	root, skillsDir := newProject(t)
	writeSkill(t, skillsDir, "doc", "---\nname: doc\ndescription: Docs\nversion: 0.2.0\n---\n# Doc\n")

	inv, err := NewInventory(WithStartDir(root))
	require.NoError(t, err)

	s, err := inv.Get("doc")
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", s.Version)

	content, err := inv.ReadSkillFile("doc")
	require.NoError(t, err)
	assert.Contains(t, content, "# Doc")

	m, err := inv.ReadMetadata("doc")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = inv.Get("missing")
	assert.True(t, apperr.IsCode(err, apperr.SkillNotFound))
}

func TestWithSkillsDir(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "pinned", "---\nname: pinned\n---\n")

	inv, err := NewInventory(WithSkillsDir(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, inv.SkillsDir())
	assert.True(t, inv.Exists("pinned"))
}

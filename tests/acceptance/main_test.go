package acceptance

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// binary is the antikit executable under test. ANTIKIT_BIN overrides the
// default of ../../bin/antikit.
var binary string

// TestMain runs setup and teardown for acceptance tests
func TestMain(m *testing.M) {
	binary = os.Getenv("ANTIKIT_BIN")
	if binary == "" {
		binary = "../../bin/antikit"
	}
	abs, err := filepath.Abs(binary)
	if err == nil {
		binary = abs
	}
	if _, err := os.Stat(binary); err != nil {
		fmt.Fprintf(os.Stderr, "skipping acceptance tests: %s not found (go build -o bin/antikit ./cmd/antikit)\n", binary)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// workspace is an isolated project directory and config directory.
type workspace struct {
	dir       string
	configDir string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	ws := &workspace{
		dir:       filepath.Join(root, "project"),
		configDir: filepath.Join(root, "config"),
	}
	require.NoError(t, os.MkdirAll(ws.dir, 0o755))
	return ws
}

func (ws *workspace) skillsDir() string {
	return filepath.Join(ws.dir, ".agent", "skills")
}

// addSkill writes a skill directory holding content as its SKILL.md.
func (ws *workspace) addSkill(t *testing.T, name, content string) string {
	t.Helper()
	dir := filepath.Join(ws.skillsDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	return dir
}

// run executes antikit in the workspace with networking features disabled.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Dir = ws.dir
	cmd.Env = []string{
		"HOME=" + filepath.Dir(ws.configDir),
		"PATH=" + os.Getenv("PATH"),
		"ANTIKIT_CONFIG_DIR=" + ws.configDir,
		"ANTIKIT_UPDATE_CHECK=false",
		"NO_COLOR=1",
	}
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

//go:build unix

package osutil

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestSetProcessGroupDetachesFromParent(t *testing.T) {
	cmd := exec.Command("git", "--version")
	SetProcessGroup(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

// A cancelled clone must not leave helpers such as git-remote-https behind.
func TestCancelKillsSpawnedHelpers(t *testing.T) {
	const script = `
		sh -c 'trap "" TERM; while :; do sleep 0.1; done' &
		echo "helper $!"
		trap "" TERM
		while :; do sleep 0.1; done
	`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)

	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	helper, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "helper ")))
	require.NoError(t, err, "unexpected output %q", line)

	require.Eventually(t, func() bool { return alive(helper) }, time.Second, 20*time.Millisecond)
	require.True(t, alive(cmd.Process.Pid))

	cancel()
	_ = cmd.Wait()

	assert.Eventually(t, func() bool { return !alive(helper) }, 2*time.Second, 20*time.Millisecond,
		"helper %d outlived the cancelled command", helper)
}

func TestCancelAfterExit(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "true")
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)

	require.NoError(t, cmd.Run())
	require.NotNil(t, cmd.Cancel)
	assert.NoError(t, cmd.Cancel())
}

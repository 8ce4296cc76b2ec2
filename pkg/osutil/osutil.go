// Package osutil holds small helpers around the host system: locating git,
// detecting terminals and managing child process groups.
package osutil

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrGitNotFound is returned by LookGit when no git executable is on PATH.
var ErrGitNotFound = errors.New("git executable not found in PATH")

// LookGit returns the path of the git executable. ANTIKIT_GIT overrides the
// lookup.
func LookGit() (string, error) {
	name := "git"
	if override := os.Getenv("ANTIKIT_GIT"); override != "" {
		name = override
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrap(ErrGitNotFound, err.Error())
	}
	return path, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether both stdin and stdout are terminals, which is
// required for prompts.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// TerminalWidth returns the width of stdout, or fallback when it is not a
// terminal.
func TerminalWidth(fallback int) int {
	if !IsTerminal(os.Stdout) {
		return fallback
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

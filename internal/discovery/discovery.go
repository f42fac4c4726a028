// Package discovery locates the codex CLI executable on the local system.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrNotFound indicates no codex executable could be located.
var ErrNotFound = errors.New("discovery: codex executable not found")

const versionProbeTimeout = 5 * time.Second

// candidates lists the executable names tried on PATH, most specific first.
func candidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"codex.exe", "codex.cmd", "codex"}
	}
	return []string{"codex"}
}

// Find resolves the codex binary. A non-empty override (from settings) wins;
// otherwise the PATH is searched.
func Find(override string) (string, error) {
	if override != "" {
		if _, err := exec.LookPath(override); err != nil {
			return "", fmt.Errorf("configured codex path %q: %w", override, err)
		}
		return override, nil
	}

	for _, name := range candidates() {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Version probes the binary with --version under a short deadline.
func Version(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("probe %s --version: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsAvailable reports whether the binary responds to a version probe.
func IsAvailable(path string) bool {
	_, err := Version(path)
	return err == nil
}

// InstallHint returns a platform-appropriate installation pointer for when
// discovery fails.
func InstallHint() string {
	if runtime.GOOS == "windows" {
		return "Install the Codex CLI with 'npm install -g @openai/codex' and make sure codex.exe is on your PATH."
	}
	return "Install the Codex CLI with 'npm install -g @openai/codex' and make sure 'codex' is on your PATH."
}

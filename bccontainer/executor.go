package bccontainer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs a script inside a container and returns its output. It is
// the only channel this package has into a container, which keeps the
// Reader testable against a fake.
type Executor interface {
	Run(ctx context.Context, containerName, script string) (string, error)
}

// DockerExecutor runs scripts through docker exec against the PowerShell
// inside the container. Business Central and NAV containers are Windows
// images, so a PowerShell is always present.
type DockerExecutor struct {
	// Shell overrides the in-container shell binary. Defaults to
	// "powershell"; newer images may prefer "pwsh".
	Shell string
}

var _ Executor = (*DockerExecutor)(nil)

// NewDockerExecutor creates a DockerExecutor with default settings.
func NewDockerExecutor() *DockerExecutor {
	return &DockerExecutor{}
}

// Run executes the script inside the named container and returns its stdout.
func (d *DockerExecutor) Run(ctx context.Context, containerName, script string) (string, error) {
	if containerName == "" {
		return "", errors.New("bccontainer: container name cannot be empty")
	}

	shell := d.Shell
	if shell == "" {
		shell = "powershell"
	}

	cmd := exec.CommandContext(ctx, "docker", "exec", containerName, shell,
		"-NoProfile", "-NonInteractive", "-Command", script)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("bccontainer: running script in container %s: %s: %w",
				containerName, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return "", fmt.Errorf("bccontainer: running script in container %s: %w", containerName, err)
	}
	return string(out), nil
}

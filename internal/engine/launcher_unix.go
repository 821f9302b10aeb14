//go:build !windows

package engine

import (
	"fmt"
	"os/exec"
	"syscall"
)

// osLauncher runs the engine in its own process group so that terminating
// the group reaches the JVM the launch script forks.
type osLauncher struct{}

func newOSLauncher() ProcessLauncher {
	return &osLauncher{}
}

func (l *osLauncher) Launch(spec LaunchSpec) (int, error) {
	cmd := exec.Command(spec.Path)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", spec.Path, err)
	}

	// Reap the child when it exits so it never lingers as a zombie.
	go cmd.Wait() //nolint:errcheck

	return cmd.Process.Pid, nil
}

func (l *osLauncher) Terminate(pid int) error {
	// Negative PID addresses the whole process group.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		return syscall.Kill(pid, syscall.SIGTERM)
	}
	return nil
}

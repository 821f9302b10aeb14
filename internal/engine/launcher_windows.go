//go:build windows

package engine

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

// createNewConsole gives the child its own console window.
const createNewConsole = 0x00000010

// osLauncher gives the engine its own visible console window so its startup
// log stays inspectable, and tears the process tree down with taskkill.
type osLauncher struct{}

func newOSLauncher() ProcessLauncher {
	return &osLauncher{}
}

func (l *osLauncher) Launch(spec LaunchSpec) (int, error) {
	cmd := exec.Command(spec.Path)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewConsole,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", spec.Path, err)
	}

	go cmd.Wait() //nolint:errcheck

	return cmd.Process.Pid, nil
}

func (l *osLauncher) Terminate(pid int) error {
	// /T includes the child processes, /F forces termination.
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

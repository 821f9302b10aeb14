package engine

// LaunchSpec describes the process to spawn.
type LaunchSpec struct {
	// Path is the resolved engine executable.
	Path string

	// Dir is the working directory for the process.
	Dir string
}

// ProcessLauncher spawns and terminates the engine process. Implementations
// are per-OS: on Windows the engine gets its own visible console, elsewhere
// it runs in a detached process group so Terminate can take down the whole
// tree.
type ProcessLauncher interface {
	// Launch starts the process and returns its PID.
	Launch(spec LaunchSpec) (int, error)

	// Terminate kills the process with the given PID and its children.
	Terminate(pid int) error
}

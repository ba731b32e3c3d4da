package installer

import (
	"fmt"
	"os"
	"slices"

	"github.com/mitchellh/go-ps"
)

// Process is a running program that uses one of the binaries being replaced.
type Process struct {
	// PID is the process identifier.
	PID int
	// Executable is the process executable name.
	Executable string
}

// RunningProcesses returns processes whose executable name is in names, excluding this one.
func RunningProcesses(names []string) ([]Process, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var result []Process

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !slices.Contains(names, process.Executable()) {
			continue
		}

		result = append(result, Process{
			PID:        process.Pid(),
			Executable: process.Executable(),
		})
	}

	return result, nil
}

// terminate kills the given processes.
func terminate(processes []Process) error {
	for _, process := range processes {
		runningProcess, err := os.FindProcess(process.PID)
		if err != nil {
			return fmt.Errorf("find process %d: %w", process.PID, err)
		}

		if err = runningProcess.Kill(); err != nil {
			return fmt.Errorf("kill %s (%d): %w", process.Executable, process.PID, err)
		}
	}

	return nil
}

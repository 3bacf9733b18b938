// Package pty wraps spawning and controlling a process behind a
// pseudo-terminal.
package pty

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// StartOptions contains options for starting a PTY process.
type StartOptions struct {
	// Command is the program to execute.
	Command string

	// Args are the arguments to pass to the command.
	Args []string

	// Env is the environment for the process. If nil, the current process
	// environment is used.
	Env []string

	// Dir is the working directory. If empty, the current directory is used.
	Dir string

	// InitialRows and InitialCols set the PTY window size at spawn.
	InitialRows uint16
	InitialCols uint16
}

// Process is a running process attached to a PTY master.
type Process struct {
	master *os.File
	cmd    *exec.Cmd
}

// Start spawns the command on a fresh PTY.
func Start(opts StartOptions) (*Process, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if opts.InitialRows == 0 {
		opts.InitialRows = 24
	}
	if opts.InitialCols == 0 {
		opts.InitialCols = 80
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Dir = opts.Dir

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: opts.InitialRows,
		Cols: opts.InitialCols,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY process: %w", err)
	}

	return &Process{master: master, cmd: cmd}, nil
}

// Read reads output from the PTY master.
func (p *Process) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

// Write writes input to the PTY master.
func (p *Process) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// Resize changes the PTY window size. The kernel delivers SIGWINCH to the
// foreground process group.
func (p *Process) Resize(rows, cols uint16) error {
	return pty.Setsize(p.master, &pty.Winsize{Rows: rows, Cols: cols})
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits and returns its exit code.
// Returns -1 if the process was killed by a signal.
func (p *Process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Kill terminates the process.
func (p *Process) Kill() error {
	if p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// Close closes the PTY master.
func (p *Process) Close() error {
	return p.master.Close()
}

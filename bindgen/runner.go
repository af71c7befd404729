package bindgen

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the captured outcome of one subprocess run.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner runs an external command to completion and captures its
// output. A non-zero exit is not an error; failing to start the process
// is.
type Runner interface {
	Run(name string, args ...string) (*Result, error)
}

// execRunner is the production Runner backed by os/exec. There is no
// timeout: generation blocks until the interpreter exits.
type execRunner struct{}

func (execRunner) Run(name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", name, err)
		}
	}
	return &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

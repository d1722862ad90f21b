package attempt

import (
	"io"

	"github.com/openjobspec/attempt/internal/policy"
	"github.com/openjobspec/attempt/internal/proc"
)

// Exit is the record of a finished attempt.
type Exit interface {
	policy.Output
	Success() bool
	String() string
}

// Process is a running child.
type Process interface {
	Poll() (bool, error)
	Terminate(force bool) error
	Wait() (Exit, error)
}

// Spawner starts one child per attempt.
type Spawner interface {
	Spawn(argv []string, capture bool) (Process, error)
}

// ProcSpawner starts real OS processes, passing their output through to
// Stdout and Stderr.
type ProcSpawner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (s ProcSpawner) Spawn(argv []string, capture bool) (Process, error) {
	c, err := proc.Start(argv, proc.Options{Capture: capture, Stdout: s.Stdout, Stderr: s.Stderr})
	if err != nil {
		return nil, err
	}
	return child{c}, nil
}

type child struct {
	*proc.Child
}

func (c child) Wait() (Exit, error) {
	e, err := c.Child.Wait()
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package engine

import (
	"fmt"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// ValidationError is an inconsistent command, detected before any kernel
// call is made.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

var (
	ErrMissingSource      = &ValidationError{"Retrieving a core scheduling cookie requires a source PID"}
	ErrMissingDestination = &ValidationError{"Copying a core scheduling cookie requires a destination PID"}
	ErrMissingProgram     = &ValidationError{"Executing a program requires a program name"}
	ErrMissingTarget      = &ValidationError{"Creating a pid scoped core scheduling cookie requires a target PID"}
	ErrInvalidTask        = &ValidationError{"PID cannot be negative"}
	ErrInvalidType        = &ValidationError{"Invalid PID type, must be one of pid/tgid/pgid"}
)

// Validated is a command that passed Validate.
type Validated struct {
	cmd Command
}

// Command returns the validated command.
func (v Validated) Command() Command {
	return v.cmd
}

// Validate checks that cmd is internally consistent. It never calls into
// the kernel.
func Validate(cmd Command) (Validated, error) {
	var err error

	switch c := cmd.(type) {
	case Get:
		err = checkSource(c.Source)
	case Create:
		err = checkTasks(c.Type, c.Target)
		// a pid cookie for task 0 would land on whichever runtime
		// thread makes the call
		if err == nil && c.Target == 0 && c.Type == schedcore.Pid {
			err = ErrMissingTarget
		}
	case Copy:
		if err = checkSource(c.Source); err == nil {
			err = checkDest(c.Dest)
		}
		if err == nil {
			err = checkTasks(c.Type, c.Source, c.Dest)
		}
	case Exec:
		if c.Program == "" {
			err = ErrMissingProgram
		} else {
			err = checkTasks(c.Type, c.Source)
		}
	default:
		return Validated{}, fmt.Errorf("unknown command %T", cmd)
	}

	if err != nil {
		return Validated{}, err
	}

	return Validated{cmd: cmd}, nil
}

func checkSource(task schedcore.Task) error {
	if task == 0 {
		return ErrMissingSource
	}
	return checkTasks(schedcore.Pid, task)
}

func checkDest(task schedcore.Task) error {
	if task == 0 {
		return ErrMissingDestination
	}
	return nil
}

func checkTasks(t schedcore.PidType, tasks ...schedcore.Task) error {
	for _, task := range tasks {
		if task < 0 {
			return ErrInvalidTask
		}
	}

	if !t.Valid() {
		return ErrInvalidType
	}

	return nil
}

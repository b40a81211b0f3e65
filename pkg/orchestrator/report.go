// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// Phase is a step of a helper protocol.
type Phase string

const (
	PhaseSpawn  Phase = "spawn"
	PhasePull   Phase = "pull"
	PhasePush   Phase = "push"
	PhaseCreate Phase = "create"
	PhaseExec   Phase = "exec"
)

// Exit statuses of a helper that could not start the program, as used by
// shells.
const (
	statusCannotExecute = 126
	statusNotFound      = 127
)

var phaseOps = map[Phase]string{
	PhasePull:   schedcore.OpPull,
	PhasePush:   schedcore.OpPush,
	PhaseCreate: schedcore.OpCreate,
}

// Report is a message written by a helper to its status pipe, one JSON
// object per message. A zero Status is progress, anything else is the
// failure the helper exits with.
type Report struct {
	Phase   Phase            `json:"phase"`
	Status  int              `json:"status,omitempty"`
	Task    schedcore.Task   `json:"task,omitempty"`
	Errno   int              `json:"errno,omitempty"`
	Cookie  schedcore.Cookie `json:"cookie,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Failed reports whether r describes a failure.
func (r *Report) Failed() bool {
	return r.Status != 0
}

func (r *Report) Error() string {
	return r.Message
}

// Unwrap returns the kernel error for failed cookie operations and the
// errno for failed execs.
func (r *Report) Unwrap() error {
	if r.Errno == 0 {
		return nil
	}

	errno := syscall.Errno(r.Errno)

	if op, ok := phaseOps[r.Phase]; ok {
		return &schedcore.KernelError{Op: op, Task: r.Task, Errno: errno}
	}

	return errno
}

// failure builds the report for err happening during phase.
func failure(phase Phase, task schedcore.Task, err error) *Report {
	r := &Report{
		Phase:   phase,
		Task:    task,
		Message: err.Error(),
		Status:  1,
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		r.Errno = int(errno)
	}

	if phase == PhaseExec {
		r.Status = statusCannotExecute
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			r.Status = statusNotFound
		}
	} else if r.Errno > 0 && r.Errno < 256 {
		// keep the errno visible in the exit status
		r.Status = r.Errno
	}

	return r
}

// lastFailure returns the failure in reports, if any.
func lastFailure(reports []Report) *Report {
	for i := len(reports) - 1; i >= 0; i-- {
		if reports[i].Failed() {
			return &reports[i]
		}
	}

	return nil
}

// reached returns the last progress report for phase.
func reached(reports []Report, phase Phase) *Report {
	for i := len(reports) - 1; i >= 0; i-- {
		if reports[i].Phase == phase && !reports[i].Failed() {
			return &reports[i]
		}
	}

	return nil
}

func (r *Report) String() string {
	if r.Failed() {
		return fmt.Sprintf("%s failed (status %d): %s", r.Phase, r.Status, r.Message)
	}
	return fmt.Sprintf("%s reached", r.Phase)
}

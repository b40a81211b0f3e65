// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package orchestrator runs the cookie commands that need a second
// process. The helper is a copy of the tool itself, started with the
// hidden helper subcommand: for copy it pulls the source cookie and pushes
// it to the destination, for exec it acquires a cookie and replaces
// itself with the program.
//
// The helper reports progress and failures as JSON objects on a status
// pipe. For exec the pipe is close-on-exec, so the parent sees EOF once
// the program has started and never waits for the program itself.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var orchestratorLog = logrus.WithField("source", "orchestrator")

// SetLogger sets the logger for the orchestrator package.
func SetLogger(logger *logrus.Entry) {
	orchestratorLog = logger.WithField("source", "orchestrator")
}

// Spawner starts helper processes.
type Spawner interface {
	Spawn(ctx context.Context, req Request) (Child, error)
}

// Child is a running helper.
type Child interface {
	Pid() int

	// Wait waits for the helper to exit and returns its exit status with
	// the reports it sent.
	Wait() (int, []Report, error)

	// Detach waits until the status pipe is closed, which happens once
	// the helper has exec'd or exited, and returns the reports. The
	// helper is not waited for unless it failed.
	Detach() ([]Report, error)
}

// SpawnError means no helper could be started or waited for.
type SpawnError struct {
	Kind Kind
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to run %s helper: %v", e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// CopyError is a helper that failed to copy a cookie.
type CopyError struct {
	Source schedcore.Task
	Dest   schedcore.Task
	Status int
	Phase  Phase
	Err    error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("failed to copy cookie of pid %d to pid %d (%s, exit status %d): %v",
		e.Source, e.Dest, e.Phase, e.Status, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// ExecError is a helper that could not start the program, either because
// no cookie could be acquired or because the exec failed.
type ExecError struct {
	Program string
	Phase   Phase
	Status  int
	Err     error
}

func (e *ExecError) Error() string {
	if e.Phase == PhaseExec {
		return fmt.Sprintf("failed to execute %s: %v", e.Program, e.Err)
	}
	return fmt.Sprintf("failed to prepare %s (%s): %v", e.Program, e.Phase, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Orchestrator is the parent side of the helper protocols.
type Orchestrator struct {
	spawner Spawner
}

// New returns an Orchestrator starting helpers with s.
func New(s Spawner) *Orchestrator {
	return &Orchestrator{spawner: s}
}

// Copy runs a copy helper and waits for it.
func (o *Orchestrator) Copy(ctx context.Context, source, dest schedcore.Task, t schedcore.PidType) error {
	req := Request{Kind: KindCopy, Source: source, Dest: dest, Type: t}
	logger := orchestratorLog.WithFields(logrus.Fields{
		"helper": req.Kind,
		"pid":    source,
		"dest":   dest,
		"type":   t,
	})

	child, err := o.spawner.Spawn(ctx, req)
	if err != nil {
		return &SpawnError{Kind: req.Kind, Err: err}
	}

	logger = logger.WithField("child", child.Pid())
	logger.Debug("spawned helper")

	status, reports, err := child.Wait()
	if err != nil {
		return &SpawnError{Kind: req.Kind, Err: errors.Wrap(err, "wait")}
	}

	if status == 0 {
		logger.Debug("helper finished")
		return nil
	}

	copyErr := &CopyError{
		Source: source,
		Dest:   dest,
		Status: status,
		Phase:  PhaseSpawn,
		Err:    fmt.Errorf("helper exited with status %d", status),
	}

	if r := lastFailure(reports); r != nil {
		copyErr.Phase = r.Phase
		copyErr.Err = r
	}

	logger.WithError(copyErr).Error("copy failed")
	return copyErr
}

// Exec runs an exec helper and returns the pid of the program once it has
// started. The program is not waited for.
func (o *Orchestrator) Exec(ctx context.Context, source schedcore.Task, t schedcore.PidType, program string, args []string) (int, error) {
	req := Request{Kind: KindExec, Source: source, Type: t, Program: program, Args: args}
	logger := orchestratorLog.WithFields(logrus.Fields{
		"helper":  req.Kind,
		"pid":     source,
		"type":    t,
		"program": program,
	})

	child, err := o.spawner.Spawn(ctx, req)
	if err != nil {
		return 0, &SpawnError{Kind: req.Kind, Err: err}
	}

	pid := child.Pid()
	logger = logger.WithField("child", pid)

	reports, err := child.Detach()
	if err != nil {
		return 0, &SpawnError{Kind: req.Kind, Err: errors.Wrap(err, "read status")}
	}

	if r := lastFailure(reports); r != nil {
		execErr := &ExecError{Program: program, Phase: r.Phase, Status: r.Status, Err: r}
		logger.WithError(execErr).Error("exec failed")
		return 0, execErr
	}

	started := reached(reports, PhaseExec)
	if started == nil {
		// the helper went away without trying to exec
		return 0, &SpawnError{Kind: req.Kind, Err: errors.New("helper exited before starting the program")}
	}

	logger.WithFields(logrus.Fields{
		"path":   started.Message,
		"cookie": started.Cookie,
	}).Debug("program started")

	return pid, nil
}

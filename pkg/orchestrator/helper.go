// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// StatusFd is the descriptor of the status pipe in a helper.
const StatusFd = 3

// ExecFunc replaces the calling process with a program. It has the
// signature of syscall.Exec and only returns on failure.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// RunCopy is the helper side of the copy protocol: adopt the cookie of
// the source, then push it to the destination scope. It returns nil on
// success and the failure report otherwise. The push is never attempted
// when the pull fails.
func RunCopy(c schedcore.Capability, req Request) *Report {
	if err := c.PullCookie(req.Source); err != nil {
		return failure(PhasePull, req.Source, err)
	}

	if err := c.PushCookie(req.Dest, req.Type); err != nil {
		return failure(PhasePush, req.Dest, err)
	}

	return nil
}

// acquire gives the calling task the cookie the program must run with.
func acquire(c schedcore.Capability, req Request) *Report {
	if req.Source != 0 {
		if err := c.PullCookie(req.Source); err != nil {
			return failure(PhasePull, req.Source, err)
		}
		return nil
	}

	if err := c.CreateCookie(0, req.Type); err != nil {
		return failure(PhaseCreate, 0, err)
	}

	return nil
}

// RunExec is the helper side of the exec protocol. progress is called
// with the acquired cookie right before the program is started. On
// success execFn does not return, so neither does RunExec.
func RunExec(c schedcore.Capability, req Request, progress func(Report), execFn ExecFunc) *Report {
	if r := acquire(c, req); r != nil {
		return r
	}

	cookie, err := c.GetCookie(0)
	if err != nil {
		orchestratorLog.WithError(err).Warn("could not read the acquired cookie")
	}

	path, err := exec.LookPath(req.Program)
	if err != nil {
		return failure(PhaseExec, 0, err)
	}

	if progress != nil {
		progress(Report{Phase: PhaseExec, Cookie: cookie, Message: path})
	}

	argv := append([]string{req.Program}, req.Args...)
	if err := execFn(path, argv, os.Environ()); err != nil {
		return failure(PhaseExec, 0, err)
	}

	return nil
}

// Helper runs requests inside a helper process.
type Helper struct {
	Capability schedcore.Capability

	// Status receives the reports, one JSON object each.
	Status io.Writer

	Exec ExecFunc

	// BeforeExec runs right before Exec, typically to mark the status
	// pipe close-on-exec.
	BeforeExec func() error
}

func (h *Helper) send(r Report) {
	if h.Status == nil {
		return
	}

	if err := json.NewEncoder(h.Status).Encode(r); err != nil {
		orchestratorLog.WithError(err).WithField("phase", r.Phase).Error("could not send report")
	}
}

// Run executes req and returns the exit status of the helper.
func (h *Helper) Run(req Request) int {
	logger := orchestratorLog.WithFields(logrus.Fields{
		"helper": req.Kind,
		"pid":    req.Source,
		"type":   req.Type,
	})

	var r *Report

	switch req.Kind {
	case KindCopy:
		r = RunCopy(h.Capability, req)
	case KindExec:
		execFn := func(argv0 string, argv []string, envv []string) error {
			if h.BeforeExec != nil {
				if err := h.BeforeExec(); err != nil {
					return err
				}
			}
			logger.WithField("program", argv0).Debug("replacing helper")
			return h.Exec(argv0, argv, envv)
		}
		r = RunExec(h.Capability, req, h.send, execFn)
	default:
		r = failure(PhaseSpawn, 0, fmt.Errorf("unknown helper kind %q", req.Kind))
	}

	if r == nil {
		logger.Debug("helper done")
		return 0
	}

	logger.WithFields(logrus.Fields{
		"phase":  r.Phase,
		"status": r.Status,
	}).WithError(r).Error("helper failed")

	h.send(*r)
	return r.Status
}

// Serve runs req in a helper process started by ProcessSpawner, using
// the status pipe it inherited. The calling goroutine stays locked to its
// OS thread, so per-task cookie changes apply to the thread that execs.
func Serve(c schedcore.Capability, req Request) int {
	runtime.LockOSThread()

	status := os.NewFile(StatusFd, "status")
	if status == nil {
		return 1
	}
	defer status.Close()

	h := &Helper{
		Capability: c,
		Status:     status,
		Exec:       unix.Exec,
		BeforeExec: func() error {
			unix.CloseOnExec(StatusFd)
			return nil
		},
	}

	return h.Run(req)
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package engine

import (
	"context"
	"fmt"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/sirupsen/logrus"
)

var engineLog = logrus.WithField("source", "engine")

// SetLogger sets the logger for the engine package.
func SetLogger(logger *logrus.Entry) {
	engineLog = logger.WithField("source", "engine")
}

// Orchestrator runs the commands that need a helper process.
type Orchestrator interface {
	// Copy gives every task of type t rooted at dest the cookie of source.
	Copy(ctx context.Context, source, dest schedcore.Task, t schedcore.PidType) error

	// Exec starts program with a new cookie of type t, or the cookie of
	// source if it is not zero, and returns its pid without waiting for
	// it to finish.
	Exec(ctx context.Context, source schedcore.Task, t schedcore.PidType, program string, args []string) (int, error)
}

// Engine executes cookie commands.
type Engine struct {
	capability   schedcore.Capability
	orchestrator Orchestrator
}

// New returns an Engine using c for direct kernel calls and o for the
// commands that need a helper process.
func New(c schedcore.Capability, o Orchestrator) *Engine {
	return &Engine{
		capability:   c,
		orchestrator: o,
	}
}

// Execute validates cmd and runs it.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	v, err := Validate(cmd)
	if err != nil {
		engineLog.WithError(err).WithField("command", commandName(cmd)).Debug("invalid command")
		return Outcome{}, err
	}

	return e.dispatch(ctx, v)
}

func (e *Engine) dispatch(ctx context.Context, v Validated) (Outcome, error) {
	logger := engineLog.WithField("command", commandName(v.cmd))

	switch c := v.cmd.(type) {
	case Get:
		cookie, err := e.capability.GetCookie(c.Source)
		if err != nil {
			return Outcome{}, err
		}

		logger.WithFields(logrus.Fields{
			"pid":    c.Source,
			"cookie": cookie,
		}).Debug("got cookie")

		if cookie == 0 {
			return Outcome{Kind: OutcomeNoCookie}, nil
		}
		return Outcome{Kind: OutcomeCookie, Cookie: cookie}, nil

	case Create:
		if err := e.capability.CreateCookie(c.Target, c.Type); err != nil {
			return Outcome{}, err
		}

		logger.WithFields(logrus.Fields{
			"pid":  c.Target,
			"type": c.Type,
		}).Info("created cookie")

		return Outcome{Kind: OutcomeCreated}, nil

	case Copy:
		if err := e.orchestrator.Copy(ctx, c.Source, c.Dest, c.Type); err != nil {
			return Outcome{}, err
		}

		logger.WithFields(logrus.Fields{
			"pid":  c.Source,
			"dest": c.Dest,
			"type": c.Type,
		}).Info("copied cookie")

		return Outcome{Kind: OutcomeCopied}, nil

	case Exec:
		pid, err := e.orchestrator.Exec(ctx, c.Source, c.Type, c.Program, c.Args)
		if err != nil {
			return Outcome{}, err
		}

		logger.WithFields(logrus.Fields{
			"pid":     c.Source,
			"type":    c.Type,
			"program": c.Program,
			"child":   pid,
		}).Info("started program")

		return Outcome{Kind: OutcomeExecuted, Pid: pid}, nil
	}

	return Outcome{}, fmt.Errorf("cannot dispatch unvalidated command %s", commandName(v.cmd))
}

// Cookie returns the cookie of task. It is used for diagnostics after a
// command has run.
func (e *Engine) Cookie(task schedcore.Task) (schedcore.Cookie, error) {
	return e.capability.GetCookie(task)
}

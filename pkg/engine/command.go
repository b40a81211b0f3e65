// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package engine validates cookie commands and dispatches them to the
// kernel capability or, for copy and exec, to the process orchestrator.
package engine

import (
	"fmt"
	"strings"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// Command is one of Get, Create, Copy or Exec.
type Command interface {
	// Name is the subcommand name of the command.
	Name() string

	isCommand()
}

// Get retrieves the cookie of Source.
type Get struct {
	Source schedcore.Task
}

// Create assigns a new cookie to every task of Type rooted at Target. A
// zero Target means the calling task.
type Create struct {
	Target schedcore.Task
	Type   schedcore.PidType
}

// Copy gives every task of Type rooted at Dest the cookie of Source.
type Copy struct {
	Source schedcore.Task
	Dest   schedcore.Task
	Type   schedcore.PidType
}

// Exec runs Program with Args carrying the cookie of Source, or a new
// cookie of Type when Source is zero.
type Exec struct {
	Source  schedcore.Task
	Type    schedcore.PidType
	Program string
	Args    []string
}

func (Get) Name() string    { return "get" }
func (Create) Name() string { return "create" }
func (Copy) Name() string   { return "copy" }
func (Exec) Name() string   { return "exec" }

// commandName is cmd.Name() for the known commands and the dynamic type
// otherwise, so it is safe on nil.
func commandName(cmd Command) string {
	switch cmd.(type) {
	case Get, Create, Copy, Exec:
		return cmd.Name()
	}

	return fmt.Sprintf("%T", cmd)
}

func (Get) isCommand()    {}
func (Create) isCommand() {}
func (Copy) isCommand()   {}
func (Exec) isCommand()   {}

func (c Get) String() string {
	return fmt.Sprintf("get -p %d", c.Source)
}

func (c Create) String() string {
	return fmt.Sprintf("create -p %d -t %s", c.Target, c.Type)
}

func (c Copy) String() string {
	return fmt.Sprintf("copy -p %d -d %d -t %s", c.Source, c.Dest, c.Type)
}

func (c Exec) String() string {
	return fmt.Sprintf("exec -p %d -t %s -- %s", c.Source,
		c.Type, strings.Join(append([]string{c.Program}, c.Args...), " "))
}

// OutcomeKind says what a successful command did.
type OutcomeKind int

const (
	// OutcomeCookie means the task has the cookie in Outcome.Cookie.
	OutcomeCookie OutcomeKind = iota
	// OutcomeNoCookie means the kernel reported a zero cookie.
	OutcomeNoCookie
	OutcomeCreated
	OutcomeCopied
	// OutcomeExecuted means the program is running as Outcome.Pid.
	OutcomeExecuted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCookie:
		return "cookie"
	case OutcomeNoCookie:
		return "no-cookie"
	case OutcomeCreated:
		return "created"
	case OutcomeCopied:
		return "copied"
	case OutcomeExecuted:
		return "executed"
	}

	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of a successful command.
type Outcome struct {
	Kind   OutcomeKind
	Cookie schedcore.Cookie
	Pid    int
}

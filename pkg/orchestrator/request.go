// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"strconv"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// HelperCommand is the hidden subcommand that runs the helper side of a
// request.
const HelperCommand = "helper"

// Kind is the protocol a helper runs.
type Kind string

const (
	KindCopy Kind = "copy"
	KindExec Kind = "exec"
)

// Helper flag names, shared by Request.Argv and the helper subcommand.
const (
	FlagSource = "source"
	FlagDest   = "dest"
	FlagType   = "type"
)

// Request describes the work of one helper process.
type Request struct {
	Kind   Kind
	Source schedcore.Task
	Dest   schedcore.Task
	Type   schedcore.PidType

	// exec only
	Program string
	Args    []string
}

// Argv returns the command line arguments, starting with the helper
// subcommand, that make a helper run r.
func (r Request) Argv() []string {
	args := []string{
		HelperCommand,
		string(r.Kind),
		"--" + FlagSource, strconv.Itoa(int(r.Source)),
		"--" + FlagType, r.Type.String(),
	}

	if r.Kind == KindCopy {
		args = append(args, "--"+FlagDest, strconv.Itoa(int(r.Dest)))
	}

	if r.Kind == KindExec {
		args = append(args, "--", r.Program)
		args = append(args, r.Args...)
	}

	return args
}

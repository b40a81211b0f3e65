// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/urfave/cli"
)

var execCLICommand = cli.Command{
	Name:  "exec",
	Usage: "run a program with a core scheduling cookie",
	Description: `Starts the program with the cookie of --pid, or with a new cookie of
   --type when no pid is given. coresched returns as soon as the program
   has started; its exit status only says whether that worked.`,
	ArgsUsage:      "[--] <program> [arguments...]",
	OnUsageError:   onUsageError,
	SkipArgReorder: true,
	Flags: []cli.Flag{
		pidFlag("pid of the task whose cookie the program gets"),
		typeFlag,
	},
	Action: func(context *cli.Context) error {
		ctx, err := cliContextToContext(context)
		if err != nil {
			return err
		}

		e, config, err := newEngine(context)
		if err != nil {
			return err
		}

		source, err := taskFlag(context, "pid")
		if err != nil {
			return err
		}

		t, err := pidTypeFlag(context, config)
		if err != nil {
			return err
		}

		cmd := engine.Exec{Source: source, Type: t}
		if args := context.Args(); len(args) > 0 {
			cmd.Program = args.First()
			cmd.Args = args.Tail()
		}

		return execProgram(ctx, e, cmd)
	},
}

func execProgram(ctx context.Context, e *engine.Engine, cmd engine.Exec) error {
	out, err := e.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	reportCookie(e, schedcore.Task(out.Pid))
	return nil
}

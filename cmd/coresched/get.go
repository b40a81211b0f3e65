// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"fmt"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/urfave/cli"
)

var getCLICommand = cli.Command{
	Name:         "get",
	Usage:        "print the core scheduling cookie of a task",
	ArgsUsage:    " ",
	OnUsageError: onUsageError,
	Flags: []cli.Flag{
		pidFlag("pid of the task to query"),
	},
	Action: func(context *cli.Context) error {
		ctx, err := cliContextToContext(context)
		if err != nil {
			return err
		}

		source, err := taskFlag(context, "pid")
		if err != nil {
			return err
		}

		e, _, err := newEngine(context)
		if err != nil {
			return err
		}

		return get(ctx, e, source)
	},
}

func get(ctx context.Context, e *engine.Engine, source schedcore.Task) error {
	out, err := e.Execute(ctx, engine.Get{Source: source})
	if err != nil {
		return err
	}

	if out.Kind == engine.OutcomeNoCookie {
		fmt.Fprintf(defaultOutputFile, "pid %d doesn't have a core scheduling cookie\n", source)
		return errNoCookie
	}

	fmt.Fprintf(defaultOutputFile, "cookie of pid %d is %s\n", source, out.Cookie)
	return nil
}

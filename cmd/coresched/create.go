// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/urfave/cli"
)

var createCLICommand = cli.Command{
	Name:  "create",
	Usage: "give a task a new core scheduling cookie",
	Description: `Assigns a new, unique cookie to the task (and, depending on --type, its
   thread group or process group). Without --pid the cookie is created for
   the process group of coresched itself, which is rarely useful.`,
	ArgsUsage:    " ",
	OnUsageError: onUsageError,
	Flags: []cli.Flag{
		pidFlag("pid of the task to create the cookie for"),
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

		target, err := taskFlag(context, "pid")
		if err != nil {
			return err
		}

		t, err := pidTypeFlag(context, config)
		if err != nil {
			return err
		}

		return create(ctx, e, engine.Create{Target: target, Type: t})
	},
}

func create(ctx context.Context, e *engine.Engine, cmd engine.Create) error {
	if _, err := e.Execute(ctx, cmd); err != nil {
		return err
	}

	reportCookie(e, cmd.Target)
	return nil
}

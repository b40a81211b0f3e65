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

var copyCLICommand = cli.Command{
	Name:         "copy",
	Usage:        "copy the core scheduling cookie of a task to other tasks",
	ArgsUsage:    " ",
	OnUsageError: onUsageError,
	Flags: []cli.Flag{
		pidFlag("source pid of the core scheduling cookie"),
		destFlag,
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

		dest, err := taskFlag(context, "dest")
		if err != nil {
			return err
		}

		t, err := pidTypeFlag(context, config)
		if err != nil {
			return err
		}

		return copyCookie(ctx, e, engine.Copy{Source: source, Dest: dest, Type: t})
	},
}

func copyCookie(ctx context.Context, e *engine.Engine, cmd engine.Copy) error {
	if _, err := e.Execute(ctx, cmd); err != nil {
		return err
	}

	reportCookie(e, cmd.Dest)
	return nil
}

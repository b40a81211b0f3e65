// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator"
	"github.com/urfave/cli"
)

// serveHelper runs a request in this process. Tests replace it.
var serveHelper = orchestrator.Serve

var helperFlags = []cli.Flag{
	cli.StringFlag{Name: orchestrator.FlagSource},
	cli.StringFlag{Name: orchestrator.FlagType},
}

var helperCLICommand = cli.Command{
	Name:   orchestrator.HelperCommand,
	Usage:  "child side of copy and exec (internal)",
	Hidden: true,
	Subcommands: []cli.Command{
		{
			Name: string(orchestrator.KindCopy),
			Flags: append([]cli.Flag{
				cli.StringFlag{Name: orchestrator.FlagDest},
			}, helperFlags...),
			OnUsageError: onUsageError,
			Action: func(context *cli.Context) error {
				return runHelper(context, orchestrator.KindCopy)
			},
		},
		{
			Name:           string(orchestrator.KindExec),
			Flags:          helperFlags,
			OnUsageError:   onUsageError,
			SkipArgReorder: true,
			Action: func(context *cli.Context) error {
				return runHelper(context, orchestrator.KindExec)
			},
		},
	},
}

// helperRequest rebuilds the request encoded by Request.Argv.
func helperRequest(c *cli.Context, kind orchestrator.Kind) (orchestrator.Request, error) {
	req := orchestrator.Request{Kind: kind}

	config, err := getConfig(c)
	if err != nil {
		return req, err
	}

	if req.Source, err = taskFlag(c, orchestrator.FlagSource); err != nil {
		return req, err
	}

	if req.Type, err = pidTypeFlag(c, config); err != nil {
		return req, err
	}

	if kind == orchestrator.KindCopy {
		if req.Dest, err = taskFlag(c, orchestrator.FlagDest); err != nil {
			return req, err
		}
	}

	if kind == orchestrator.KindExec {
		args := c.Args()
		if len(args) > 0 {
			req.Program = args.First()
			req.Args = args.Tail()
		}
	}

	return req, nil
}

func runHelper(c *cli.Context, kind orchestrator.Kind) error {
	req, err := helperRequest(c, kind)
	if err != nil {
		return err
	}

	coreschedLog.WithField("helper", kind).Debug("helper started")

	if status := serveHelper(capability, req); status != 0 {
		exit(status)
	}

	return nil
}

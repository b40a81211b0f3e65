// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"os"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/urfave/cli"
)

func pidFlag(usage string) cli.Flag {
	return cli.StringFlag{
		Name:  "pid, p",
		Usage: usage,
	}
}

var destFlag = cli.StringFlag{
	Name:  "dest, d",
	Usage: "pid to copy the core scheduling cookie to",
}

var typeFlag = cli.StringFlag{
	Name:  "type, t",
	Usage: "type of the pid the cookie is applied to: pid, tgid or pgid (default pgid)",
}

// taskFlag parses the task id in flag. An unset flag is task 0.
func taskFlag(c *cli.Context, flag string) (schedcore.Task, error) {
	s := c.String(flag)
	if s == "" {
		return 0, nil
	}

	task, err := schedcore.ParseTask(s)
	if err != nil {
		return 0, &usageError{err}
	}

	return task, nil
}

// pidTypeFlag parses --type, falling back to the configured default.
func pidTypeFlag(c *cli.Context, config utils.Config) (schedcore.PidType, error) {
	s := c.String("type")
	if s == "" {
		return config.Coresched.DefaultType, nil
	}

	t, err := schedcore.ParsePidType(s)
	if err != nil {
		return 0, &usageError{err}
	}

	return t, nil
}

// processSpawner starts helpers as copies of the running binary, passing
// on the logging options so both sides log to the same place.
func processSpawner(c *cli.Context, config utils.Config) orchestrator.Spawner {
	args := []string{
		"--log", c.GlobalString("log"),
		"--log-format", c.GlobalString("log-format"),
	}

	if path := c.GlobalString(configFilePathOption); path != "" {
		args = append(args, "--"+configFilePathOption, path)
	}

	if debug {
		args = append(args, "--debug")
	}

	invocation, _ := c.App.Metadata["invocation"].(string)

	return &orchestrator.ProcessSpawner{
		Path:       config.Coresched.HelperPath,
		GlobalArgs: args,
		Env:        []string{invocationEnv + "=" + invocation},
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// newEngine returns the engine for the current command line.
func newEngine(c *cli.Context) (*engine.Engine, utils.Config, error) {
	config, err := getConfig(c)
	if err != nil {
		return nil, config, err
	}

	o := orchestrator.New(newSpawner(c, config))

	return engine.New(capability, o), config, nil
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// selfExe is the binary started as helper when no path is configured.
const selfExe = "/proc/self/exe"

// ProcessSpawner starts helpers by executing a copy of the tool.
type ProcessSpawner struct {
	// Path of the binary, /proc/self/exe if empty.
	Path string

	// GlobalArgs go before the helper subcommand, e.g. the log options
	// of the parent.
	GlobalArgs []string

	// Env is added to the environment of the parent.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn implements Spawner.
func (s *ProcessSpawner) Spawn(ctx context.Context, req Request) (Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path
	if path == "" {
		path = selfExe
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "status pipe")
	}

	args := append(append([]string{}, s.GlobalArgs...), req.Argv()...)

	// not CommandContext: an exec'd program must outlive ctx
	cmd := exec.Command(path, args...)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.ExtraFiles = []*os.File{w}

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, errors.Wrapf(err, "start %s", path)
	}

	// only the helper may hold the write end, or EOF never comes
	w.Close()

	return &processChild{cmd: cmd, status: r}, nil
}

type processChild struct {
	cmd    *exec.Cmd
	status *os.File
}

func (c *processChild) Pid() int {
	return c.cmd.Process.Pid
}

// reports reads the status pipe until EOF.
func (c *processChild) reports() ([]Report, error) {
	defer c.status.Close()

	return DecodeReports(c.status)
}

func (c *processChild) Wait() (int, []Report, error) {
	reports, readErr := c.reports()

	err := c.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, reports, err
		}
	}

	if readErr != nil {
		return 0, reports, readErr
	}

	return c.cmd.ProcessState.ExitCode(), reports, nil
}

func (c *processChild) Detach() ([]Report, error) {
	reports, err := c.reports()
	if err != nil {
		return reports, err
	}

	if lastFailure(reports) != nil || reached(reports, PhaseExec) == nil {
		// the helper is exiting, reap it
		c.cmd.Wait()
		return reports, nil
	}

	return reports, c.cmd.Process.Release()
}

// DecodeReports reads reports from r until EOF.
func DecodeReports(r io.Reader) ([]Report, error) {
	var reports []Report

	dec := json.NewDecoder(r)
	for {
		var report Report
		err := dec.Decode(&report)
		if err == io.EOF {
			return reports, nil
		}
		if err != nil {
			return reports, errors.Wrap(err, "decode report")
		}

		reports = append(reports, report)
	}
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package mock runs orchestrator helpers inside the calling process, for
// tests that must not fork.
package mock

import (
	"bytes"
	"context"
	"sync"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// ChildPid is the pid reported for every in-process helper.
const ChildPid = 4242

// Spawner runs each request synchronously against Capability. Exec
// requests call Exec instead of replacing the process; a nil Exec
// behaves like a successful exec.
type Spawner struct {
	sync.Mutex

	Capability schedcore.Capability
	Exec       orchestrator.ExecFunc

	// SpawnErr makes every Spawn fail.
	SpawnErr error

	// Requests records what was spawned.
	Requests []orchestrator.Request

	// Execs records the argv of each exec.
	Execs [][]string
}

// Spawn implements orchestrator.Spawner.
func (s *Spawner) Spawn(ctx context.Context, req orchestrator.Request) (orchestrator.Child, error) {
	s.Lock()
	defer s.Unlock()

	if s.SpawnErr != nil {
		return nil, s.SpawnErr
	}

	s.Requests = append(s.Requests, req)

	var status bytes.Buffer

	h := &orchestrator.Helper{
		Capability: s.Capability,
		Status:     &status,
		Exec: func(argv0 string, argv []string, envv []string) error {
			s.Execs = append(s.Execs, argv)
			if s.Exec != nil {
				return s.Exec(argv0, argv, envv)
			}
			return nil
		},
	}

	code := h.Run(req)

	reports, err := orchestrator.DecodeReports(&status)
	if err != nil {
		return nil, err
	}

	return &child{status: code, reports: reports}, nil
}

type child struct {
	status  int
	reports []orchestrator.Report
}

func (c *child) Pid() int {
	return ChildPid
}

func (c *child) Wait() (int, []orchestrator.Report, error) {
	return c.status, c.reports, nil
}

func (c *child) Detach() ([]orchestrator.Report, error) {
	return c.reports, nil
}

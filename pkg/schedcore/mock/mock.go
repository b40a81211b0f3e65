// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package mock provides an in-memory schedcore.Capability for tests.
package mock

import (
	"sync"
	"syscall"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
)

// Self is the task id the mock uses for the calling task.
const Self schedcore.Task = 1

// Calls counts the invocations of each primitive.
type Calls struct {
	Get    int
	Create int
	Pull   int
	Push   int
}

// Total returns the number of primitive calls made.
func (c Calls) Total() int {
	return c.Get + c.Create + c.Pull + c.Push
}

// Capability keeps cookies in a map. The zero value is ready to use and
// has no tasks with a cookie.
//
// Task 0 is resolved to Self. Scopes are not expanded: a create or push
// applies to the named task only.
type Capability struct {
	sync.Mutex

	Cookies map[schedcore.Task]schedcore.Cookie
	Calls   Calls

	// CreateArgs and PushArgs record the pid type of each call.
	CreateArgs []schedcore.PidType
	PushArgs   []schedcore.PidType

	// Per-primitive failures. A non-zero errno makes the call fail.
	GetErr    syscall.Errno
	CreateErr syscall.Errno
	PullErr   syscall.Errno
	PushErr   syscall.Errno

	next schedcore.Cookie
}

// New returns a mock with the specified initial cookies.
func New(cookies map[schedcore.Task]schedcore.Cookie) *Capability {
	m := &Capability{Cookies: map[schedcore.Task]schedcore.Cookie{}}
	for k, v := range cookies {
		m.Cookies[k] = v
	}
	return m
}

func resolve(task schedcore.Task) schedcore.Task {
	if task == 0 {
		return Self
	}
	return task
}

func (m *Capability) init() {
	if m.Cookies == nil {
		m.Cookies = map[schedcore.Task]schedcore.Cookie{}
	}
}

// GetCookie implements schedcore.Capability.
func (m *Capability) GetCookie(task schedcore.Task) (schedcore.Cookie, error) {
	m.Lock()
	defer m.Unlock()

	m.Calls.Get++
	if m.GetErr != 0 {
		return 0, &schedcore.KernelError{Op: schedcore.OpGet, Task: task, Errno: m.GetErr}
	}

	return m.Cookies[resolve(task)], nil
}

// CreateCookie implements schedcore.Capability.
func (m *Capability) CreateCookie(task schedcore.Task, t schedcore.PidType) error {
	m.Lock()
	defer m.Unlock()

	m.init()
	m.Calls.Create++
	m.CreateArgs = append(m.CreateArgs, t)
	if m.CreateErr != 0 {
		return &schedcore.KernelError{Op: schedcore.OpCreate, Task: task, Errno: m.CreateErr}
	}

	m.next += 0x1000
	m.Cookies[resolve(task)] = m.next
	return nil
}

// PullCookie implements schedcore.Capability.
func (m *Capability) PullCookie(source schedcore.Task) error {
	m.Lock()
	defer m.Unlock()

	m.init()
	m.Calls.Pull++
	if m.PullErr != 0 {
		return &schedcore.KernelError{Op: schedcore.OpPull, Task: source, Errno: m.PullErr}
	}

	cookie, ok := m.Cookies[resolve(source)]
	if !ok {
		return &schedcore.KernelError{Op: schedcore.OpPull, Task: source, Errno: syscall.ESRCH}
	}

	m.Cookies[Self] = cookie
	return nil
}

// PushCookie implements schedcore.Capability.
func (m *Capability) PushCookie(dest schedcore.Task, t schedcore.PidType) error {
	m.Lock()
	defer m.Unlock()

	m.init()
	m.Calls.Push++
	m.PushArgs = append(m.PushArgs, t)
	if m.PushErr != 0 {
		return &schedcore.KernelError{Op: schedcore.OpPush, Task: dest, Errno: m.PushErr}
	}

	m.Cookies[resolve(dest)] = m.Cookies[Self]
	return nil
}

// Snapshot returns a copy of the call counters.
func (m *Capability) Snapshot() Calls {
	m.Lock()
	defer m.Unlock()

	return m.Calls
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package schedcore is a thin layer over the kernel's core scheduling
// interface (prctl PR_SCHED_CORE). Tasks that share a cookie are allowed to
// run concurrently on the SMT siblings of one physical core.
package schedcore

import (
	"errors"
	"fmt"
	"strconv"
	"syscall"
)

// PidType is the type of provided pid value and how it should be treated
type PidType int

const (
	pidTypePid            = 0
	pidTypeThreadGroupId  = 1
	pidTypeProcessGroupId = 2

	// Pid affects the current pid
	Pid PidType = pidTypePid
	// ThreadGroup affects all threads in the group
	ThreadGroup PidType = pidTypeThreadGroupId
	// ProcessGroup affects all processes in the group
	ProcessGroup PidType = pidTypeProcessGroupId

	// DefaultPidType is used when the caller does not specify a type.
	DefaultPidType = ProcessGroup
)

var pidTypeNames = map[PidType]string{
	Pid:          "pid",
	ThreadGroup:  "tgid",
	ProcessGroup: "pgid",
}

func (t PidType) String() string {
	if s, ok := pidTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("PidType(%d)", int(t))
}

// Valid reports whether t is one of the known pid types.
func (t PidType) Valid() bool {
	_, ok := pidTypeNames[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t PidType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid pid type %d", int(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PidType) UnmarshalText(text []byte) error {
	parsed, err := ParsePidType(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// ParsePidType converts one of "pid", "tgid" or "pgid" into a PidType.
func ParsePidType(s string) (PidType, error) {
	for t, name := range pidTypeNames {
		if name == s {
			return t, nil
		}
	}

	return 0, fmt.Errorf("'%s' is an invalid option. Must be one of pid/tgid/pgid", s)
}

// Task identifies a task, thread group or process group. Zero means "not set"
// for a source and "the calling task" for a target.
type Task int

// ParseTask parses a base 10, non-negative task id.
func ParseTask(s string) (Task, error) {
	pid, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("Failed to parse pid %s", s)
	}

	if pid < 0 {
		return 0, fmt.Errorf("PID %d cannot be negative", pid)
	}

	return Task(pid), nil
}

// Cookie is the opaque value the kernel assigns to a core scheduling group.
// Zero means the task has no cookie.
type Cookie uint64

func (c Cookie) String() string {
	return fmt.Sprintf("0x%x", uint64(c))
}

// Capability is the set of core scheduling primitives offered by the kernel.
type Capability interface {
	// GetCookie returns the cookie of a single task. A zero cookie is not an
	// error.
	GetCookie(task Task) (Cookie, error)

	// CreateCookie assigns a new unique cookie to every task of the given
	// type rooted at task.
	CreateCookie(task Task, t PidType) error

	// PullCookie makes the calling task adopt the cookie of source.
	PullCookie(source Task) error

	// PushCookie gives every task of the given type rooted at dest the
	// cookie of the calling task.
	PushCookie(dest Task, t PidType) error
}

// Operation names used in KernelError. Each reads as "failed to <op> pid N".
const (
	OpGet    = "get cookie of"
	OpCreate = "create cookie for"
	OpPull   = "pull cookie from"
	OpPush   = "push cookie to"
)

// ErrNotSupported is returned on platforms without core scheduling.
var ErrNotSupported = errors.New("schedcore not available on non-Linux platforms")

// KernelError is a failed core scheduling call.
type KernelError struct {
	Op    string
	Task  Task
	Errno syscall.Errno
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("failed to %s pid %d: %v", e.Op, e.Task, e.Errno)
}

func (e *KernelError) Unwrap() error {
	return e.Errno
}

// Supported probes whether c can be used on this host, returning a
// descriptive error if it cannot.
func Supported(c Capability) error {
	_, err := c.GetCookie(0)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, syscall.EINVAL):
		return fmt.Errorf("kernel does not support core scheduling: %w", err)
	case errors.Is(err, syscall.ENODEV):
		return fmt.Errorf("SMT is not available or disabled: %w", err)
	}

	return err
}

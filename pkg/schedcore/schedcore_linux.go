// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package schedcore

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// kernelScopes maps a PidType to the PR_SCHED_CORE_SCOPE_* value the
// kernel expects.
var kernelScopes = map[PidType]uintptr{
	Pid:          pidTypePid,
	ThreadGroup:  pidTypeThreadGroupId,
	ProcessGroup: pidTypeProcessGroupId,
}

type prctlCapability struct{}

// New returns the Capability backed by prctl(2).
//
// Operations acting on the calling task (a zero task, PullCookie and the
// source side of PushCookie) apply to the current OS thread, so callers
// must hold runtime.LockOSThread for their results to be meaningful.
func New() Capability {
	return prctlCapability{}
}

func scopeOf(t PidType) (uintptr, error) {
	s, ok := kernelScopes[t]
	if !ok {
		return 0, unix.EINVAL
	}

	return s, nil
}

func (prctlCapability) GetCookie(task Task) (Cookie, error) {
	var cookie uint64

	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_SCHED_CORE, unix.PR_SCHED_CORE_GET,
		uintptr(task), kernelScopes[Pid], uintptr(unsafe.Pointer(&cookie)), 0)
	if errno != 0 {
		return 0, &KernelError{Op: OpGet, Task: task, Errno: errno}
	}

	return Cookie(cookie), nil
}

func (prctlCapability) CreateCookie(task Task, t PidType) error {
	return call(OpCreate, unix.PR_SCHED_CORE_CREATE, task, t)
}

func (prctlCapability) PullCookie(source Task) error {
	return call(OpPull, unix.PR_SCHED_CORE_SHARE_FROM, source, Pid)
}

func (prctlCapability) PushCookie(dest Task, t PidType) error {
	return call(OpPush, unix.PR_SCHED_CORE_SHARE_TO, dest, t)
}

func call(op string, cmd uintptr, task Task, t PidType) error {
	scope, err := scopeOf(t)
	if err != nil {
		return &KernelError{Op: op, Task: task, Errno: unix.EINVAL}
	}

	if err := unix.Prctl(unix.PR_SCHED_CORE, cmd, uintptr(task), scope, 0); err != nil {
		errno, ok := err.(unix.Errno)
		if !ok {
			errno = unix.EIO
		}
		return &KernelError{Op: op, Task: task, Errno: errno}
	}

	return nil
}

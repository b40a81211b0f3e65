// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// variable to allow tests to modify it
var procMountPoint = procfs.DefaultMountPoint

// TaskComm returns the command name of a task as shown in /proc/<pid>/comm.
func TaskComm(pid int) (string, error) {
	fs, err := procfs.NewFS(procMountPoint)
	if err != nil {
		return "", err
	}

	proc, err := fs.Proc(pid)
	if err != nil {
		return "", err
	}

	return proc.Comm()
}

// DescribeTask returns a human readable name for pid, including its
// command name when it can be read.
func DescribeTask(pid int) string {
	if pid == 0 {
		return "the calling task"
	}

	comm, err := TaskComm(pid)
	if err != nil || comm == "" {
		return fmt.Sprintf("pid %d", pid)
	}

	return fmt.Sprintf("pid %d (%s)", pid, comm)
}

// SelfExecutable returns the path of the running binary.
func SelfExecutable() (string, error) {
	fs, err := procfs.NewFS(procMountPoint)
	if err != nil {
		return "", err
	}

	self, err := fs.Self()
	if err != nil {
		return "", err
	}

	return self.Executable()
}

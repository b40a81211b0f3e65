// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
	"golang.org/x/sys/unix"
)

// MinKernelVersion is the first kernel release with PR_SCHED_CORE.
const MinKernelVersion = "5.14.0"

// variables rather than consts to allow tests to modify them
var (
	smtActiveFile  = "/sys/devices/system/cpu/smt/active"
	smtControlFile = "/sys/devices/system/cpu/smt/control"

	uname = unix.Uname
)

// KernelVersion returns the release of the running kernel in a form
// suitable for FixKernelVersion.
func KernelVersion() (string, error) {
	var u unix.Utsname

	if err := uname(&u); err != nil {
		return "", err
	}

	return unix.ByteSliceToString(u.Release[:]), nil
}

// FixKernelVersion turns a kernel release into a valid semantic version.
//
// Distribution kernels use underscores (centos: 3.10.0-957.12.1.el7.x86_64)
// and self compiled kernels may carry a "+" suffix (5.12.0-rc4+). Both are
// rejected by semver, so underscores become dashes and "+" is removed. Two
// component releases such as "6.8" get a zero patch level.
func FixKernelVersion(version string) string {
	version = strings.Replace(version, "_", "-", -1)
	version = strings.Replace(version, "+", "", -1)

	core, rest, _ := strings.Cut(version, "-")
	if strings.Count(core, ".") == 1 {
		core += ".0"
	}

	if rest == "" {
		return core
	}

	return core + "-" + rest
}

// KernelVersionAtLeast reports whether the kernel release version is at
// least min.
func KernelVersionAtLeast(version, min string) (bool, error) {
	current, err := semver.Make(FixKernelVersion(version))
	if err != nil {
		return false, fmt.Errorf("kernel version %q is not a valid version: %v", version, err)
	}

	wanted, err := semver.Make(min)
	if err != nil {
		return false, err
	}

	// Pre-release and build data of a kernel release describe the
	// distribution build, not an older upstream version.
	current.Pre = nil
	current.Build = nil

	return current.GE(wanted), nil
}

// SMTState returns the contents of the SMT control file ("on", "off",
// "forceoff", "notsupported", "notimplemented") and whether SMT is active.
func SMTState() (control string, active bool, err error) {
	contents, err := GetFileContents(smtControlFile)
	if err != nil {
		return "", false, err
	}
	control = strings.TrimSpace(contents)

	contents, err = GetFileContents(smtActiveFile)
	if err != nil {
		return control, false, err
	}

	return control, strings.TrimSpace(contents) == "1", nil
}

// Copyright (c) 2019 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package testutils decides whether privileged or kernel dependent tests
// can run on the current host.
package testutils

import (
	"fmt"
	"os"
	"runtime"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
)

const (
	TestDisabledNeedRoot           = "Test disabled as requires root user"
	TestDisabledNeedNonRoot        = "Test disabled as requires non-root user"
	TestDisabledNeedCoreScheduling = "Test disabled as requires a kernel with core scheduling and SMT"
)

// Result is the outcome of a Constraint test
type Result struct {
	// Details of the constraint
	// (human-readable result of testing for a Constraint).
	Description string

	// true if constraint was valid
	Success bool
}

// Constraint checks one property of the host.
type Constraint func(tc *TestConstraint) Result

// TestConstraint records details about the host and the constraints
// checked against it.
type TestConstraint struct {
	KernelVersion string

	// Effective user ID of running test
	ActualEUID int

	// Used to record all passed and failed constraints in
	// human-readable form.
	Passed []Result
	Failed []Result

	Debug bool
}

// NewTestConstraint creates a new TestConstraint object and is the main
// interface to the test constraints feature.
func NewTestConstraint(debug bool) TestConstraint {
	kernelVersion, err := utils.KernelVersion()
	if err != nil {
		panic(err)
	}

	return TestConstraint{
		Debug:         debug,
		ActualEUID:    os.Geteuid(),
		KernelVersion: kernelVersion,
	}
}

// NotValid checks if the specified list of constraints are all valid,
// returning true if any _fail_. Constraints are applied in order and
// checking stops at the first failure.
func (tc *TestConstraint) NotValid(constraints ...Constraint) bool {
	if len(constraints) == 0 {
		panic("need atleast one constraint")
	}

	// Reset in case of a previous call
	tc.Passed = nil
	tc.Failed = nil

	for _, c := range constraints {
		result := c(tc)

		if tc.Debug {
			outcome := "invalid"
			if result.Success {
				outcome = "valid"
			}
			fmt.Printf("Constraint %s: %s\n", outcome, result.Description)
		}

		if !result.Success {
			tc.Failed = append(tc.Failed, result)
			return true
		}

		tc.Passed = append(tc.Passed, result)
	}

	return false
}

// NeedRoot skips the test unless running as root.
func NeedRoot() Constraint {
	return func(tc *TestConstraint) Result {
		return Result{
			Description: fmt.Sprintf("need uid == 0, got euid %d", tc.ActualEUID),
			Success:     tc.ActualEUID == 0,
		}
	}
}

// NeedNonRoot skips the test if running as the root user.
func NeedNonRoot() Constraint {
	return func(tc *TestConstraint) Result {
		return Result{
			Description: fmt.Sprintf("need uid != 0, got euid %d", tc.ActualEUID),
			Success:     tc.ActualEUID != 0,
		}
	}
}

// NeedKernelVersionGE skips the test unless the kernel is at least
// version.
func NeedKernelVersionGE(version string) Constraint {
	return func(tc *TestConstraint) Result {
		ok, err := utils.KernelVersionAtLeast(tc.KernelVersion, version)
		if err != nil {
			panic(fmt.Sprintf("%+v: failed to check test constraints: error: %s", tc, err))
		}

		return Result{
			Description: fmt.Sprintf("need kernel version >= %q, got version %q", version, tc.KernelVersion),
			Success:     ok,
		}
	}
}

// NeedCoreScheduling skips the test unless the kernel accepts
// PR_SCHED_CORE requests.
func NeedCoreScheduling() Constraint {
	return func(tc *TestConstraint) Result {
		result := Result{Description: "need core scheduling support"}

		if runtime.GOOS != "linux" {
			result.Description += ", got " + runtime.GOOS
			return result
		}

		if err := schedcore.Supported(schedcore.New()); err != nil {
			result.Description += ", got " + err.Error()
			return result
		}

		result.Success = true
		return result
	}
}

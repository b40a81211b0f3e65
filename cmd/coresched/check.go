// Copyright (c) 2017-2018 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/moby/sys/userns"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	checkCmd = "check"

	successMessageCapable = "System is capable of core scheduling"
	failMessage           = "System is not capable of core scheduling"
)

// variables to allow tests to modify them
var (
	kernelVersion   = utils.KernelVersion
	smtState        = utils.SMTState
	runningInUserNS = userns.RunningInUserNS
)

// hostIsCoreSchedCapable runs every check and returns all the failures.
func hostIsCoreSchedCapable(c schedcore.Capability) error {
	var result *multierror.Error

	version, err := kernelVersion()
	if err != nil {
		result = multierror.Append(result, errors.Wrap(err, "cannot determine kernel version"))
	} else {
		ok, err := utils.KernelVersionAtLeast(version, utils.MinKernelVersion)
		if err != nil {
			result = multierror.Append(result, err)
		} else if !ok {
			result = multierror.Append(result,
				fmt.Errorf("kernel version %s is older than %s", version, utils.MinKernelVersion))
		}
	}

	control, active, err := smtState()
	if err != nil {
		result = multierror.Append(result, errors.Wrap(err, "cannot determine SMT state"))
	} else if !active {
		result = multierror.Append(result, fmt.Errorf("SMT is not active (control: %s)", control))
	}

	if err := schedcore.Supported(c); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

var checkCLICommand = cli.Command{
	Name:  checkCmd,
	Usage: "tests if the system can use core scheduling",
	Action: func(context *cli.Context) error {
		if runningInUserNS() {
			coreschedLog.Warn("running in a user namespace: cookies of tasks outside it cannot be changed")
		}

		if err := hostIsCoreSchedCapable(capability); err != nil {
			return errors.Wrap(err, failMessage)
		}

		coreschedLog.Info(successMessageCapable)
		fmt.Fprintln(defaultOutputFile, successMessageCapable)

		return nil
	},
}

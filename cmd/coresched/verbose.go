// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
)

// describeTask is replaced by tests, which use pids that do not exist.
var describeTask = utils.DescribeTask

// reportCookie prints the cookie task ended up with when --verbose is set.
// Failing to read it back is only logged: the change itself succeeded.
func reportCookie(e *engine.Engine, task schedcore.Task) {
	if !verbose {
		return
	}

	cookie, err := e.Cookie(task)
	if err != nil {
		coreschedLog.WithError(err).WithField("pid", task).Warn("cannot read back cookie")
		return
	}

	fmt.Fprintf(defaultErrorFile, "set cookie of %s to %s\n", describeTask(int(task)), cookie)
}

// Copyright 2018 Intel Corporation.
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package signals handles the signals coresched cares about while it
// waits for a helper.
package signals

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

var signalLog = logrus.WithField("source", "signals")

// DieCb runs first when the program is about to exit because of a panic
// or a fatal signal.
type DieCb func()

// handledSignals lists the signals the package deals with. The value is
// true if receiving the signal should be fatal.
var handledSignals = map[syscall.Signal]bool{
	syscall.SIGHUP:  true,
	syscall.SIGINT:  true,
	syscall.SIGTERM: true,
	syscall.SIGUSR1: false,
}

// exit is overridden by tests.
var exit = os.Exit

// SetLogger sets the logger used by this package.
func SetLogger(logger *logrus.Entry) {
	signalLog = logger.WithField("source", "signals")
}

// FatalSignal returns true if sig should terminate the program.
func FatalSignal(sig syscall.Signal) bool {
	fatal, ok := handledSignals[sig]
	return ok && fatal
}

// NonFatalSignal returns true if sig should only produce a backtrace.
func NonFatalSignal(sig syscall.Signal) bool {
	fatal, ok := handledSignals[sig]
	return ok && !fatal
}

// HandledSignals returns the signals the package can deal with.
func HandledSignals() []os.Signal {
	var signals []os.Signal

	for sig := range handledSignals {
		signals = append(signals, sig)
	}

	return signals
}

// Backtrace writes the stacks of all goroutines to the logger, one line
// per entry.
func Backtrace() {
	buf := &bytes.Buffer{}

	// debug level 2 is the panic-style full dump
	pprof.Lookup("goroutine").WriteTo(buf, 2)

	for _, line := range strings.Split(buf.String(), "\n") {
		if line != "" {
			signalLog.Error(line)
		}
	}
}

// ExitStatus is the shell convention for a process killed by sig.
func ExitStatus(sig syscall.Signal) int {
	return 128 + int(sig)
}

// Die runs dieCb, logs a backtrace if requested and exits with status.
func Die(dieCb DieCb, backtrace bool, status int) {
	if dieCb != nil {
		dieCb()
	}

	if backtrace {
		Backtrace()
	}

	exit(status)
}

// HandlePanic logs a recovered panic and exits. It must be deferred.
func HandlePanic(dieCb DieCb) {
	if r := recover(); r != nil {
		signalLog.WithField("panic", fmt.Sprintf("%v", r)).Error("fatal error")
		Die(dieCb, true, 1)
	}
}

// Handle processes handled signals until ctx is done. Fatal signals make
// the program exit, SIGUSR1 logs a backtrace when debug returns true.
func Handle(ctx context.Context, debug func() bool, dieCb DieCb) {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, HandledSignals()...)

	go func() {
		defer signal.Stop(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sigCh:
				handle(s.(syscall.Signal), debug(), dieCb)
			}
		}
	}()
}

func handle(sig syscall.Signal, debug bool, dieCb DieCb) {
	logger := signalLog.WithField("signal", sig)

	if FatalSignal(sig) {
		logger.Error("received fatal signal")
		Die(dieCb, debug, ExitStatus(sig))
		return
	}

	if debug && NonFatalSignal(sig) {
		logger.Debug("handling signal")
		Backtrace()
	}
}

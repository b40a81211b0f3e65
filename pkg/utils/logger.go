// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"fmt"
	"log/syslog"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// Default our log level to 'Warn', rather than the logrus default
// of 'Info', which is rather noisy.
var originalLoggerLevel = logrus.WarnLevel
var utilsLogger = logrus.NewEntry(logrus.New())

// SetLogger sets the logger for the package. level is the log level to
// revert to once the configuration shows debug output is not wanted.
func SetLogger(logger *logrus.Entry, level logrus.Level) {
	fields := logrus.Fields{
		"source": "utils",
	}

	originalLoggerLevel = level
	utilsLogger = logger.WithFields(fields)
}

// sysLogHook wraps a syslog logrus hook and a formatter to be used for all
// syslog entries.
//
// This is necessary to allow the main logger (for "--log=") to use a custom
// formatter ("--log-format=") whilst allowing the system logger to use a
// different formatter.
type sysLogHook struct {
	shook     *lSyslog.SyslogHook
	formatter logrus.Formatter
}

func (h *sysLogHook) Levels() []logrus.Level {
	return h.shook.Levels()
}

// Fire is responsible for adding a log entry to the system log. It switches
// formatter before adding the system log entry, then reverts the original log
// formatter.
func (h *sysLogHook) Fire(e *logrus.Entry) (err error) {
	formatter := e.Logger.Formatter

	e.Logger.Formatter = h.formatter

	err = h.shook.Fire(e)

	e.Logger.Formatter = formatter

	return err
}

func newSystemLogHook(network, raddr string) (*sysLogHook, error) {
	hook, err := lSyslog.NewSyslogHook(network, raddr, syslog.LOG_INFO, name)
	if err != nil {
		return nil, err
	}

	return &sysLogHook{
		formatter: &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		},
		shook: hook,
	}, nil
}

// handleSystemLog sets up the system-level logger.
func handleSystemLog(network, raddr string) error {
	hook, err := newSystemLogHook(network, raddr)
	if err != nil {
		return err
	}

	utilsLogger.Logger.Hooks.Add(hook)

	return nil
}

// ConfigureLogger sends the entries of logger to the file at path using
// the named format ("text" or "json"). An empty path keeps the current
// output.
func ConfigureLogger(logger *logrus.Entry, path, format string) error {
	switch format {
	case "text", "":
		// retain logrus's default.
	case "json":
		logger.Logger.Formatter = new(logrus.JSONFormatter)
	default:
		return fmt.Errorf("unknown log-format %q", format)
	}

	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0640)
	if err != nil {
		return err
	}

	logger.Logger.Out = f

	return nil
}

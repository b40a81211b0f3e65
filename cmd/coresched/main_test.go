// Copyright (c) 2017 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator"
	omock "github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator/mock"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore/mock"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli"
)

func TestMain(m *testing.M) {
	// keep test runs out of the real configuration
	for _, v := range []string{"CORESCHED_DEBUG", "CORESCHED_VERBOSE", "CORESCHED_DEFAULT_TYPE",
		"CORESCHED_HELPER_PATH", "CORESCHED_ENABLE_SYSLOG", invocationEnv} {
		os.Unsetenv(v)
	}

	coreschedLog.Logger.Out = &bytes.Buffer{}

	os.Exit(m.Run())
}

type testEnv struct {
	capability *mock.Capability
	spawner    *omock.Spawner

	// sysConfig is the path of the first default configuration file.
	sysConfig string
}

// setupTest points the tool at c, an in-process spawner and a private
// configuration directory, restoring everything when t ends.
func setupTest(t *testing.T, c *mock.Capability) *testEnv {
	dir := t.TempDir()

	env := &testEnv{
		capability: c,
		spawner:    &omock.Spawner{Capability: c},
		sysConfig:  filepath.Join(dir, "sysconf.toml"),
	}

	savedDefault := defaultRuntimeConfiguration
	savedSysConf := defaultSysConfRuntimeConfiguration
	savedCapability := capability
	savedNewSpawner := newSpawner
	savedDescribeTask := describeTask
	savedOut := defaultOutputFile
	savedErr := defaultErrorFile
	savedExit := exitFunc
	savedLog := coreschedLog
	savedLevel := coreschedLog.Logger.Level

	t.Cleanup(func() {
		defaultRuntimeConfiguration = savedDefault
		defaultSysConfRuntimeConfiguration = savedSysConf
		capability = savedCapability
		newSpawner = savedNewSpawner
		describeTask = savedDescribeTask
		defaultOutputFile = savedOut
		defaultErrorFile = savedErr
		exitFunc = savedExit
		coreschedLog = savedLog
		coreschedLog.Logger.Level = savedLevel
		debug = false
		verbose = false
	})

	defaultRuntimeConfiguration = filepath.Join(dir, "default.toml")
	defaultSysConfRuntimeConfiguration = env.sysConfig
	capability = c
	newSpawner = func(*cli.Context, utils.Config) orchestrator.Spawner {
		return env.spawner
	}
	describeTask = func(pid int) string {
		return fmt.Sprintf("pid %d", pid)
	}

	return env
}

type result struct {
	stdout string
	stderr string
	status int
}

// run runs the tool the way main does and returns what it printed and
// the status it exited with.
func run(args ...string) result {
	var stdout, stderr bytes.Buffer

	defaultOutputFile = &stdout
	defaultErrorFile = &stderr

	status := exitSuccess
	exitFunc = func(s int) {
		status = s
	}

	err := createApp(context.Background(), append([]string{name}, args...))
	if err != nil {
		fatal(err)
	}

	return result{
		stdout: stdout.String(),
		stderr: stderr.String(),
		status: status,
	}
}

func TestExitStatus(t *testing.T) {
	assert := assert.New(t)

	type testData struct {
		err    error
		status int
	}

	data := []testData{
		{nil, exitSuccess},
		{engine.ErrMissingSource, exitUsage},
		{fmt.Errorf("wrapped: %w", engine.ErrMissingProgram), exitUsage},
		{&usageError{errors.New("bad flag")}, exitUsage},
		{errNoCookie, exitNoCookie},
		{fmt.Errorf("get: %w", errNoCookie), exitNoCookie},
		{&schedcore.KernelError{Op: schedcore.OpGet, Errno: syscall.EPERM}, exitFailure},
		{&orchestrator.CopyError{Phase: orchestrator.PhasePull, Status: 3}, exitFailure},
		{errors.New("anything"), exitFailure},
	}

	for i, d := range data {
		assert.Equal(d.status, exitStatus(d.err), "test %d (%+v)", i, d)
	}

	assert.NotEqual(exitStatus(errNoCookie), exitStatus(&schedcore.KernelError{Op: schedcore.OpGet, Errno: syscall.ESRCH}))
}

func TestMakeVersionString(t *testing.T) {
	assert := assert.New(t)

	savedVersion, savedCommit := version, commit
	defer func() {
		version, commit = savedVersion, savedCommit
	}()

	version = "1.2.3"
	commit = ""
	assert.Equal("coresched  : 1.2.3\n   commit   : <<unknown>>", makeVersionString())

	version = ""
	commit = "abcdef"
	assert.Equal("coresched  : <<unknown>>\n   commit   : abcdef", makeVersionString())
}

func TestUserWantsUsage(t *testing.T) {
	assert := assert.New(t)

	type testData struct {
		arguments []string
		expected  bool
	}

	data := []testData{
		{[]string{}, true},
		{[]string{"help"}, true},
		{[]string{"version"}, true},
		{[]string{"get", "-h"}, true},
		{[]string{"get", "--help"}, true},
		{[]string{"get"}, false},
		{[]string{"get", "-p", "1"}, false},
	}

	for i, d := range data {
		app := cli.NewApp()
		set := newFlagSet(t, d.arguments)
		ctx := cli.NewContext(app, set, nil)

		assert.Equal(d.expected, userWantsUsage(ctx), "test %d (%+v)", i, d)
	}
}

func TestFatalWriter(t *testing.T) {
	assert := assert.New(t)

	logBuf := &bytes.Buffer{}
	savedLog := coreschedLog
	defer func() {
		coreschedLog = savedLog
	}()

	logger := logrus.New()
	logger.Out = logBuf
	coreschedLog = logrus.NewEntry(logger)

	out := &bytes.Buffer{}
	w := &fatalWriter{out}

	n, err := w.Write([]byte("boom"))
	assert.NoError(err)
	assert.Equal(4, n)
	assert.Equal("boom", out.String())
	assert.Contains(logBuf.String(), "boom")
}

func TestCLIContextToContext(t *testing.T) {
	assert := assert.New(t)

	_, err := cliContextToContext(nil)
	assert.Error(err)

	app := cli.NewApp()
	app.Metadata = map[string]interface{}{}
	ctx := cli.NewContext(app, nil, nil)

	_, err = cliContextToContext(ctx)
	assert.Error(err)

	app.Metadata["context"] = context.Background()
	got, err := cliContextToContext(ctx)
	assert.NoError(err)
	assert.Equal(context.Background(), got)
}

func TestShowDefaultConfigPaths(t *testing.T) {
	assert := assert.New(t)

	env := setupTest(t, mock.New(nil))

	r := run("--" + showConfigPathsOption)
	assert.Equal(exitSuccess, r.status)
	assert.Contains(r.stdout, env.sysConfig)
	assert.Contains(r.stdout, defaultRuntimeConfiguration)
}

func TestUnknownCommand(t *testing.T) {
	assert := assert.New(t)

	setupTest(t, mock.New(nil))

	r := run("frobnicate")
	assert.Equal(exitUsage, r.status)
	assert.Contains(r.stderr, "Unknown command 'frobnicate'")
}

func TestBadLogFormat(t *testing.T) {
	assert := assert.New(t)

	setupTest(t, mock.New(nil))

	r := run("--log-format", "yaml", "get", "-p", "1")
	assert.Equal(exitFailure, r.status)
	assert.Contains(r.stderr, "unknown log-format")
}

func TestGlobalFlagNames(t *testing.T) {
	assert := assert.New(t)

	seen := map[string]bool{}
	for _, f := range append(append([]cli.Flag{}, coreschedFlags...), versionFlag, cli.HelpFlag) {
		for _, n := range strings.Split(f.GetName(), ",") {
			n = strings.TrimSpace(n)
			assert.False(seen[n], "flag %q defined twice", n)
			seen[n] = true
		}
	}
}

func TestVersionFlag(t *testing.T) {
	assert := assert.New(t)

	setupTest(t, mock.New(map[schedcore.Task]schedcore.Cookie{1234: 0xABCD}))

	savedPrinter := cli.VersionPrinter
	defer func() {
		cli.VersionPrinter = savedPrinter
	}()

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(defaultOutputFile, c.App.Version)
	}

	r := run("--version")
	assert.Equal(exitSuccess, r.status)
	assert.Contains(r.stdout, "coresched  : ")

	// -v is --verbose, not --version
	r = run("-v", "get", "-p", "1234")
	assert.Equal(exitSuccess, r.status)
	assert.Equal("cookie of pid 1234 is 0xabcd\n", r.stdout)

	r = run("--help")
	assert.Equal(exitSuccess, r.status)
	assert.Contains(r.stdout, "--verbose, -v")
}

func TestVersionCommand(t *testing.T) {
	assert := assert.New(t)

	setupTest(t, mock.New(nil))

	savedPrinter := cli.VersionPrinter
	defer func() {
		cli.VersionPrinter = savedPrinter
	}()

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(defaultOutputFile, c.App.Version)
	}

	r := run("version")
	assert.Equal(exitSuccess, r.status)
	assert.Contains(r.stdout, "coresched  : ")
	assert.Contains(r.stdout, "commit")
}

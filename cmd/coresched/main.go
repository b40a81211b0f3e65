// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017-2018 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/engine"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/orchestrator"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/signals"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	name    = "coresched"
	project = "Kata Containers"
	unknown = "<<unknown>>"

	configFilePathOption  = "config"
	showConfigPathsOption = "show-default-config-paths"

	// invocationEnv carries the invocation id from a parent to its helper.
	invocationEnv = "CORESCHED_INVOCATION_ID"
)

// Exit statuses. Usage errors follow sysexits.h. A task without a cookie
// has its own status so scripts can tell it apart from a failure.
const (
	exitSuccess  = 0
	exitNoCookie = 1
	exitFailure  = 2
	exitUsage    = 64
)

// arch is the architecture for the running program
const arch = goruntime.GOARCH

// version and commit are set at build time.
var (
	version = "0.1.0"
	commit  = ""
)

// variables rather than consts to allow tests to modify them
var (
	defaultRuntimeConfiguration        = "/usr/share/defaults/coresched/configuration.toml"
	defaultSysConfRuntimeConfiguration = "/etc/coresched/configuration.toml"
)

var usage = fmt.Sprintf(`manage core scheduling cookies for tasks

%s gets, creates and copies the cookies the Linux kernel uses to decide
which tasks may run on the SMT siblings of the same core, and starts
programs with a cookie already set.`, name)

var notes = fmt.Sprintf(`
NOTES:

- The default pid type is pgid; it can be changed in the configuration file
  or with CORESCHED_DEFAULT_TYPE.
- "copy" and "exec" run a helper copy of %s, which needs the same
  privileges as the tool itself (CAP_SYS_NICE for tasks of other users).

`, name)

// coreschedLog is the logger used to record all messages
var coreschedLog *logrus.Entry

// originalLoggerLevel is the default log level. It is used to revert the
// current log level back to its original value if debug output is not
// required.
var originalLoggerLevel logrus.Level

var debug = false

// verbose prints a diagnostic line for every cookie change.
var verbose = false

// capability is the kernel interface. Tests replace it with a mock.
var capability = schedcore.New()

// newSpawner returns the spawner used for copy and exec helpers. Tests
// replace it with an in-process spawner.
var newSpawner = processSpawner

// defaultOutputFile is where command output is written.
var defaultOutputFile io.Writer = os.Stdout

// defaultErrorFile is where error messages and diagnostics are written.
var defaultErrorFile io.Writer = os.Stderr

// errNoCookie is returned by get when the task has no cookie. The message
// has already been printed.
var errNoCookie = errors.New("no core scheduling cookie")

var coreschedFlags = []cli.Flag{
	cli.StringFlag{
		Name:  configFilePathOption,
		Usage: name + " config file path",
	},
	cli.StringFlag{
		Name:  "log",
		Value: "/dev/null",
		Usage: "set the log file path where internal debug information is written",
	},
	cli.StringFlag{
		Name:  "log-format",
		Value: "text",
		Usage: "set the format used by logs ('text' (default), or 'json')",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug output in the log",
	},
	cli.BoolFlag{
		Name:  "verbose, v",
		Usage: "print a line on stderr for every cookie change",
	},
	cli.BoolFlag{
		Name:  showConfigPathsOption,
		Usage: "show config file paths that will be checked for (in order)",
	},
}

// versionFlag replaces the "version, v" flag cli adds when the app has a
// version, as -v is --verbose.
var versionFlag = cli.BoolFlag{
	Name:  "version",
	Usage: "print the version",
}

var coreschedCommands = []cli.Command{
	getCLICommand,
	createCLICommand,
	copyCLICommand,
	execCLICommand,
	checkCLICommand,
	envCLICommand,
	versionCLICommand,
	helperCLICommand,
}

func init() {
	coreschedLog = logrus.WithFields(logrus.Fields{
		"name":   name,
		"source": "coresched",
		"arch":   arch,
		"pid":    os.Getpid(),
	})

	// Log everything until the configuration says otherwise, so problems
	// found before it is parsed are not lost.
	originalLoggerLevel = coreschedLog.Logger.Level
	coreschedLog.Logger.Level = logrus.DebugLevel
}

// usageError is a command line that cannot be turned into a command.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func onUsageError(c *cli.Context, err error, isSubcommand bool) error {
	return &usageError{err}
}

// exitStatus maps the error of a command to the exit status of the tool.
func exitStatus(err error) int {
	if err == nil {
		return exitSuccess
	}

	var validationErr *engine.ValidationError
	var usageErr *usageError

	if errors.As(err, &validationErr) || errors.As(err, &usageErr) {
		return exitUsage
	}

	if errors.Is(err, errNoCookie) {
		return exitNoCookie
	}

	return exitFailure
}

func setupSignalHandler(ctx context.Context) {
	signals.SetLogger(coreschedLog)

	signals.Handle(ctx, func() bool { return debug }, nil)
}

// setExternalLoggers registers the specified logger with the packages
// that accept one.
func setExternalLoggers(logger *logrus.Entry) {
	engine.SetLogger(logger)
	orchestrator.SetLogger(logger)
	signals.SetLogger(logger)
	utils.SetLogger(logger, originalLoggerLevel)
}

// beforeSubcommands sets up logging and loads the configuration before
// the subcommand runs.
func beforeSubcommands(c *cli.Context) error {
	handleShowConfig(c)

	if userWantsUsage(c) {
		return nil
	}

	err := utils.ConfigureLogger(coreschedLog, c.GlobalString("log"), c.GlobalString("log-format"))
	if err != nil {
		return err
	}

	invocation := os.Getenv(invocationEnv)
	if invocation == "" {
		invocation = uuid.New().String()
	}

	coreschedLog = coreschedLog.WithField("invocation", invocation)

	// Add the name of the sub-command to each log entry for easier
	// debugging.
	cmdName := c.Args().First()
	if c.App.Command(cmdName) != nil {
		coreschedLog = coreschedLog.WithField("command", cmdName)
	}

	setExternalLoggers(coreschedLog)

	utils.SetConfigOptions(name, defaultRuntimeConfiguration, defaultSysConfRuntimeConfiguration)

	configFile, config, err := utils.LoadConfiguration(c.GlobalString(configFilePathOption))
	if err != nil {
		return err
	}

	debug = config.Runtime.Debug || c.GlobalBool("debug")
	if debug {
		coreschedLog.Logger.Level = logrus.DebugLevel
	}

	verbose = config.Coresched.Verbose || c.GlobalBool("verbose")

	coreschedLog.WithFields(logrus.Fields{
		"version":   version,
		"commit":    commit,
		"arguments": `"` + strings.Join(c.Args(), " ") + `"`,
	}).Info()

	// make the data accessible to the sub-commands.
	c.App.Metadata["config"] = config
	c.App.Metadata["configFile"] = configFile
	c.App.Metadata["invocation"] = invocation

	return nil
}

// handleShowConfig determines if the user wishes to see the configuration
// paths. If so, it will display them and then exit.
func handleShowConfig(context *cli.Context) {
	if context.GlobalBool(showConfigPathsOption) {
		utils.SetConfigOptions(name, defaultRuntimeConfiguration, defaultSysConfRuntimeConfiguration)

		for _, file := range utils.GetDefaultConfigFilePaths() {
			fmt.Fprintf(defaultOutputFile, "%s\n", file)
		}

		exit(0)
	}
}

// function called when an invalid command is specified which causes the
// tool to error.
func commandNotFound(c *cli.Context, command string) {
	fatal(&usageError{fmt.Errorf("Unknown command '%s'", command)})
}

// makeVersionString returns a multi-line string describing the version of
// the tool.
func makeVersionString() string {
	versionStr := version
	if versionStr == "" {
		versionStr = unknown
	}

	commitStr := commit
	if commitStr == "" {
		commitStr = unknown
	}

	return strings.Join([]string{
		name + "  : " + versionStr,
		"   commit   : " + commitStr,
	}, "\n")
}

// setCLIGlobals modifies various cli package global variables
func setCLIGlobals() {
	cli.AppHelpTemplate = fmt.Sprintf(`%s%s`, cli.AppHelpTemplate, notes)

	// Override the default function to display version details to
	// ensure the "--version" option and "version" command are identical.
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(defaultOutputFile, c.App.Version)
	}

	// Use our own writer to ensure the log gets sent to the right
	// location.
	cli.ErrWriter = &fatalWriter{cli.ErrWriter}
}

// createApp creates an application to process the command-line arguments
// and invoke the requested command.
func createApp(ctx context.Context, args []string) error {
	cli.VersionFlag = versionFlag

	app := cli.NewApp()

	app.Name = name
	app.Writer = defaultOutputFile
	app.Usage = usage
	app.CommandNotFound = commandNotFound
	app.OnUsageError = onUsageError
	app.Version = makeVersionString()
	app.Flags = coreschedFlags
	app.Commands = coreschedCommands
	app.Before = beforeSubcommands
	app.EnableBashCompletion = true

	// allow sub-commands to access context
	app.Metadata = map[string]interface{}{
		"context": ctx,
	}

	return app.Run(args)
}

// userWantsUsage determines if the user only wishes to see the usage
// statement.
func userWantsUsage(context *cli.Context) bool {
	if context.NArg() == 0 {
		return true
	}

	if context.NArg() == 1 && (context.Args()[0] == "help" || context.Args()[0] == "version") {
		return true
	}

	if context.NArg() >= 2 && (context.Args()[1] == "-h" || context.Args()[1] == "--help") {
		return true
	}

	return false
}

// fatal prints the error's details and exits the program with the status
// for err.
func fatal(err error) {
	coreschedLog.Error(err)

	if !errors.Is(err, errNoCookie) {
		fmt.Fprintf(defaultErrorFile, "%s: %v\n", name, err)
	}

	exit(exitStatus(err))
}

type fatalWriter struct {
	cliErrWriter io.Writer
}

func (f *fatalWriter) Write(p []byte) (n int, err error) {
	// Ensure error is logged before displaying to the user
	coreschedLog.Error(string(p))
	return f.cliErrWriter.Write(p)
}

func createCoresched(ctx context.Context) {
	setupSignalHandler(ctx)

	setCLIGlobals()

	err := createApp(ctx, os.Args)
	if err != nil {
		fatal(err)
	}
}

// cliContextToContext extracts the generic context from the specified
// cli context.
func cliContextToContext(c *cli.Context) (context.Context, error) {
	if c == nil {
		return nil, errors.New("need cli.Context")
	}

	// extract the main context
	ctx, ok := c.App.Metadata["context"].(context.Context)
	if !ok {
		return nil, errors.New("invalid or missing context in metadata")
	}

	return ctx, nil
}

// getConfig returns the configuration loaded by beforeSubcommands.
func getConfig(c *cli.Context) (utils.Config, error) {
	config, ok := c.App.Metadata["config"].(utils.Config)
	if !ok {
		return utils.Config{}, errors.New("cannot determine configuration")
	}

	return config, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	atexit(cancel)

	defer signals.HandlePanic(nil)

	createCoresched(ctx)
	exit(exitSuccess)
}

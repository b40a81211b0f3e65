// Copyright (c) 2017-2018 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/urfave/cli"
)

const envCmd = "env"

// Semantic version for the output of the command.
//
// XXX: Increment for every change to the output format
// (meaning any change to the EnvInfo type).
const formatVersion = "1.0.0"

// MetaInfo stores information on the format of the output itself
type MetaInfo struct {
	// output format version
	Version string
}

// VersionInfo stores details of the tool version
type VersionInfo struct {
	Semver string
	Commit string
}

// ConfigInfo stores config file details.
type ConfigInfo struct {
	Path string
}

// RuntimeInfo stores details of the running tool.
type RuntimeInfo struct {
	Version VersionInfo
	Config  ConfigInfo
	Path    string
	Debug   bool
}

// CoreschedInfo stores the cookie command defaults.
type CoreschedInfo struct {
	DefaultType string
	HelperPath  string
	Verbose     bool
}

// HostInfo stores host details
type HostInfo struct {
	Kernel         string
	Architecture   string
	SMTControl     string
	SMTActive      bool
	UserNamespace  bool
	CoreScheduling bool
}

// EnvInfo collects all information that will be displayed by the
// env command.
//
// XXX: Any changes must be coupled with a change to formatVersion.
type EnvInfo struct {
	Meta      MetaInfo
	Runtime   RuntimeInfo
	Coresched CoreschedInfo
	Host      HostInfo
}

func getMetaInfo() MetaInfo {
	return MetaInfo{
		Version: formatVersion,
	}
}

func getRuntimeInfo(configFile string, config utils.Config) RuntimeInfo {
	// not fatal: env is a diagnostic command
	path, _ := utils.SelfExecutable()

	return RuntimeInfo{
		Version: VersionInfo{
			Semver: version,
			Commit: commit,
		},
		Config: ConfigInfo{
			Path: configFile,
		},
		Path:  path,
		Debug: config.Runtime.Debug,
	}
}

func getCoreschedInfo(config utils.Config) CoreschedInfo {
	helper := config.Coresched.HelperPath
	if helper == "" {
		helper = "/proc/self/exe"
	}

	return CoreschedInfo{
		DefaultType: config.Coresched.DefaultType.String(),
		HelperPath:  helper,
		Verbose:     config.Coresched.Verbose,
	}
}

func getHostInfo() (HostInfo, error) {
	hostKernelVersion, err := kernelVersion()
	if err != nil {
		return HostInfo{}, err
	}

	// a missing SMT interface is reported as inactive
	control, active, _ := smtState()

	return HostInfo{
		Kernel:         hostKernelVersion,
		Architecture:   arch,
		SMTControl:     control,
		SMTActive:      active,
		UserNamespace:  runningInUserNS(),
		CoreScheduling: hostIsCoreSchedCapable(capability) == nil,
	}, nil
}

func getEnvInfo(configFile string, config utils.Config) (env EnvInfo, err error) {
	host, err := getHostInfo()
	if err != nil {
		return EnvInfo{}, err
	}

	env = EnvInfo{
		Meta:      getMetaInfo(),
		Runtime:   getRuntimeInfo(configFile, config),
		Coresched: getCoreschedInfo(config),
		Host:      host,
	}

	return env, nil
}

func showSettings(env EnvInfo, file io.Writer, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		return encoder.Encode(env)
	}

	return toml.NewEncoder(file).Encode(env)
}

func handleSettings(file io.Writer, c *cli.Context) error {
	if file == nil {
		return errors.New("Invalid output file specified")
	}

	configFile, ok := c.App.Metadata["configFile"].(string)
	if !ok {
		return errors.New("cannot determine config file")
	}

	config, err := getConfig(c)
	if err != nil {
		return err
	}

	env, err := getEnvInfo(configFile, config)
	if err != nil {
		return err
	}

	return showSettings(env, file, c.Bool("json"))
}

var envCLICommand = cli.Command{
	Name:  envCmd,
	Usage: "display settings",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "Format output as JSON",
		},
	},
	Action: func(context *cli.Context) error {
		return handleSettings(defaultOutputFile, context)
	},
}

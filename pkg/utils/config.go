// Copyright (c) 2018-2021 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/sirupsen/logrus"
)

// name of the tool, used for logging and the config file locations.
var name = "coresched"

// variables rather than consts to allow tests and the build to modify them
var (
	defaultRuntimeConfiguration        = "/usr/share/defaults/coresched/configuration.toml"
	defaultSysConfRuntimeConfiguration = "/etc/coresched/configuration.toml"
)

// Config is the tool configuration. The TOML file has two tables:
//
//	[runtime]    logging related settings
//	[coresched]  defaults for the cookie commands
//
// Every setting can also be overridden from the environment, see the env
// struct tags.
type Config struct {
	Runtime   RuntimeConfig   `toml:"runtime" json:"Runtime"`
	Coresched CoreschedConfig `toml:"coresched" json:"Coresched"`
}

// RuntimeConfig holds the [runtime] table.
type RuntimeConfig struct {
	Debug        bool `toml:"debug" json:"Debug" env:"CORESCHED_DEBUG"`
	EnableSyslog bool `toml:"enable_syslog" json:"EnableSyslog" env:"CORESCHED_ENABLE_SYSLOG"`
}

// CoreschedConfig holds the [coresched] table.
type CoreschedConfig struct {
	// DefaultType is used when -t/--type is not given.
	DefaultType schedcore.PidType `toml:"default_type" json:"DefaultType" env:"CORESCHED_DEFAULT_TYPE"`

	// HelperPath is the binary re-executed as the helper process for copy
	// and exec. Empty means the running binary.
	HelperPath string `toml:"helper_path" json:"HelperPath" env:"CORESCHED_HELPER_PATH"`

	// Verbose prints a diagnostic line for every cookie change.
	Verbose bool `toml:"verbose" json:"Verbose" env:"CORESCHED_VERBOSE"`
}

// DefaultConfig returns the built-in configuration used when no file is
// found.
func DefaultConfig() Config {
	return Config{
		Coresched: CoreschedConfig{
			DefaultType: schedcore.DefaultPidType,
		},
	}
}

// GetDefaultConfigFilePaths returns a list of paths that will be
// considered as configuration files in priority order.
func GetDefaultConfigFilePaths() []string {
	return []string{
		// normally below "/etc"
		defaultSysConfRuntimeConfiguration,

		// normally below "/usr/share"
		defaultRuntimeConfiguration,
	}
}

// SetConfigOptions will override some of the defaults settings.
func SetConfigOptions(n, runtimeConfig, sysRuntimeConfig string) {
	if n != "" {
		name = n
	}

	if runtimeConfig != "" {
		defaultRuntimeConfiguration = runtimeConfig
	}

	if sysRuntimeConfig != "" {
		defaultSysConfRuntimeConfiguration = sysRuntimeConfig
	}
}

// getDefaultConfigFile returns the first default config file that exists.
// An empty path with no error means none of them do.
func getDefaultConfigFile() (string, error) {
	var errs []string

	for _, file := range GetDefaultConfigFilePaths() {
		resolved, err := ResolvePath(file)
		if err == nil {
			return resolved, nil
		}

		if !FileExists(file) {
			continue
		}

		s := fmt.Sprintf("config file %q unresolvable: %v", file, err)
		errs = append(errs, s)
	}

	if len(errs) > 0 {
		return "", errors.New(strings.Join(errs, ", "))
	}

	return "", nil
}

func decodeConfig(configPath string, config *Config) (string, error) {
	var (
		resolved string
		err      error
	)

	if configPath == "" {
		resolved, err = getDefaultConfigFile()
	} else {
		resolved, err = ResolvePath(configPath)
	}

	if err != nil {
		return "", fmt.Errorf("Cannot find usable config file (%v)", err)
	}

	if resolved == "" {
		return "", nil
	}

	configData, err := os.ReadFile(resolved)
	if err != nil {
		return resolved, err
	}

	md, err := toml.Decode(string(configData), config)
	if err != nil {
		return resolved, err
	}

	for _, key := range md.Undecoded() {
		utilsLogger.WithFields(logrus.Fields{
			"file": resolved,
			"key":  key.String(),
		}).Warn("ignoring unknown configuration key")
	}

	return resolved, nil
}

// LoadConfiguration loads the configuration file, applies environment
// overrides and returns the path of the file that was used, which is
// empty if the built-in defaults were used.
//
// If configPath is set it must exist, otherwise the default locations are
// tried in order.
func LoadConfiguration(configPath string) (resolvedConfigPath string, config Config, err error) {
	config = DefaultConfig()

	resolved, err := decodeConfig(configPath, &config)
	if err != nil {
		return "", config, err
	}

	if err := env.Parse(&config.Runtime); err != nil {
		return resolved, config, fmt.Errorf("parse env: %w", err)
	}

	if err := env.Parse(&config.Coresched); err != nil {
		return resolved, config, fmt.Errorf("parse env: %w", err)
	}

	if !config.Runtime.Debug {
		// If debug is not required, switch back to the original
		// default log priority, otherwise continue in debug mode.
		utilsLogger.Logger.Level = originalLoggerLevel
	}

	if config.Runtime.EnableSyslog {
		if err := handleSystemLog("", ""); err != nil {
			return resolved, config, err
		}
	}

	if err := checkConfig(config); err != nil {
		return resolved, config, err
	}

	format := "TOML"
	if resolved == "" {
		format = "builtin"
	}

	utilsLogger.WithFields(logrus.Fields{
		"format": format,
		"file":   resolved,
	}).Info("loaded configuration")

	return resolved, config, nil
}

func checkConfig(config Config) error {
	if !config.Coresched.DefaultType.Valid() {
		return fmt.Errorf("invalid default_type %d", int(config.Coresched.DefaultType))
	}

	if path := config.Coresched.HelperPath; path != "" {
		resolved, err := ResolvePath(path)
		if err != nil {
			return fmt.Errorf("invalid helper_path: %v", err)
		}

		st, err := os.Stat(resolved)
		if err != nil {
			return err
		}

		if st.IsDir() || st.Mode().Perm()&0111 == 0 {
			return fmt.Errorf("helper_path %q is not an executable file", path)
		}
	}

	return nil
}

// Copyright (c) 2017 Intel Corporation
// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/schedcore/mock"
	"github.com/kata-containers/kata-containers/src/tools/coresched/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestGetCoreschedInfo(t *testing.T) {
	assert := assert.New(t)

	config := utils.DefaultConfig()
	info := getCoreschedInfo(config)
	assert.Equal("pgid", info.DefaultType)
	assert.Equal("/proc/self/exe", info.HelperPath)
	assert.False(info.Verbose)

	config.Coresched.DefaultType = schedcore.Pid
	config.Coresched.HelperPath = "/usr/bin/coresched"
	config.Coresched.Verbose = true

	info = getCoreschedInfo(config)
	assert.Equal("pid", info.DefaultType)
	assert.Equal("/usr/bin/coresched", info.HelperPath)
	assert.True(info.Verbose)
}

func TestEnvCommandTOML(t *testing.T) {
	assert := assert.New(t)

	env := setupTest(t, mock.New(nil))
	setHost(t, hostDetails{kernel: "6.6.0", smtControl: "on", smtActive: true})

	err := os.WriteFile(env.sysConfig, []byte("[runtime]\ndebug = true\n"), 0640)
	assert.NoError(err)

	r := run("env")
	assert.Equal(exitSuccess, r.status)

	var info EnvInfo
	_, err = toml.Decode(r.stdout, &info)
	assert.NoError(err)

	assert.Equal(formatVersion, info.Meta.Version)
	assert.Equal(version, info.Runtime.Version.Semver)
	assert.Equal(env.sysConfig, info.Runtime.Config.Path)
	assert.True(info.Runtime.Debug)
	assert.Equal("pgid", info.Coresched.DefaultType)
	assert.Equal("6.6.0", info.Host.Kernel)
	assert.Equal(arch, info.Host.Architecture)
	assert.Equal("on", info.Host.SMTControl)
	assert.True(info.Host.SMTActive)
	assert.True(info.Host.CoreScheduling)
}

func TestEnvCommandJSON(t *testing.T) {
	assert := assert.New(t)

	setupTest(t, mock.New(nil))
	setHost(t, hostDetails{kernel: "5.10.0", smtControl: "off", userns: true})

	r := run("env", "--json")
	assert.Equal(exitSuccess, r.status)

	var info EnvInfo
	assert.NoError(json.Unmarshal([]byte(r.stdout), &info))

	assert.Empty(info.Runtime.Config.Path)
	assert.False(info.Runtime.Debug)
	assert.False(info.Host.SMTActive)
	assert.True(info.Host.UserNamespace)
	assert.False(info.Host.CoreScheduling)
}

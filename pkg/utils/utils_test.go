// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testFileMode = os.FileMode(0640)

func TestFileExists(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "foo")

	assert.False(FileExists(file))

	err := os.WriteFile(file, []byte(""), testFileMode)
	assert.NoError(err)

	assert.True(FileExists(file))
}

func TestResolvePath(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	// TempDir may itself live below a symlink
	dir, err := filepath.EvalSymlinks(dir)
	assert.NoError(err)

	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")

	err = os.WriteFile(target, []byte("x"), testFileMode)
	assert.NoError(err)
	err = os.Symlink(target, link)
	assert.NoError(err)

	_, err = ResolvePath("")
	assert.Error(err)

	resolved, err := ResolvePath(link)
	assert.NoError(err)
	assert.Equal(target, resolved)

	_, err = ResolvePath(filepath.Join(dir, "missing"))
	assert.Error(err)
	assert.Contains(err.Error(), "does not exist")
}

func TestGetFileContents(t *testing.T) {
	assert := assert.New(t)

	file := filepath.Join(t.TempDir(), "contents")

	_, err := GetFileContents(file)
	assert.Error(err)

	err = os.WriteFile(file, []byte("hello\n"), testFileMode)
	assert.NoError(err)

	contents, err := GetFileContents(file)
	assert.NoError(err)
	assert.Equal("hello\n", contents)
}

// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package schedcore

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePidType(t *testing.T) {
	assert := assert.New(t)

	type testData struct {
		value       string
		expected    PidType
		expectError bool
	}

	data := []testData{
		{"pid", Pid, false},
		{"tgid", ThreadGroup, false},
		{"pgid", ProcessGroup, false},
		{"", 0, true},
		{"PID", 0, true},
		{"pgid ", 0, true},
		{"sid", 0, true},
	}

	for i, d := range data {
		got, err := ParsePidType(d.value)
		if d.expectError {
			assert.Error(err, "test %d (%+v)", i, d)
			continue
		}

		assert.NoError(err, "test %d (%+v)", i, d)
		assert.Equal(d.expected, got, "test %d (%+v)", i, d)
		assert.Equal(d.value, got.String())
	}
}

func TestParsePidTypeErrorMessage(t *testing.T) {
	_, err := ParsePidType("foo")
	assert.EqualError(t, err, "'foo' is an invalid option. Must be one of pid/tgid/pgid")
}

func TestPidTypeValid(t *testing.T) {
	assert := assert.New(t)

	assert.True(Pid.Valid())
	assert.True(ThreadGroup.Valid())
	assert.True(ProcessGroup.Valid())
	assert.False(PidType(3).Valid())
	assert.False(PidType(-1).Valid())
	assert.Equal("PidType(7)", PidType(7).String())
	assert.Equal(ProcessGroup, DefaultPidType)
}

func TestParseTask(t *testing.T) {
	assert := assert.New(t)

	type testData struct {
		value    string
		expected Task
		errMsg   string
	}

	data := []testData{
		{"0", 0, ""},
		{"1234", 1234, ""},
		{"-1", 0, "PID -1 cannot be negative"},
		{"", 0, "Failed to parse pid "},
		{"12ab", 0, "Failed to parse pid 12ab"},
		{"0x10", 0, "Failed to parse pid 0x10"},
		{"99999999999", 0, "Failed to parse pid 99999999999"},
	}

	for i, d := range data {
		got, err := ParseTask(d.value)
		if d.errMsg != "" {
			assert.EqualError(err, d.errMsg, "test %d (%+v)", i, d)
			continue
		}

		assert.NoError(err, "test %d (%+v)", i, d)
		assert.Equal(d.expected, got, "test %d (%+v)", i, d)
	}
}

func TestCookieString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("0x0", Cookie(0).String())
	assert.Equal("0xabcd", Cookie(0xABCD).String())
}

func TestKernelErrorMessages(t *testing.T) {
	assert := assert.New(t)

	type testData struct {
		op       string
		expected string
	}

	data := []testData{
		{OpGet, "failed to get cookie of pid 7: operation not permitted"},
		{OpCreate, "failed to create cookie for pid 7: operation not permitted"},
		{OpPull, "failed to pull cookie from pid 7: operation not permitted"},
		{OpPush, "failed to push cookie to pid 7: operation not permitted"},
	}

	for i, d := range data {
		err := &KernelError{Op: d.op, Task: 7, Errno: syscall.EPERM}
		assert.Equal(d.expected, err.Error(), "test %d (%+v)", i, d)
	}
}

func TestKernelError(t *testing.T) {
	assert := assert.New(t)

	err := error(&KernelError{Op: OpPull, Task: 10, Errno: syscall.ESRCH})

	assert.Equal("failed to pull cookie from pid 10: no such process", err.Error())
	assert.True(errors.Is(err, syscall.ESRCH))

	var kerr *KernelError
	assert.True(errors.As(err, &kerr))
	assert.Equal(Task(10), kerr.Task)
}

type probe struct {
	err error
}

func (p probe) GetCookie(Task) (Cookie, error)  { return 0, p.err }
func (p probe) CreateCookie(Task, PidType) error { return nil }
func (p probe) PullCookie(Task) error            { return nil }
func (p probe) PushCookie(Task, PidType) error   { return nil }

func TestSupported(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Supported(probe{}))

	err := Supported(probe{&KernelError{Op: OpGet, Errno: syscall.EINVAL}})
	assert.Error(err)
	assert.Contains(err.Error(), "does not support core scheduling")

	err = Supported(probe{&KernelError{Op: OpGet, Errno: syscall.ENODEV}})
	assert.Error(err)
	assert.Contains(err.Error(), "SMT")

	err = Supported(probe{&KernelError{Op: OpGet, Errno: syscall.EPERM}})
	assert.True(errors.Is(err, syscall.EPERM))
}

func TestPidTypeText(t *testing.T) {
	assert := assert.New(t)

	var pt PidType
	assert.NoError(pt.UnmarshalText([]byte("tgid")))
	assert.Equal(ThreadGroup, pt)

	assert.Error(pt.UnmarshalText([]byte("bogus")))
	assert.Equal(ThreadGroup, pt, "failed unmarshal must not modify the value")

	b, err := ProcessGroup.MarshalText()
	assert.NoError(err)
	assert.Equal("pgid", string(b))

	_, err = PidType(9).MarshalText()
	assert.Error(err)
}

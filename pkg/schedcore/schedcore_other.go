// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

//go:build !linux

package schedcore

type unsupported struct{}

// New returns a Capability whose operations always fail with
// ErrNotSupported.
func New() Capability {
	return unsupported{}
}

func (unsupported) GetCookie(task Task) (Cookie, error) {
	return 0, ErrNotSupported
}

func (unsupported) CreateCookie(task Task, t PidType) error {
	return ErrNotSupported
}

func (unsupported) PullCookie(source Task) error {
	return ErrNotSupported
}

func (unsupported) PushCookie(dest Task, t PidType) error {
	return ErrNotSupported
}

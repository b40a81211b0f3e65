// Copyright (c) 2024 Kata Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

// newFlagSet returns a parsed flag set with args as its arguments.
func newFlagSet(t *testing.T, args []string) *flag.FlagSet {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, set.Parse(args))
	return set
}

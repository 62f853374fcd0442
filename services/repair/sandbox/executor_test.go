// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	return NewExecutor(nil, opts...)
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		e := NewExecutor(nil)
		//nolint:staticcheck // deliberate nil context
		_, err := e.Execute(nil, Request{Code: "x = 1"})
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("empty code short-circuits", func(t *testing.T) {
		e := NewExecutor(nil)
		res, err := e.Execute(context.Background(), Request{})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, ErrorEmptyCode, res.Error)
		assert.NotEmpty(t, res.Hint)
	})

	t.Run("successful run captures stdout", func(t *testing.T) {
		e := newTestExecutor(t)
		res, err := e.Execute(context.Background(), Request{
			Code:    "def add(a, b):\n    return a + b",
			Harness: "assert add(2, 3) == 5\nprint(\"ALL_TESTS_PASSED\")",
		})
		require.NoError(t, err)
		assert.True(t, res.OK)
		require.NotNil(t, res.ExitCode)
		assert.Equal(t, 0, *res.ExitCode)
		assert.Contains(t, res.Stdout, "ALL_TESTS_PASSED")
		assert.Empty(t, res.Error)
	})

	t.Run("assertion failure is normal completion", func(t *testing.T) {
		e := newTestExecutor(t)
		res, err := e.Execute(context.Background(), Request{
			Code:    "def add(a, b):\n    return a - b",
			Harness: "try:\n    assert add(2, 3) == 5\n    print(\"ALL_TESTS_PASSED\")\nexcept AssertionError as e:\n    print(\"ASSERTION_FAILED:\", e)",
		})
		require.NoError(t, err)
		assert.True(t, res.OK)
		require.NotNil(t, res.ExitCode)
		assert.Equal(t, 0, *res.ExitCode)
		assert.Contains(t, res.Stdout, "ASSERTION_FAILED")
	})

	t.Run("runtime error yields nonzero exit", func(t *testing.T) {
		e := newTestExecutor(t)
		res, err := e.Execute(context.Background(), Request{
			Code: "raise ValueError(\"boom\")",
		})
		require.NoError(t, err)
		assert.True(t, res.OK)
		require.NotNil(t, res.ExitCode)
		assert.NotEqual(t, 0, *res.ExitCode)
		assert.Contains(t, res.Stderr, "ValueError")
	})

	t.Run("syntax error spawns no run", func(t *testing.T) {
		e := newTestExecutor(t)
		res, err := e.Execute(context.Background(), Request{
			Code: "def f(:\n    return 1\nprint(\"should not appear\")",
		})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, ErrorSyntaxError, res.Error)
		assert.Nil(t, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Empty(t, res.Stdout)
		assert.NotEmpty(t, res.Hint)
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		e := newTestExecutor(t)
		start := time.Now()
		res, err := e.Execute(context.Background(), Request{
			Code:           "import time\nprint(\"started\", flush=True)\ntime.sleep(30)",
			TimeoutSeconds: 1,
		})
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, ErrorTimeout, res.Error)
		assert.Nil(t, res.ExitCode)
		assert.Contains(t, res.Stdout, "started")
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("output is capped", func(t *testing.T) {
		e := newTestExecutor(t, WithMaxOutput(1024))
		res, err := e.Execute(context.Background(), Request{
			Code: "print(\"x\" * 100000)",
		})
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.LessOrEqual(t, len(res.Stdout), 1024)
	})

	t.Run("isolated interpreter has scrubbed environment", func(t *testing.T) {
		e := newTestExecutor(t)
		t.Setenv("PYTHONPATH", "/nonexistent/injected")
		res, err := e.Execute(context.Background(), Request{
			Code: "import os, sys\nprint(os.environ.get(\"PYTHONPATH\", \"unset\"))\nprint(sys.flags.isolated)",
		})
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.Contains(t, res.Stdout, "unset")
		assert.Contains(t, res.Stdout, "1")
	})
}

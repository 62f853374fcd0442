// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves canned /api/chat completions in order, repeating
// the last one once the script is exhausted.
func fakeOllama(t *testing.T, responses []string) *httptest.Server {
	t.Helper()
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": responses[n]},
			"done":    true,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, env []string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(cliBinary, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestToolsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, nil, "tools")
	require.NoError(t, err)
	assert.Contains(t, stdout, "code_interpreter")
	assert.Contains(t, stdout, "code: string (required)")
}

func TestFixRequiresCodeFlag(t *testing.T) {
	_, _, err := runCLI(t, nil, "fix", "--test", "whatever.py")
	assert.Error(t, err)
}

func TestFixEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	dir := t.TempDir()
	codePath := filepath.Join(dir, "buggy.py")
	testPath := filepath.Join(dir, "example_test.py")
	hiddenPath := filepath.Join(dir, "hidden_test.py")
	require.NoError(t, os.WriteFile(codePath,
		[]byte("def add(a, b):\n    \"\"\"Return the sum of a and b.\"\"\"\n    return a - b\n"), 0o600))
	require.NoError(t, os.WriteFile(testPath, []byte("assert add(2, 3) == 5\n"), 0o600))
	require.NoError(t, os.WriteFile(hiddenPath, []byte("assert add(-1, 1) == 0\n"), 0o600))

	fixedInput, err := json.Marshal(map[string]string{
		"code": "def add(a, b):\n    return a + b",
	})
	require.NoError(t, err)

	server := fakeOllama(t, []string{
		"Thought: The function subtracts instead of adding.\n" +
			"Action: code_interpreter\n" +
			"Action Input: " + string(fixedInput),
		"Final Answer: ```python\ndef add(a, b):\n    return a + b\n```",
	})

	env := []string{
		"OLLAMA_BASE_URL=" + server.URL,
		"OLLAMA_MODEL=test-model",
	}
	stdout, stderr, err := runCLI(t, env, "fix",
		"--code", codePath,
		"--test", testPath,
		"--hidden-test", hiddenPath,
		"--json",
	)
	require.NoError(t, err, "stderr: %s", stderr)

	var report struct {
		State           string `json:"state"`
		Solved          bool   `json:"solved"`
		Solution        string `json:"solution"`
		Iterations      int    `json:"iterations"`
		ToolInvocations int    `json:"tool_invocations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Solved)
	assert.Equal(t, "TERMINAL_SUCCESS", report.State)
	assert.Contains(t, report.Solution, "return a + b")
	assert.GreaterOrEqual(t, report.ToolInvocations, 1)
}

func TestFixPrintsSolutionWithoutJSON(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	dir := t.TempDir()
	codePath := filepath.Join(dir, "buggy.py")
	testPath := filepath.Join(dir, "example_test.py")
	require.NoError(t, os.WriteFile(codePath,
		[]byte("def double(x):\n    \"\"\"Return x doubled.\"\"\"\n    return x + 1\n"), 0o600))
	require.NoError(t, os.WriteFile(testPath, []byte("assert double(4) == 8\n"), 0o600))

	server := fakeOllama(t, []string{
		"Final Answer: ```python\ndef double(x):\n    return x * 2\n```",
	})

	env := []string{
		"OLLAMA_BASE_URL=" + server.URL,
		"OLLAMA_MODEL=test-model",
	}
	stdout, stderr, err := runCLI(t, env, "fix", "--code", codePath, "--test", testPath)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "return x * 2")
}

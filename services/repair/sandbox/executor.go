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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// SANDBOX EXECUTOR
// =============================================================================

// Sentinel errors for the executor.
var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("nil context")
)

const (
	// ErrorEmptyCode is returned when the composed script is blank.
	ErrorEmptyCode = "EMPTY_CODE"
	// ErrorSyntaxError is returned when the script fails to parse.
	ErrorSyntaxError = "SYNTAX_ERROR"
	// ErrorTimeout is returned when the script exceeds its wall-clock budget.
	ErrorTimeout = "Timeout"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxOutput = 64 * 1024
	scriptName       = "snippet.py"
)

// syntaxCheckProg parses the submitted script without executing it and
// reports the exception class and message on stderr.
const syntaxCheckProg = `import ast, sys
try:
    with open(sys.argv[1], encoding="utf-8") as f:
        ast.parse(f.read())
except SyntaxError as e:
    sys.stderr.write(type(e).__name__ + ": " + str(e))
    sys.exit(1)
`

// Request describes one script execution.
type Request struct {
	// Code is the candidate solution.
	Code string `json:"code"`
	// Harness is an optional test block appended after the code.
	Harness string `json:"harness"`
	// TimeoutSeconds bounds wall-clock execution; 0 uses the default.
	TimeoutSeconds int `json:"timeout"`
}

// Result is the outcome of one execution. Exactly one of normal
// completion (OK true, ExitCode set) or a failure kind (OK false,
// Error set, ExitCode nil) holds.
type Result struct {
	OK       bool   `json:"ok"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

// Executor runs untrusted Python snippets in throwaway subprocesses.
//
// Description:
//
//	Each Execute call composes code + harness into a single script,
//	rejects blank input, compile-checks it without running it, then
//	runs it in a fresh temp directory under an isolated interpreter
//	(-I -S, scrubbed environment) with a hard wall-clock timeout.
//
// Thread Safety: Safe for concurrent use. Each execution creates its
// own workspace and process.
type Executor struct {
	pythonPath string
	timeout    time.Duration
	maxOutput  int
	logger     *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPython overrides the interpreter binary (default "python3").
func WithPython(path string) Option {
	return func(e *Executor) { e.pythonPath = path }
}

// WithTimeout overrides the default per-run timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxOutput caps captured stdout/stderr, in bytes per stream.
func WithMaxOutput(n int) Option {
	return func(e *Executor) { e.maxOutput = n }
}

// NewExecutor creates a sandbox executor.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		pythonPath: "python3",
		timeout:    defaultTimeout,
		maxOutput:  defaultMaxOutput,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one request to completion.
//
// Description:
//
//	Never returns an error for script-level faults; those are encoded
//	in the Result so the caller can relay them verbatim as an
//	observation. The error return covers caller bugs only.
//
// Inputs:
//
//	ctx - Context for cancellation; the per-run timeout is layered on top
//	req - Code, harness, and optional timeout override
//
// Outputs:
//
//	*Result - Always non-nil on nil error
//	error - Non-nil only on nil context
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	script := composeScript(req.Code, req.Harness)
	if script == "" {
		executionsTotal.WithLabelValues("empty_code").Inc()
		return &Result{
			OK:    false,
			Error: ErrorEmptyCode,
			Hint:  "The code field was empty. Provide the full program text, not a description of it.",
		}, nil
	}

	workDir, err := os.MkdirTemp("", "mend-sandbox-*")
	if err != nil {
		executionsTotal.WithLabelValues("fault").Inc()
		return &Result{OK: false, Error: fmt.Sprintf("workspace creation failed: %v", err)}, nil
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(script+"\n"), 0o600); err != nil {
		executionsTotal.WithLabelValues("fault").Inc()
		return &Result{OK: false, Error: fmt.Sprintf("script write failed: %v", err)}, nil
	}

	if res := e.syntaxCheck(ctx, scriptPath); res != nil {
		executionsTotal.WithLabelValues("syntax_error").Inc()
		return res, nil
	}

	timeout := e.timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return e.run(ctx, workDir, scriptPath, timeout), nil
}

// syntaxCheck parses the script in a separate non-executing process.
// Returns nil when the script parses cleanly.
func (e *Executor) syntaxCheck(ctx context.Context, scriptPath string) *Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.pythonPath, "-I", "-S", "-c", syntaxCheckProg, scriptPath)
	cmd.Env = scrubbedEnv()

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: e.maxOutput}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.logger.Debug("Syntax check failed",
				slog.String("detail", strings.TrimSpace(stderr.String())),
			)
			return &Result{
				OK:     false,
				Error:  ErrorSyntaxError,
				Stderr: strings.TrimSpace(stderr.String()),
				Hint:   "The script does not parse. Re-emit the complete corrected program in the code field.",
			}
		}
		// Interpreter unavailable or killed; surface as a launch fault.
		return &Result{OK: false, Error: fmt.Sprintf("syntax check failed to launch: %v", err)}
	}
	return nil
}

// run spawns the script and captures its output.
func (e *Executor) run(ctx context.Context, workDir, scriptPath string, timeout time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.pythonPath, "-I", "-S", scriptPath)
	cmd.Dir = workDir
	cmd.Env = scrubbedEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: e.maxOutput}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: e.maxOutput}

	e.logger.Debug("Executing sandboxed script",
		slog.String("script", scriptPath),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	executionDuration.Observe(duration.Seconds())

	if ctx.Err() == context.DeadlineExceeded {
		executionsTotal.WithLabelValues("timeout").Inc()
		e.logger.Warn("Sandbox execution timed out",
			slog.Duration("timeout", timeout),
		)
		return &Result{
			OK:     false,
			Error:  ErrorTimeout,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			executionsTotal.WithLabelValues("fault").Inc()
			return &Result{
				OK:     false,
				Error:  fmt.Sprintf("execution failed: %v", err),
				Stdout: stdout.String(),
				Stderr: stderr.String(),
			}
		}
	}
	result := &Result{
		OK:       true,
		ExitCode: &exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	status := "ok"
	if exitCode != 0 {
		status = "nonzero_exit"
	}
	executionsTotal.WithLabelValues(status).Inc()

	e.logger.Info("Sandbox execution completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("stdout_bytes", len(result.Stdout)),
		slog.Int("stderr_bytes", len(result.Stderr)),
	)
	return result
}

// scrubbedEnv builds a minimal environment that cannot reach
// host-machine Python packages.
func scrubbedEnv() []string {
	env := []string{
		"PYTHONNOUSERSITE=1",
		"PYTHONSAFEPATH=1",
		"PYTHONDONTWRITEBYTECODE=1",
	}
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case "PATH", "HOME", "LANG", "LC_ALL", "TMPDIR":
			env = append(env, kv)
		}
	}
	return env
}

// limitedWriter wraps a writer with a size limit.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	if lw.written >= lw.limit {
		lw.truncated = true
		return len(p), nil // Silently discard
	}

	remaining := lw.limit - lw.written
	if len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}

	n, err = lw.w.Write(p)
	lw.written += n
	return len(p), err // Return original length to avoid breaking callers
}

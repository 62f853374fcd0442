// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/mend/services/repair/sandbox"
)

// CodeInterpreterName is the action name the model uses to run code.
const CodeInterpreterName = "code_interpreter"

// CodeInterpreter executes Python snippets through the sandbox executor.
//
// Thread Safety: Safe for concurrent use; the underlying executor is
// stateless per call.
type CodeInterpreter struct {
	executor *sandbox.Executor
	logger   *slog.Logger
}

// NewCodeInterpreter creates the code execution tool.
func NewCodeInterpreter(executor *sandbox.Executor, logger *slog.Logger) *CodeInterpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeInterpreter{executor: executor, logger: logger}
}

// Name implements Tool.
func (c *CodeInterpreter) Name() string { return CodeInterpreterName }

// Definition implements Tool.
func (c *CodeInterpreter) Definition() Definition {
	return Definition{
		Name:        CodeInterpreterName,
		Description: "Executes a Python snippet with an optional test harness appended and returns stdout, stderr, and the exit code.",
		Params: []ParamSpec{
			{Name: "code", Type: "string", Required: true, Description: "Complete Python source of the candidate solution."},
			{Name: "harness", Type: "string", Required: false, Description: "Test block appended after the code."},
			{Name: "timeout", Type: "int", Required: false, Description: "Wall-clock limit in seconds."},
		},
	}
}

// Execute implements Tool.
//
// Description:
//
//	Validates the parameter map, dispatches to the sandbox, and maps
//	the sandbox result onto the observation wire shape. Shape
//	mismatches return ErrInvalidParams; sandbox-level faults are data,
//	not errors.
func (c *CodeInterpreter) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	invocationID := uuid.New().String()

	code, err := stringParam(params, "code", true)
	if err != nil {
		return nil, err
	}
	harness, err := stringParam(params, "harness", false)
	if err != nil {
		return nil, err
	}
	timeout, err := intParam(params, "timeout")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Dispatching code_interpreter",
		slog.String("invocation_id", invocationID),
		slog.Int("code_bytes", len(code)),
		slog.Int("harness_bytes", len(harness)),
	)

	start := time.Now()
	res, err := c.executor.Execute(ctx, sandbox.Request{
		Code:           code,
		Harness:        harness,
		TimeoutSeconds: timeout,
	})
	if err != nil {
		return nil, err
	}

	exitAttr := slog.String("exit_code", "none")
	if res.ExitCode != nil {
		exitAttr = slog.Int("exit_code", *res.ExitCode)
	}
	c.logger.Info("code_interpreter completed",
		slog.String("invocation_id", invocationID),
		slog.Bool("ok", res.OK),
		exitAttr,
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{
		OK:       res.OK,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Error:    res.Error,
		Hint:     res.Hint,
	}, nil
}

// stringParam extracts a string field from the parameter map.
func stringParam(params map[string]any, key string, required bool) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%w: missing required param %q", ErrInvalidParams, key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: param %q must be a string, got %T", ErrInvalidParams, key, v)
	}
	if required && s == "" {
		return "", fmt.Errorf("%w: param %q must not be empty", ErrInvalidParams, key)
	}
	return s, nil
}

// intParam extracts an optional integer field. JSON decoding hands
// numbers over as float64.
func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: param %q must be a number, got %T", ErrInvalidParams, key, v)
	}
}

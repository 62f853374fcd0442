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
	"errors"
)

// Sentinel errors for tool dispatch.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates the parameter map failed validation.
	ErrInvalidParams = errors.New("invalid tool parameters")
)

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Definition is the self-describing contract a tool publishes so the
// prompt layer can render it into the system instruction.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Result is the observation payload a tool hands back. It serializes
// to the wire shape relayed to the model, so field names are stable.
// ExitCode is set only when the process ran to completion.
type Result struct {
	OK       bool   `json:"ok"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

// Tool is the interface all registered tools implement.
//
// Execute must never panic on malformed params; shape mismatches come
// back as ErrInvalidParams so the caller can relay a corrective
// observation instead of failing the episode.
type Tool interface {
	// Name returns the unique tool identifier used in Action: lines.
	Name() string

	// Definition returns the tool's published contract.
	Definition() Definition

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

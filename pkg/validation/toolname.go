// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for
// model-supplied values.
//
// Tool names arrive from LLM completions and end up in registry
// lookups, log fields, and metric labels. Validating them keeps
// arbitrary model output out of those surfaces.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// toolNamePattern matches valid tool identifiers: snake_case starting
// with a letter, max 64 characters.
var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateToolName checks a model-supplied tool name.
//
// Valid names:
//   - 1-64 characters
//   - Lowercase letters, digits, underscores
//   - Must start with a letter
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateToolName(name); err != nil {
//	    return nil, fmt.Errorf("invalid tool name: %w", err)
//	}
func ValidateToolName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name: %q (must be 1-64 lowercase alphanumeric chars or underscores, starting with a letter)", name)
	}

	return nil
}

// SanitizeToolName normalizes and validates a tool name.
// Returns the lowercase name if valid, or an error if invalid.
func SanitizeToolName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateToolName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateToolName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "code_interpreter", false},
		{"single letter", "a", false},
		{"with digits", "tool2", false},
		{"empty", "", true},
		{"uppercase", "CodeInterpreter", true},
		{"leading digit", "2tool", true},
		{"leading underscore", "_tool", true},
		{"spaces", "code interpreter", true},
		{"shell metacharacters", "tool;rm -rf", true},
		{"too long", strings.Repeat("a", 65), true},
		{"max length", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToolName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeToolName(t *testing.T) {
	got, err := SanitizeToolName("  Code_Interpreter ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "code_interpreter" {
		t.Errorf("got %q, want %q", got, "code_interpreter")
	}

	if _, err := SanitizeToolName("not a tool"); err == nil {
		t.Error("expected error for invalid name")
	}
}

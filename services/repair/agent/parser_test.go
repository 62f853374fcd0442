// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"strings"
	"testing"
)

func TestParseReAct_BasicAction(t *testing.T) {
	input := `Thought: The subtraction should be an addition.
Action: code_interpreter
Action Input: {"code": "def add(a, b):\n    return a + b"}`

	result := ParseReAct(input)

	if result.Thought == "" {
		t.Error("Expected thought to be parsed")
	}
	if result.Action != "code_interpreter" {
		t.Errorf("Action = %q, want %q", result.Action, "code_interpreter")
	}
	if result.ActionInput == nil {
		t.Fatal("Expected action input to be parsed")
	}
	if result.ActionInput.ParseError {
		t.Error("ActionInput should parse as strict JSON")
	}
	if !strings.Contains(result.Code(), "return a + b") {
		t.Errorf("Code() = %q, want corrected body", result.Code())
	}
	if result.FinalAnswer != "" {
		t.Error("FinalAnswer should be empty for action response")
	}
}

func TestParseReAct_FinalAnswer(t *testing.T) {
	input := "Thought: The tests pass now.\nFinal Answer: ```python\ndef add(a, b):\n    return a + b\n```"

	result := ParseReAct(input)

	if result.Thought == "" {
		t.Error("Expected thought to be parsed")
	}
	if result.Action != "" {
		t.Error("Action should be empty for final answer")
	}
	if !result.HasFinalAnswer() {
		t.Fatal("Expected FinalAnswer to be parsed")
	}
	if !strings.Contains(result.FinalAnswer, "return a + b") {
		t.Error("FinalAnswer should contain the code block")
	}
}

func TestParseReAct_VariousFormats(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expectedAction string
		expectedCode   string
	}{
		{
			name:           "standard format",
			input:          "Thought: fix it.\nAction: code_interpreter\nAction Input: {\"code\": \"x = 1\"}",
			expectedAction: "code_interpreter",
			expectedCode:   "x = 1",
		},
		{
			name:           "extra whitespace",
			input:          "Thought:   fix it.  \nAction:   code_interpreter  \nAction Input:  {\"code\": \"x = 1\"}",
			expectedAction: "code_interpreter",
			expectedCode:   "x = 1",
		},
		{
			name:           "lowercase markers",
			input:          "thought: thinking...\naction: code_interpreter\naction input: {\"code\": \"x = 1\"}",
			expectedAction: "code_interpreter",
			expectedCode:   "x = 1",
		},
		{
			name:           "multiline json",
			input:          "Action: code_interpreter\nAction Input: {\n  \"code\": \"x = 1\"\n}",
			expectedAction: "code_interpreter",
			expectedCode:   "x = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseReAct(tt.input)
			if result.Action != tt.expectedAction {
				t.Errorf("Action = %q, want %q", result.Action, tt.expectedAction)
			}
			if result.Code() != tt.expectedCode {
				t.Errorf("Code() = %q, want %q", result.Code(), tt.expectedCode)
			}
		})
	}
}

func TestParseReAct_GreedyInputCapture(t *testing.T) {
	// Braces inside string values must not truncate the capture.
	input := `Action: code_interpreter
Action Input: {"code": "d = {'a': 1}\nprint(d)", "harness": "assert d == {'a': 1}"}`

	result := ParseReAct(input)

	if result.ActionInput == nil {
		t.Fatal("Expected action input to be parsed")
	}
	if !strings.HasSuffix(result.ActionInput.Raw, "}") {
		t.Errorf("Raw should run through the final brace, got %q", result.ActionInput.Raw)
	}
	if !strings.Contains(result.ActionInput.Raw, "harness") {
		t.Error("Raw should include the harness field beyond the inner braces")
	}
}

func TestParseReAct_SingleQuoteNormalization(t *testing.T) {
	input := "Action: code_interpreter\nAction Input: {'code': 'x = 1'}"

	result := ParseReAct(input)

	if result.ActionInput == nil {
		t.Fatal("Expected action input to be parsed")
	}
	if result.ActionInput.ParseError {
		t.Fatal("Expected single-quoted input to normalize")
	}
	if result.Code() != "x = 1" {
		t.Errorf("Code() = %q, want %q", result.Code(), "x = 1")
	}
}

func TestParseReAct_UnparsableInputDegrades(t *testing.T) {
	input := `Action: code_interpreter
Action Input: {"code": "x = 1", "harness": broken}`

	result := ParseReAct(input)

	if result.ActionInput == nil {
		t.Fatal("Expected raw fallback, got nil")
	}
	if !result.ActionInput.ParseError {
		t.Error("Expected ParseError tag on unparsable input")
	}
	if result.ActionInput.Raw == "" {
		t.Error("Raw payload must be retained")
	}
	if result.Code() != "" {
		t.Error("Code() must be empty on parse failure")
	}
}

func TestParseReAct_NoMarkers(t *testing.T) {
	tests := []string{
		"",
		"Sure! Let me think about the problem first.",
		"def add(a, b):\n    return a + b",
		"{\"code\": \"x = 1\"}",
	}

	for _, input := range tests {
		result := ParseReAct(input)
		if result == nil {
			t.Fatal("ParseReAct must never return nil")
		}
		if result.HasAction() {
			t.Errorf("input %q: unexpected action %q", input, result.Action)
		}
		if result.HasFinalAnswer() {
			t.Errorf("input %q: unexpected final answer", input)
		}
	}
}

func TestParseReAct_ThoughtStopsAtMarkers(t *testing.T) {
	input := "Thought: step one\nFinal Answer: done"

	result := ParseReAct(input)

	if result.Thought != "step one" {
		t.Errorf("Thought = %q, want %q", result.Thought, "step one")
	}
	if result.FinalAnswer != "done" {
		t.Errorf("FinalAnswer = %q, want %q", result.FinalAnswer, "done")
	}
}

func TestParseReAct_AdversarialInputs(t *testing.T) {
	// Parsing is total: none of these may panic.
	inputs := []string{
		"Action:",
		"Action Input:",
		"Action Input: {",
		"Action Input: }{",
		"Final Answer:",
		strings.Repeat("Action: a\n", 100),
		"Thought: " + strings.Repeat("x", 100000),
	}
	for _, input := range inputs {
		_ = ParseReAct(input)
	}
}

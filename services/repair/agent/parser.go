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
	"encoding/json"
	"regexp"
	"strings"
)

// ActionInput is the decoded Action Input region. Exactly one of two
// shapes holds: Params populated from a successful JSON decode, or
// Raw + ParseError when both decode attempts failed.
//
// Thread Safety: This type is immutable and safe for concurrent read access.
type ActionInput struct {
	// Params is the decoded parameter map (nil on parse failure).
	Params map[string]any

	// Raw is the original text region, always retained.
	Raw string

	// ParseError is true when the region could not be decoded as JSON
	// even after quote normalization.
	ParseError bool
}

// ParseResult contains parsed ReAct components from LLM response text.
// Every field is independently optional; absent markers leave their
// field zero-valued.
//
// Thread Safety: This type is immutable and safe for concurrent read access.
type ParseResult struct {
	// Thought is the model's reasoning (may be empty).
	Thought string

	// Action is the tool name to invoke (empty if no action).
	Action string

	// ActionInput is the decoded input region (nil if no action input).
	ActionInput *ActionInput

	// FinalAnswer is the final response (empty if not done).
	FinalAnswer string
}

// ReAct pattern regexes with flexible matching.
// Uses case-insensitive matching and allows variable whitespace.
var (
	// thoughtPattern matches "Thought: ..." allowing multiline content
	// until Action:, Action Input:, Final Answer:, or end of string.
	thoughtPattern = regexp.MustCompile(`(?is)Thought\s*:\s*(.+?)(?:\n\s*Action\s*:|\n\s*Action\s+Input\s*:|\n\s*Final\s+Answer\s*:|$)`)

	// actionPattern matches "Action: tool_name". The identifier class
	// keeps it from swallowing "Action Input:".
	actionPattern = regexp.MustCompile(`(?i)Action\s*:\s*([a-zA-Z0-9_]+)`)

	// actionInputPattern matches "Action Input: {...}" greedily through
	// the last closing brace, so JSON string values containing braces
	// survive intact.
	actionInputPattern = regexp.MustCompile(`(?is)Action\s+Input\s*:\s*(\{.*\})`)

	// finalAnswerPattern matches "Final Answer: ..." to end of string.
	finalAnswerPattern = regexp.MustCompile(`(?is)Final\s+Answer\s*:\s*(.+)$`)
)

// ParseReAct extracts ReAct components from LLM response text.
//
// Description:
//
//	Parses model output for ReAct-style structured text:
//	  Thought: [reasoning]
//	  Action: [tool_name]
//	  Action Input: {"param": "value"}
//
//	Or for final responses:
//	  Thought: [reasoning]
//	  Final Answer: [response]
//
//	Parsing is total: for any input, including adversarial garbage, it
//	returns a populated result and never fails. The action input goes
//	through a three-tier decode: strict JSON, then a single-quote to
//	double-quote normalization pass, then a tagged raw fallback.
//
// Inputs:
//
//	text - The LLM response text to parse.
//
// Outputs:
//
//	*ParseResult - Parsed components. Never nil.
//
// Thread Safety: This function is safe for concurrent use.
func ParseReAct(text string) *ParseResult {
	result := &ParseResult{}

	if matches := thoughtPattern.FindStringSubmatch(text); len(matches) > 1 {
		result.Thought = strings.TrimSpace(matches[1])
	}

	if matches := actionPattern.FindStringSubmatch(text); len(matches) > 1 {
		result.Action = strings.TrimSpace(matches[1])
	}

	if matches := actionInputPattern.FindStringSubmatch(text); len(matches) > 1 {
		result.ActionInput = decodeActionInput(strings.TrimSpace(matches[1]))
	}

	if matches := finalAnswerPattern.FindStringSubmatch(text); len(matches) > 1 {
		result.FinalAnswer = strings.TrimSpace(matches[1])
	}

	return result
}

// decodeActionInput applies the three-tier decode to an input region.
func decodeActionInput(raw string) *ActionInput {
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err == nil {
		return &ActionInput{Params: params, Raw: raw}
	}

	// Models frequently emit Python-style single-quoted objects.
	normalized := strings.ReplaceAll(raw, "'", `"`)
	if err := json.Unmarshal([]byte(normalized), &params); err == nil {
		return &ActionInput{Params: params, Raw: raw}
	}

	return &ActionInput{Raw: raw, ParseError: true}
}

// HasAction returns true if an action was parsed.
func (r *ParseResult) HasAction() bool {
	return r.Action != ""
}

// HasFinalAnswer returns true if a final answer was parsed.
func (r *ParseResult) HasFinalAnswer() bool {
	return r.FinalAnswer != ""
}

// Code returns the code field of the action input, or empty when the
// input is missing, unparsed, or the field is not a string.
func (r *ParseResult) Code() string {
	if r.ActionInput == nil || r.ActionInput.ParseError {
		return ""
	}
	code, _ := r.ActionInput.Params["code"].(string)
	return code
}

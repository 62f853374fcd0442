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
	"github.com/AleutianAI/mend/services/llm"
)

// EpisodeState identifies a node in the repair loop.
type EpisodeState string

const (
	// StateAwaitLLM dispatches the transcript to the gateway.
	StateAwaitLLM EpisodeState = "AWAIT_LLM"

	// StateInvokeTool resolves and runs the parsed action.
	StateInvokeTool EpisodeState = "INVOKE_TOOL"

	// StateTerminalSuccess means a final answer was accepted.
	StateTerminalSuccess EpisodeState = "TERMINAL_SUCCESS"

	// StateTerminalLimit means the iteration cap forced termination.
	StateTerminalLimit EpisodeState = "TERMINAL_LIMIT"
)

// String returns the state name.
func (s EpisodeState) String() string { return string(s) }

// Terminal reports whether the state is absorbing.
func (s EpisodeState) Terminal() bool {
	return s == StateTerminalSuccess || s == StateTerminalLimit
}

// AllStates returns every episode state.
func AllStates() []EpisodeState {
	return []EpisodeState{
		StateAwaitLLM,
		StateInvokeTool,
		StateTerminalSuccess,
		StateTerminalLimit,
	}
}

// TerminationPolicy selects how a final answer is accepted.
type TerminationPolicy string

const (
	// PolicyVerifyFirst re-runs the final code against a recovered
	// harness before accepting it. Default.
	PolicyVerifyFirst TerminationPolicy = "verify_first"

	// PolicyAcceptFinal accepts any final answer immediately.
	PolicyAcceptFinal TerminationPolicy = "accept_final"
)

// episode is the per-run mutable state. The transcript is strictly
// append-only; Iteration moves by exactly one per LLM invocation and
// never on a tool invocation.
type episode struct {
	id              string
	messages        []llm.Message
	iteration       int
	maxIterations   int
	noActionStreak  int
	toolInvocations int
}

func (e *episode) lastMessage() llm.Message {
	return e.messages[len(e.messages)-1]
}

func (e *episode) append(role, content string) {
	e.messages = append(e.messages, llm.Message{Role: role, Content: content})
}

// EpisodeResult is the caller-facing outcome of one loop run.
type EpisodeResult struct {
	// ID is the unique episode identifier.
	ID string `json:"id"`

	// Messages is the full final transcript including the system
	// instruction and all observations.
	Messages []llm.Message `json:"messages"`

	// State is the terminal state reached.
	State EpisodeState `json:"state"`

	// Iterations is the number of LLM invocations performed.
	Iterations int `json:"iterations"`

	// ToolInvocations counts dispatches that reached a tool.
	ToolInvocations int `json:"tool_invocations"`
}

// FinalAnswer returns the final answer text from the last assistant
// message, or empty when the transcript holds none.
func (r *EpisodeResult) FinalAnswer() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role != llm.RoleAssistant {
			continue
		}
		if parsed := ParseReAct(r.Messages[i].Content); parsed.HasFinalAnswer() {
			return parsed.FinalAnswer
		}
	}
	return ""
}

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
	"fmt"
	"sync"
)

// StateMachine manages valid state transitions for the repair loop.
//
// The state machine enforces the following transition graph:
//
//	AWAIT_LLM → AWAIT_LLM            : No action parsed, nudge or silent retry
//	AWAIT_LLM → INVOKE_TOOL          : Action parsed (or seeded pending action)
//	AWAIT_LLM → TERMINAL_SUCCESS     : Final answer accepted
//	AWAIT_LLM → TERMINAL_LIMIT       : Iteration cap reached
//	INVOKE_TOOL → AWAIT_LLM          : Observation appended, continue
//	INVOKE_TOOL → TERMINAL_SUCCESS   : Observation carried a final answer
//	INVOKE_TOOL → TERMINAL_LIMIT     : Iteration cap reached after tool turn
//
// The two terminal states are absorbing.
//
// Thread Safety:
//
//	StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps (from, to) pairs that are valid.
	transitions map[EpisodeState]map[EpisodeState]bool
}

// NewStateMachine creates a new state machine with all valid transitions.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[EpisodeState]map[EpisodeState]bool),
	}

	for _, state := range AllStates() {
		sm.transitions[state] = make(map[EpisodeState]bool)
	}

	sm.addTransition(StateAwaitLLM, StateAwaitLLM)
	sm.addTransition(StateAwaitLLM, StateInvokeTool)
	sm.addTransition(StateAwaitLLM, StateTerminalSuccess)
	sm.addTransition(StateAwaitLLM, StateTerminalLimit)

	sm.addTransition(StateInvokeTool, StateAwaitLLM)
	sm.addTransition(StateInvokeTool, StateTerminalSuccess)
	sm.addTransition(StateInvokeTool, StateTerminalLimit)

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to EpisodeState) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition from one state to another is valid.
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to EpisodeState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition validates a transition and returns the target state.
//
// Outputs:
//
//	EpisodeState - The target state on success
//	error - ErrInvalidTransition if the transition is not allowed
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) Transition(from, to EpisodeState) (EpisodeState, error) {
	if !sm.CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// ValidTransitionsFrom returns all valid transitions from a given state.
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) ValidTransitionsFrom(from EpisodeState) []EpisodeState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []EpisodeState
	if toMap, ok := sm.transitions[from]; ok {
		for state, valid := range toMap {
			if valid {
				result = append(result, state)
			}
		}
	}
	return result
}

// TransitionReason provides a human-readable description of a transition.
func (sm *StateMachine) TransitionReason(from, to EpisodeState) string {
	key := from.String() + "->" + to.String()

	reasons := map[string]string{
		"AWAIT_LLM->AWAIT_LLM":          "No recognizable action, nudge or retry",
		"AWAIT_LLM->INVOKE_TOOL":        "Action parsed from assistant turn",
		"AWAIT_LLM->TERMINAL_SUCCESS":   "Final answer accepted",
		"AWAIT_LLM->TERMINAL_LIMIT":     "Iteration cap reached",
		"INVOKE_TOOL->AWAIT_LLM":        "Observation appended, continue",
		"INVOKE_TOOL->TERMINAL_SUCCESS": "Observation carried a final answer",
		"INVOKE_TOOL->TERMINAL_LIMIT":   "Iteration cap reached after tool turn",
	}

	if reason, ok := reasons[key]; ok {
		return reason
	}
	return "Unknown transition"
}

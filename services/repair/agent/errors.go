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

import "errors"

// Sentinel errors for the agent package.
var (
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("nil context")

	// ErrNoMessages indicates an episode was started with no messages.
	ErrNoMessages = errors.New("initial messages must not be empty")

	// ErrLLMUnavailable indicates the LLM gateway call failed mid-episode.
	ErrLLMUnavailable = errors.New("LLM gateway unavailable")

	// ErrNoGateway indicates the loop was constructed without a chat client.
	ErrNoGateway = errors.New("chat client must not be nil")

	// ErrNoRegistry indicates the loop was constructed without a tool registry.
	ErrNoRegistry = errors.New("tool registry must not be nil")
)

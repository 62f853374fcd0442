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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	episodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mend_episodes_total",
		Help: "Completed episodes by terminal state.",
	}, []string{"state"})

	llmCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_llm_calls_total",
		Help: "LLM gateway invocations across all episodes.",
	})

	toolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mend_tool_invocations_total",
		Help: "Tool dispatches by outcome (ok, invalid_input, unknown_tool, error).",
	}, []string{"outcome"})

	nudgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mend_nudges_total",
		Help: "Corrective nudge messages appended to transcripts.",
	})
)

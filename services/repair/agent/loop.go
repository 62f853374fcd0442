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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/mend/pkg/validation"
	"github.com/AleutianAI/mend/services/llm"
	"github.com/AleutianAI/mend/services/repair/tools"
)

// =============================================================================
// EPISODE LOOP
// =============================================================================

const (
	defaultMaxIterations = 8
	defaultFailureMarker = "ASSERTION_FAILED"
	defaultNudgeBound    = 2
)

// Options configures a Loop.
type Options struct {
	// MaxIterations caps LLM invocations per episode. Default 8.
	MaxIterations int

	// Policy selects final-answer acceptance. Default PolicyVerifyFirst.
	Policy TerminationPolicy

	// FailureMarker, when present in verification stdout, rejects a
	// final answer. Default "ASSERTION_FAILED".
	FailureMarker string

	// NudgeBound caps consecutive corrective nudges. Default 2.
	NudgeBound int

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Loop runs repair episodes against an LLM gateway and a tool registry.
//
// Description:
//
//	One Loop instance is constructed at startup with its dependencies
//	injected and reused across episodes. Each episode is strictly
//	sequential: one LLM call, then at most one tool call, never
//	concurrently, because routing depends on the previous step's
//	parsed output.
//
// Thread Safety: Safe for concurrent use provided each episode owns
// its own initial messages. Episodes sharing one gateway queue on it.
type Loop struct {
	client   llm.ChatClient
	registry *tools.Registry
	sm       *StateMachine

	maxIterations int
	policy        TerminationPolicy
	failureMarker string
	nudgeBound    int
	logger        *slog.Logger
}

// NewLoop creates an episode loop.
//
// Outputs:
//
//	*Loop - Configured loop
//	error - ErrNoGateway or ErrNoRegistry on missing dependencies
func NewLoop(client llm.ChatClient, registry *tools.Registry, opts Options) (*Loop, error) {
	if client == nil {
		return nil, ErrNoGateway
	}
	if registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Policy == "" {
		opts.Policy = PolicyVerifyFirst
	}
	if opts.FailureMarker == "" {
		opts.FailureMarker = defaultFailureMarker
	}
	if opts.NudgeBound <= 0 {
		opts.NudgeBound = defaultNudgeBound
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		client:        client,
		registry:      registry,
		sm:            NewStateMachine(),
		maxIterations: opts.MaxIterations,
		policy:        opts.Policy,
		failureMarker: opts.FailureMarker,
		nudgeBound:    opts.NudgeBound,
		logger:        opts.Logger,
	}, nil
}

// RunEpisode drives one episode from initial messages to a terminal state.
//
// Description:
//
//	The system instruction is prepended if absent. When the initial
//	messages already embed an Action Input hint, a synthetic assistant
//	action is appended and the loop shortcuts straight into the tool
//	call. Every non-fatal fault inside the episode becomes an
//	observation; only a gateway call failure crosses the boundary.
//
// Inputs:
//
//	ctx - Context for cancellation
//	initial - Seed transcript; must not be empty
//
// Outputs:
//
//	*EpisodeResult - Final transcript, terminal state, and counts
//	error - Nil context, empty messages, gateway failure, or a
//	        transition bug
//
// Thread Safety: Safe for concurrent use with per-call messages.
func (l *Loop) RunEpisode(ctx context.Context, initial []llm.Message) (*EpisodeResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(initial) == 0 {
		return nil, ErrNoMessages
	}

	ep := &episode{
		id:            uuid.NewString(),
		messages:      append([]llm.Message(nil), initial...),
		maxIterations: l.maxIterations,
	}
	if ep.messages[0].Role != llm.RoleSystem {
		prompt := SystemPrompt(l.registry.Definitions())
		ep.messages = append([]llm.Message{{Role: llm.RoleSystem, Content: prompt}}, ep.messages...)
	}

	l.logger.Info("Episode started",
		slog.String("episode_id", ep.id),
		slog.Int("max_iterations", ep.maxIterations),
	)

	state := StateAwaitLLM
	if hint, ok := recoverHintJSON(ep.messages); ok {
		ep.append(llm.RoleAssistant, "Action: code_interpreter\nAction Input: "+hint)
		var err error
		state, err = l.sm.Transition(state, StateInvokeTool)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Seed hint detected, shortcutting to tool call",
			slog.String("episode_id", ep.id),
		)
	}

	for !state.Terminal() {
		var next EpisodeState
		switch state {
		case StateAwaitLLM:
			if ep.iteration >= ep.maxIterations {
				ep.append(llm.RoleAssistant, synthesizeLimitAnswer(ep.messages))
				next = StateTerminalLimit
				break
			}
			output, err := l.client.Chat(ctx, ep.messages)
			if err != nil {
				episodesTotal.WithLabelValues("gateway_error").Inc()
				return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
			}
			llmCallsTotal.Inc()
			ep.append(llm.RoleAssistant, output)
			ep.iteration++
			l.logger.Debug("LLM turn completed",
				slog.String("episode_id", ep.id),
				slog.Int("iteration", ep.iteration),
				slog.Int("output_chars", len(output)),
			)
			next = l.route(ctx, ep, false)
		case StateInvokeTool:
			l.invokeTool(ctx, ep)
			next = l.route(ctx, ep, true)
		default:
			return nil, fmt.Errorf("%w: loop entered %s", ErrInvalidTransition, state)
		}

		var err error
		state, err = l.sm.Transition(state, next)
		if err != nil {
			return nil, err
		}
	}

	episodesTotal.WithLabelValues(state.String()).Inc()
	l.logger.Info("Episode finished",
		slog.String("episode_id", ep.id),
		slog.String("state", state.String()),
		slog.Int("iterations", ep.iteration),
		slog.Int("tool_invocations", ep.toolInvocations),
	)

	return &EpisodeResult{
		ID:              ep.id,
		Messages:        ep.messages,
		State:           state,
		Iterations:      ep.iteration,
		ToolInvocations: ep.toolInvocations,
	}, nil
}

// route inspects the last message and decides the next state.
//
// Description:
//
//	Order matters: a final answer wins over everything, then the
//	iteration cap, then a parsed action, and only then the no-action
//	fallback. Routing runs after LLM turns and tool turns alike, so an
//	observation embedding a final-answer pattern terminates too. The
//	no-action streak tracks assistant turns only; an observation that
//	routes nowhere simply hands control back to the model.
func (l *Loop) route(ctx context.Context, ep *episode, fromTool bool) EpisodeState {
	parsed := ParseReAct(ep.lastMessage().Content)

	if parsed.HasFinalAnswer() {
		if l.acceptFinal(ctx, ep, parsed.FinalAnswer) {
			return StateTerminalSuccess
		}
		return StateAwaitLLM
	}

	if ep.iteration >= ep.maxIterations {
		ep.append(llm.RoleAssistant, synthesizeLimitAnswer(ep.messages))
		return StateTerminalLimit
	}

	// Observations never route back into a tool call. The corrective
	// hint inside an observation quotes the Action format and would
	// otherwise be mistaken for a fresh action.
	if fromTool {
		return StateAwaitLLM
	}

	if parsed.HasAction() {
		ep.noActionStreak = 0
		return StateInvokeTool
	}

	ep.noActionStreak++
	if ep.noActionStreak <= l.nudgeBound {
		nudgesTotal.Inc()
		ep.append(llm.RoleUser, nudgeMessage)
		l.logger.Debug("Appended corrective nudge",
			slog.String("episode_id", ep.id),
			slog.Int("streak", ep.noActionStreak),
		)
	}
	return StateAwaitLLM
}

// acceptFinal applies the termination policy to a final answer.
//
// Description:
//
//	Under PolicyVerifyFirst the answer's code block is re-run against
//	a harness recovered from prior helper hints. A failed run appends
//	the observation and rejects the answer; an unverifiable answer
//	(no code block, no harness, executor fault) is accepted as-is.
func (l *Loop) acceptFinal(ctx context.Context, ep *episode, finalText string) bool {
	if l.policy == PolicyAcceptFinal {
		return true
	}

	code := ExtractFencedCode(finalText)
	if code == "" {
		return true
	}
	harness, ok := RecoverHarness(ep.messages)
	if !ok {
		return true
	}
	tool, ok := l.registry.Get(tools.CodeInterpreterName)
	if !ok {
		return true
	}

	res, err := l.safeExecute(ctx, tool, map[string]any{"code": code, "harness": harness})
	if err != nil {
		l.logger.Warn("Final answer verification faulted, accepting answer",
			slog.String("episode_id", ep.id),
			slog.String("error", err.Error()),
		)
		return true
	}

	if !res.OK || res.ExitCode == nil || *res.ExitCode != 0 || strings.Contains(res.Stdout, l.failureMarker) {
		l.logger.Info("Final answer failed verification, continuing episode",
			slog.String("episode_id", ep.id),
			slog.Bool("ok", res.OK),
			slog.String("error", res.Error),
		)
		l.appendObservation(ep, res)
		return false
	}
	return true
}

// invokeTool resolves the last assistant action into a tool call and
// appends the resulting observation. Faults never escape.
func (l *Loop) invokeTool(ctx context.Context, ep *episode) {
	last := ep.lastMessage().Content
	parsed := ParseReAct(last)

	params := make(map[string]any)
	salvage := parsed.ActionInput == nil || parsed.ActionInput.ParseError
	if parsed.ActionInput != nil {
		for k, v := range parsed.ActionInput.Params {
			params[k] = v
		}
	}

	// Salvage only for unparsable input or a missing code field: recover
	// code from a fenced block in the assistant turn and a missing
	// harness from prior helper hints. A well-formed input runs as given.
	if code, _ := params["code"].(string); strings.TrimSpace(code) == "" {
		salvage = true
		if block := ExtractFencedCode(last); block != "" {
			params["code"] = block
		}
	}
	if _, ok := params["harness"]; salvage && !ok {
		if harness, ok := RecoverHarness(ep.messages); ok {
			params["harness"] = harness
		}
	}

	if code, _ := params["code"].(string); strings.TrimSpace(code) == "" {
		toolInvocationsTotal.WithLabelValues("invalid_input").Inc()
		l.appendObservation(ep, &tools.Result{
			OK:    false,
			Error: "INVALID_ACTION_INPUT",
			Hint:  invalidInputHint,
		})
		return
	}

	name, err := validation.SanitizeToolName(parsed.Action)
	if err != nil {
		toolInvocationsTotal.WithLabelValues("unknown_tool").Inc()
		l.appendObservation(ep, &tools.Result{
			OK:    false,
			Error: "Unknown tool: " + parsed.Action,
		})
		return
	}
	tool, ok := l.registry.Get(name)
	if !ok {
		toolInvocationsTotal.WithLabelValues("unknown_tool").Inc()
		l.appendObservation(ep, &tools.Result{
			OK:    false,
			Error: "Unknown tool: " + name,
		})
		return
	}

	l.logger.Info("Running tool",
		slog.String("episode_id", ep.id),
		slog.String("tool", name),
	)
	ep.toolInvocations++

	res, err := l.safeExecute(ctx, tool, params)
	switch {
	case errors.Is(err, tools.ErrInvalidParams):
		toolInvocationsTotal.WithLabelValues("invalid_input").Inc()
		res = &tools.Result{OK: false, Error: "Bad args: " + err.Error()}
	case err != nil:
		toolInvocationsTotal.WithLabelValues("error").Inc()
		res = &tools.Result{OK: false, Error: err.Error()}
	default:
		toolInvocationsTotal.WithLabelValues("ok").Inc()
	}
	l.appendObservation(ep, res)
}

// safeExecute shields the loop from panicking tools.
func (l *Loop) safeExecute(ctx context.Context, tool tools.Tool, params map[string]any) (res *tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, params)
}

// appendObservation serializes a tool result onto the transcript as a
// user message.
func (l *Loop) appendObservation(ep *episode, res *tools.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(`{"ok": false, "error": "observation serialization failed"}`)
	}
	ep.append(llm.RoleUser, "Observation: "+string(payload))
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/mend/pkg/logging"
	"github.com/AleutianAI/mend/services/llm"
	"github.com/AleutianAI/mend/services/repair/agent"
	"github.com/AleutianAI/mend/services/repair/config"
	"github.com/AleutianAI/mend/services/repair/sandbox"
	"github.com/AleutianAI/mend/services/repair/task"
	"github.com/AleutianAI/mend/services/repair/tools"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mend",
		Short: "A CLI that repairs buggy Python functions with an LLM agent",
		Long: `Mend drives a reason/act repair loop: the model proposes fixes,
a sandboxed Python interpreter runs them against the provided tests,
and the loop terminates once the tests pass or the iteration cap hits.`,
		SilenceUsage: true,
	}

	fixCmd = &cobra.Command{
		Use:   "fix",
		Short: "Repair a buggy Python function until its tests pass",
		Long: `Reads the buggy code and its test files, seeds a repair episode,
and prints the recovered function. The example test is shown to the
model and drives in-loop verification; the hidden test, when given,
is appended to the harness but never shown in the task statement.`,
		RunE: runFixCommand,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the repair agent",
		RunE:  runToolsCommand,
	}

	codePath       string
	testPath       string
	hiddenTestPath string
	description    string
	jsonOutput     bool
	transcript     bool
)

func init() {
	fixCmd.Flags().StringVar(&codePath, "code", "", "Path to the buggy Python source (required)")
	fixCmd.Flags().StringVar(&testPath, "test", "", "Path to the example test shown to the model (required)")
	fixCmd.Flags().StringVar(&hiddenTestPath, "hidden-test", "", "Path to additional tests run in the harness only")
	fixCmd.Flags().StringVar(&description, "task", "", "One-line task description (defaults to the source docstring)")
	fixCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the episode result as JSON")
	fixCmd.Flags().BoolVar(&transcript, "transcript", false, "Print the full episode transcript to stderr")
	_ = fixCmd.MarkFlagRequired("code")
	_ = fixCmd.MarkFlagRequired("test")

	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(toolsCmd)
}

// fixReport is the JSON shape emitted by --json.
type fixReport struct {
	EpisodeID       string `json:"episode_id"`
	State           string `json:"state"`
	Iterations      int    `json:"iterations"`
	ToolInvocations int    `json:"tool_invocations"`
	Solved          bool   `json:"solved"`
	Solution        string `json:"solution,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func runFixCommand(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		LogDir:  cfg.Logging.LogDir,
		Service: "mend",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	})
	defer logger.Close()
	slogger := logger.Slog()

	buggyCode, err := os.ReadFile(codePath)
	if err != nil {
		return fmt.Errorf("failed to read the buggy source: %w", err)
	}
	exampleTest, err := os.ReadFile(testPath)
	if err != nil {
		return fmt.Errorf("failed to read the example test: %w", err)
	}
	var hiddenTest []byte
	if hiddenTestPath != "" {
		hiddenTest, err = os.ReadFile(hiddenTestPath)
		if err != nil {
			return fmt.Errorf("failed to read the hidden test: %w", err)
		}
	}

	client, err := buildGateway(cfg.LLM)
	if err != nil {
		return err
	}

	executor := sandbox.NewExecutor(slogger,
		sandbox.WithPython(cfg.Sandbox.Python),
		sandbox.WithTimeout(time.Duration(cfg.Sandbox.TimeoutSeconds)*time.Second),
		sandbox.WithMaxOutput(cfg.Sandbox.MaxOutputBytes),
	)
	registry := tools.NewRegistry()
	registry.Register(tools.NewCodeInterpreter(executor, slogger))

	loop, err := agent.NewLoop(client, registry, agent.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		Policy:        agent.TerminationPolicy(cfg.Agent.Policy),
		FailureMarker: cfg.Agent.FailureMarker,
		NudgeBound:    cfg.Agent.NudgeBound,
		Logger:        slogger,
	})
	if err != nil {
		return err
	}

	repairTask := task.Task{
		Description: description,
		BuggyCode:   string(buggyCode),
		ExampleTest: string(exampleTest),
		MainTest:    string(hiddenTest),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := loop.RunEpisode(ctx, task.SeedMessages(repairTask))
	if err != nil {
		return fmt.Errorf("episode failed: %w", err)
	}

	slogger.Info("episode finished",
		"episode_id", result.ID,
		"state", result.State.String(),
		"iterations", result.Iterations,
		"tool_invocations", result.ToolInvocations,
	)

	if transcript {
		printTranscript(result.Messages)
	}

	solution, solved := task.ExtractFinalSolution(result.Messages)
	if jsonOutput {
		report := fixReport{
			EpisodeID:       result.ID,
			State:           result.State.String(),
			Iterations:      result.Iterations,
			ToolInvocations: result.ToolInvocations,
			Solved:          solved && result.State == agent.StateTerminalSuccess,
			Solution:        solution,
			DurationSeconds: int64(time.Since(start).Seconds()),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	if !solved {
		fmt.Fprintln(os.Stderr, "No solution could be recovered from the episode.")
		return fmt.Errorf("episode ended in %s without a recoverable solution", result.State)
	}
	fmt.Println(solution)
	if result.State != agent.StateTerminalSuccess {
		fmt.Fprintf(os.Stderr, "Warning: episode ended in %s; the printed code is the last attempt, not a verified fix.\n", result.State)
	}
	return nil
}

func runToolsCommand(cmd *cobra.Command, args []string) error {
	slogger := logging.Default().Slog()
	registry := tools.NewRegistry()
	registry.Register(tools.NewCodeInterpreter(sandbox.NewExecutor(slogger), slogger))

	for _, def := range registry.Definitions() {
		fmt.Printf("%s - %s\n", def.Name, def.Description)
		for _, p := range def.Params {
			required := ""
			if p.Required {
				required = " (required)"
			}
			fmt.Printf("  %s: %s%s - %s\n", p.Name, p.Type, required, p.Description)
		}
	}
	return nil
}

// buildGateway constructs the configured LLM backend. Construction
// fails fast on missing credentials or endpoints.
func buildGateway(llmCfg config.LLMConfig) (llm.ChatClient, error) {
	params := llm.GenerationParams{
		Temperature: llmCfg.Temperature,
		TopP:        llmCfg.TopP,
		MaxTokens:   llmCfg.MaxTokens,
		Stop:        llmCfg.Stop,
	}
	switch llmCfg.Backend {
	case "openai":
		return llm.NewOpenAIClient(params)
	default:
		return llm.NewOllamaClient(params)
	}
}

func printTranscript(messages []llm.Message) {
	for i, msg := range messages {
		fmt.Fprintf(os.Stderr, "--- [%d] %s ---\n%s\n", i, strings.ToUpper(msg.Role), msg.Content)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task builds the seed transcripts and test harnesses that
// callers feed into the episode loop, and extracts the final solution
// from a finished transcript.
package task

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/mend/services/llm"
	"github.com/AleutianAI/mend/services/repair/agent"
)

// Task describes one repair job.
type Task struct {
	// Description is the natural language statement of what the code
	// should do (typically a docstring).
	Description string

	// BuggyCode is the current failing solution.
	BuggyCode string

	// ExampleTest holds the visible assertions the fix must satisfy.
	ExampleTest string

	// MainTest holds further assertions run alongside the example test.
	MainTest string
}

// AssembleHarness wraps the task's tests in the standard guard block.
//
// Description:
//
//	The harness prints ALL_TESTS_PASSED when every assertion holds and
//	ASSERTION_FAILED with the failure detail otherwise, then re-raises
//	so the exit code reflects the failure too. Those markers are what
//	episode verification keys on.
func AssembleHarness(exampleTest, mainTest string) string {
	var b strings.Builder
	b.WriteString("if __name__ == '__main__':\n")
	b.WriteString("    try:\n")
	for _, block := range []string{exampleTest, mainTest} {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString("        " + strings.ReplaceAll(block, "\n", "\n        ") + "\n")
	}
	b.WriteString("        print('ALL_TESTS_PASSED')\n")
	b.WriteString("    except AssertionError as e:\n")
	b.WriteString("        print('ASSERTION_FAILED:', e)\n")
	b.WriteString("        raise\n")
	return b.String()
}

// SeedMessages builds the initial transcript for a repair episode.
//
// Description:
//
//	Produces the user task statement followed by a helper hint message
//	embedding a ready-to-run Action Input with the buggy code and the
//	assembled harness. The hint lets the loop's seeding pre-check run
//	the failing tests first so the model starts from a concrete
//	failure observation.
func SeedMessages(t Task) []llm.Message {
	harness := AssembleHarness(t.ExampleTest, t.MainTest)

	var b strings.Builder
	b.WriteString("You will fix a buggy Python solution.\n")
	if t.Description != "" {
		b.WriteString("Here is the docstring describing the task:\n")
		b.WriteString(t.Description + "\n\n")
	}
	b.WriteString("Here is the current buggy solution (as Python code):\n")
	b.WriteString("```python\n" + t.BuggyCode + "\n```\n\n")
	b.WriteString("We can run tests in a sandbox via the tool `code_interpreter`.\n")
	b.WriteString("To test the code, compose a Python script that includes the solution and then runs these tests.\n")
	b.WriteString("You MAY also invent additional tests (asserts) to probe edge cases and help debugging. Keep provided tests intact.\n")
	if t.ExampleTest != "" {
		b.WriteString("Example test:\n```python\n" + t.ExampleTest + "\n```\n")
	}
	if t.MainTest != "" {
		b.WriteString("Main test:\n```python\n" + t.MainTest + "\n```\n")
	}
	b.WriteString("\nUse ReAct: think, call code_interpreter with the script, inspect failures, then propose a minimal fix. " +
		"When you change the code, re-run the tests (including your extra tests if any). Finish with 'Final Answer' summarizing the fix.")

	hint, _ := json.Marshal(map[string]string{
		"code":    t.BuggyCode,
		"harness": harness,
	})

	return []llm.Message{
		{Role: llm.RoleUser, Content: b.String()},
		{Role: llm.RoleUser, Content: "Helper: To run tests, call code_interpreter with this JSON:"},
		{Role: llm.RoleUser, Content: "Action: code_interpreter\nAction Input: " + string(hint)},
	}
}

// ExtractFinalSolution pulls the corrected solution out of a finished
// transcript.
//
// Description:
//
//	Prefers a fenced code block in the most recent assistant message
//	that carries one. Falls back to the last action-input code sent to
//	the interpreter, with any trailing harness block stripped.
//
// Outputs:
//
//	string - The solution source
//	bool - False when no solution is recoverable
func ExtractFinalSolution(messages []llm.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != llm.RoleAssistant {
			continue
		}
		if code := agent.ExtractFencedCode(m.Content); code != "" {
			return strings.TrimSpace(code), true
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != llm.RoleAssistant {
			continue
		}
		parsed := agent.ParseReAct(m.Content)
		if !parsed.HasAction() {
			continue
		}
		code := parsed.Code()
		if strings.TrimSpace(code) == "" {
			continue
		}
		parts := strings.SplitN(code, "\nif __name__ == '__main__':\n", 2)
		if len(parts) == 1 {
			parts = strings.SplitN(code, "\nif __name__ == \"__main__\":\n", 2)
		}
		return strings.TrimSpace(parts[0]), true
	}
	return "", false
}

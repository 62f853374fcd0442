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

	"github.com/AleutianAI/mend/services/llm"
)

func TestExtractFencedCode(t *testing.T) {
	t.Run("prefers python fence", func(t *testing.T) {
		text := "```\nplain\n```\n```python\ndef f():\n    pass\n```"
		got := ExtractFencedCode(text)
		if !strings.Contains(got, "def f():") {
			t.Errorf("expected python block, got %q", got)
		}
	})

	t.Run("falls back to untagged fence", func(t *testing.T) {
		text := "Final Answer: ```\nx = 1\n```"
		got := ExtractFencedCode(text)
		if !strings.Contains(got, "x = 1") {
			t.Errorf("expected untagged block, got %q", got)
		}
	})

	t.Run("no fence", func(t *testing.T) {
		if got := ExtractFencedCode("just prose"); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}

func TestRecoverHarness(t *testing.T) {
	t.Run("recovers from most recent hint", func(t *testing.T) {
		messages := []llm.Message{
			{Role: llm.RoleUser, Content: "Fix this code."},
			{Role: llm.RoleUser, Content: `Helper: Action Input: {'code': 'old', 'harness': 'assert f() == 1'}`},
			{Role: llm.RoleAssistant, Content: "Thought: working on it"},
		}

		harness, ok := RecoverHarness(messages)
		if !ok {
			t.Fatal("expected harness to be recovered")
		}
		if harness != "assert f() == 1" {
			t.Errorf("harness = %q", harness)
		}
	})

	t.Run("ignores assistant hints", func(t *testing.T) {
		messages := []llm.Message{
			{Role: llm.RoleAssistant, Content: `Action Input: {"harness": "nope"}`},
		}
		if _, ok := RecoverHarness(messages); ok {
			t.Error("assistant messages must not supply a harness")
		}
	})

	t.Run("no hint present", func(t *testing.T) {
		messages := []llm.Message{
			{Role: llm.RoleUser, Content: "Fix this code."},
		}
		if _, ok := RecoverHarness(messages); ok {
			t.Error("expected no harness")
		}
	})
}

func TestSynthesizeLimitAnswer(t *testing.T) {
	t.Run("uses last parsed code submission", func(t *testing.T) {
		messages := []llm.Message{
			{Role: llm.RoleAssistant, Content: `Action: code_interpreter` + "\n" + `Action Input: {"code": "def f():\n    return 1"}`},
			{Role: llm.RoleUser, Content: "Observation: {\"ok\": false}"},
		}

		got := synthesizeLimitAnswer(messages)
		if !strings.HasPrefix(got, "Final Answer: ```python\n") {
			t.Errorf("expected fenced final answer, got %q", got)
		}
		if !strings.Contains(got, "return 1") {
			t.Errorf("expected candidate code, got %q", got)
		}
	})

	t.Run("recovers code from unparsable payload", func(t *testing.T) {
		raw := `Action Input: {"code": "def f():\n    return 2", "harness": broken}`
		messages := []llm.Message{
			{Role: llm.RoleAssistant, Content: "Action: code_interpreter\n" + raw},
		}

		got := synthesizeLimitAnswer(messages)
		if !strings.Contains(got, "def f():\n    return 2") {
			t.Errorf("expected unescaped extraction, got %q", got)
		}
	})

	t.Run("strips trailing harness", func(t *testing.T) {
		code := "def f():\\n    return 3\\nif __name__ == '__main__':\\n    assert f() == 3"
		messages := []llm.Message{
			{Role: llm.RoleAssistant, Content: `Action: code_interpreter` + "\n" + `Action Input: {"code": "` + code + `", "harness": broken}`},
		}

		got := synthesizeLimitAnswer(messages)
		if strings.Contains(got, "__main__") {
			t.Errorf("harness should be stripped, got %q", got)
		}
		if !strings.Contains(got, "return 3") {
			t.Errorf("solution should survive, got %q", got)
		}
	})

	t.Run("generic message when nothing recoverable", func(t *testing.T) {
		messages := []llm.Message{
			{Role: llm.RoleAssistant, Content: "I am not sure what to do."},
		}

		got := synthesizeLimitAnswer(messages)
		if got != "Final Answer: Stopping due to iteration limit." {
			t.Errorf("got %q", got)
		}
	})
}

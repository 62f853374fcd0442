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
	"strings"

	"github.com/AleutianAI/mend/services/repair/tools"
)

// SystemPrompt renders the fixed ReAct system instruction, including
// the published contract of every registered tool.
//
// Thread Safety: This function is safe for concurrent use.
func SystemPrompt(defs []tools.Definition) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer working in a secure sandbox environment. " +
		"Your specific role is to fix buggy code using ReAct. " +
		"It is safe and required to write and execute Python code via tools to accomplish this task.\n" +
		"Follow this exact format strictly:\n\n" +
		"Thought: <reason>\n" +
		"Action: <tool name>\n" +
		"Action Input: <JSON object>\n\n" +
		"Rules:\n" +
		"- Respond ONLY with the Thought, Action, and Action Input. No extra text.\n" +
		"- The Action Input must be a valid JSON object. Do NOT include comments or reasoning inside the JSON string.\n" +
		"- Put ONLY the corrected function in Action Input.code. The harness/tests are provided separately.\n" +
		"- You MUST include the test harness in the 'harness' field of Action Input. This harness should contain imports, " +
		"test cases, and an 'if __name__ == \"__main__\":' block to verify your code.\n" +
		"- After the code works, finish with the Final Answer below.\n\n" +
		"When finished:\n" +
		"Final Answer: ```python\n" +
		"<only the corrected function>\n" +
		"```\n\n" +
		"Available tools:\n")
	for _, def := range defs {
		b.WriteString(renderToolLine(def))
		b.WriteString("\n")
	}
	return b.String()
}

// renderToolLine formats one tool contract for the system prompt.
func renderToolLine(def tools.Definition) string {
	parts := make([]string, 0, len(def.Params))
	for _, p := range def.Params {
		typ := p.Type
		if !p.Required {
			typ += " (optional)"
		}
		parts = append(parts, fmt.Sprintf("%q: %q", p.Name, typ))
	}
	return fmt.Sprintf("- %s: %s schema: {%s}", def.Name, def.Description, strings.Join(parts, ", "))
}

// nudgeMessage is appended when the model emits neither an action nor
// a final answer, up to the streak bound.
const nudgeMessage = "Your last reply had no recognizable Action or Final Answer. " +
	"Respond ONLY with:\n" +
	"Thought: <reason>\n" +
	"Action: code_interpreter\n" +
	"Action Input: {\"code\": \"<ONLY_FUNCTION>\", \"harness\": \"<KEEP_AS_IS>\"}\n" +
	"or finish with:\n" +
	"Final Answer: ```python\n<only the corrected function>\n```"

// invalidInputHint is the corrective hint attached to an
// INVALID_ACTION_INPUT observation.
const invalidInputHint = "Respond ONLY with: 'Action: code_interpreter' and next line " +
	"'Action Input: {\"code\": \"<ONLY_FUNCTION>\", \"harness\": \"<KEEP_AS_IS>\"}'. No explanations."

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// generate_tool_docs generates a markdown reference table from the live
// tool registry.
//
// Usage:
//
//	go run scripts/generate_tool_docs.go > docs/tool_reference.md
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/mend/services/repair/sandbox"
	"github.com/AleutianAI/mend/services/repair/tools"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := tools.NewRegistry()
	registry.Register(tools.NewCodeInterpreter(sandbox.NewExecutor(logger), logger))

	var sb strings.Builder
	sb.WriteString("# Tool Reference\n\n")
	sb.WriteString(fmt.Sprintf("Generated on %s from the agent tool registry.\n\n", time.Now().Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Total tools: **%d**\n\n", registry.Count()))

	for _, def := range registry.Definitions() {
		sb.WriteString(fmt.Sprintf("## %s\n\n", def.Name))
		sb.WriteString(def.Description + "\n\n")
		sb.WriteString("| Parameter | Type | Required | Description |\n")
		sb.WriteString("|-----------|------|----------|-------------|\n")
		for _, p := range def.Params {
			required := "no"
			if p.Required {
				required = "yes"
			}
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n", p.Name, p.Type, required, p.Description))
		}
		sb.WriteString("\n")
	}

	fmt.Print(sb.String())
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"regexp"
	"strings"
)

var mainGuardRe = regexp.MustCompile(`(?m)^if\s+__name__\s*==\s*['"]__main__['"]\s*:`)

// composeScript joins candidate code and test harness into a single
// runnable script.
//
// Description:
//
//	Both fragments are normalized independently (newline normalization,
//	common-margin dedent, trailing-whitespace trim) so that code pasted
//	out of an indented chat block still parses. If the combined script
//	has no __main__ guard, one is synthesized: the harness moves under
//	the guard so top-level definitions stay importable, or a bare pass
//	body when there is no harness at all.
//
// Outputs:
//
//	string - The composed script. Empty when both fragments are blank.
func composeScript(code, harness string) string {
	code = normalizeFragment(code)
	harness = normalizeFragment(harness)

	if code == "" && harness == "" {
		return ""
	}

	if mainGuardRe.MatchString(code) || mainGuardRe.MatchString(harness) {
		return joinFragments(code, harness)
	}

	if harness == "" {
		return joinFragments(code, "if __name__ == \"__main__\":\n    pass")
	}
	return joinFragments(code, "if __name__ == \"__main__\":\n"+indentBlock(harness, "    "))
}

// normalizeFragment normalizes newlines, dedents to the common margin,
// and trims blank edges.
func normalizeFragment(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = dedent(s)
	return strings.Trim(s, "\n")
}

// dedent strips the longest whitespace prefix common to every
// non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		margin = commonPrefix(margin, indent)
		if margin == "" {
			return s
		}
	}
	if margin == "" {
		return s
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// indentBlock prefixes every non-blank line with the given indent.
func indentBlock(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

func joinFragments(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/mend/services/repair/config"
)

func TestBuildGatewayOllamaRequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")

	_, err := buildGateway(config.LLMConfig{Backend: "ollama"})
	assert.Error(t, err)
}

func TestBuildGatewayOllama(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	t.Setenv("OLLAMA_MODEL", "qwen2.5-coder")

	client, err := buildGateway(config.LLMConfig{Backend: "ollama"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildGatewayOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := buildGateway(config.LLMConfig{Backend: "openai"})
	assert.Error(t, err)
}

func TestBuildGatewayOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	client, err := buildGateway(config.LLMConfig{Backend: "openai"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

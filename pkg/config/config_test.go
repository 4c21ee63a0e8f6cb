// Copyright 2026 The Agent Loop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/agentloop/pkg/config"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := config.Config{MaxTurns: -1}
	cfg.SetDefaults()

	assert.Equal(t, 25, cfg.MaxTurns)
	assert.Equal(t, config.ReasoningNone, cfg.ReasoningType)
	assert.Equal(t, 4, cfg.MaxParallelTools)
	assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
}

func TestConfig_SetDefaultsPreservesLiteralZeroMaxTurnsAndRunTimeout(t *testing.T) {
	cfg := config.Config{MaxTurns: 0, RunTimeout: 0}
	cfg.SetDefaults()

	assert.Equal(t, 0, cfg.MaxTurns, "a caller-supplied 0 means immediate completion, not unset")
	assert.Equal(t, time.Duration(0), cfg.RunTimeout, "a caller-supplied 0 means immediate timeout, not unset")
}

func TestConfig_SetDefaultsAppliesUnsetSentinelForNegativeMaxTurnsAndRunTimeout(t *testing.T) {
	cfg := config.Config{MaxTurns: -1, RunTimeout: -1}
	cfg.SetDefaults()

	assert.Equal(t, 25, cfg.MaxTurns)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
}

func TestConfig_ValidateRejectsOutOfRangeConfidence(t *testing.T) {
	cfg := config.Config{ConfidenceThreshold: 1.5, MaxParallelTools: 1}
	err := cfg.Validate()
	require.Error(t, err)
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confidence_threshold", verr.Field)
}

func TestConfig_ValidateRejectsZeroParallelism(t *testing.T) {
	cfg := config.Config{ReasoningType: config.ReasoningNone, MaxParallelTools: 0}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestLoad_ParsesYAMLAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_turns: 5\nreasoning_type: chain_of_thought\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxTurns)
	assert.Equal(t, config.ReasoningChainOfThought, cfg.ReasoningType)
	assert.Equal(t, 4, cfg.MaxParallelTools, "unset fields still get defaults")
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence_threshold: 5\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

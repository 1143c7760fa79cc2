package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownSection(t *testing.T) {
	path := writeTestConfig(t, "[synk]\nfetch_workers = 2\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config section "synk"`)
	assert.Contains(t, err.Error(), `did you mean "sync"?`)
}

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, "completely_unrelated = 1\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config section")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[sync]\nfetch_worker = 4\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "fetch_worker" in [sync]`)
	assert.Contains(t, err.Error(), "fetch_workers")
}

func TestLoad_UnknownKey_InExtensionRule(t *testing.T) {
	path := writeTestConfig(t, `
[[workspace.title_extension_map]]
title_regexp = "^#"
extension = "md"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title_extension_map entry")
	assert.Contains(t, err.Error(), `"title_regex"`)
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, "[logging]\ncompletely_unrelated_key = true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"sync", "synk", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosestMatch_Found(t *testing.T) {
	assert.Equal(t, "poll_interval", closestMatch("pol_interval", knownKeys["sync"]))
}

func TestClosestMatch_NotFound(t *testing.T) {
	assert.Empty(t, closestMatch("zzzzzzzzzzzz", knownKeys["sync"]))
}

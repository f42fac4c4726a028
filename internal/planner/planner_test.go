package planner

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/codexpilot/codexpilot/internal/protocol"
)

func TestBuildPlanningMessage(t *testing.T) {
	msg := buildPlanningMessage(
		"organize my downloads",
		TaskContext{ID: "organize", Title: "Organize files"},
		FolderInfo{Path: "/home/u/Downloads", SelectedFiles: []string{"a.txt", "b.txt"}, FileCount: 2},
	)

	require.Contains(t, msg, "organize my downloads")
	require.Contains(t, msg, "Organize files")
	require.Contains(t, msg, "/home/u/Downloads")
	require.Contains(t, msg, "File count: 2")
	require.Contains(t, msg, "a.txt, b.txt")
}

func TestBuildSummaryMessageTruncatesOutput(t *testing.T) {
	long := strings.Repeat("x", 2000)
	msg := buildSummaryMessage(
		&protocol.Plan{Steps: []protocol.Step{{Description: "list files"}}},
		&protocol.ExecutionResult{ExitCode: 0, Stdout: long, Stderr: long},
	)

	require.Contains(t, msg, "Exit code: 0")
	require.Contains(t, msg, "list files")
	// Both excerpts are capped, so the message stays well under the raw size.
	require.Less(t, len(msg), 2500)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	short := "all kept"
	require.Equal(t, short, truncate(short, 500))

	// 300 two-byte runes; an odd limit lands mid-rune and must back up.
	accented := strings.Repeat("é", 300)
	got := truncate(accented, 501)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 500, len(got))
	require.Equal(t, 250, utf8.RuneCountInString(got))

	ascii := strings.Repeat("x", 600)
	require.Equal(t, 501, len(truncate(ascii, 501)))
}

func TestProviderErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProviderError{Provider: "openai", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "openai provider error")
	require.Contains(t, err.Error(), "connection refused")
}

func TestWithModelOverride(t *testing.T) {
	c := NewOpenAI("test-key", WithModel("gpt-4o"))
	require.Equal(t, "gpt-4o", string(c.model))

	d := NewOpenAI("test-key", WithModel(""))
	require.Equal(t, DefaultModel, d.model)
}

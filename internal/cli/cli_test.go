package cli

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/codexpilot/codexpilot/internal/settings"
	"github.com/codexpilot/codexpilot/internal/templates"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range cases {
		level, err := parseLogLevel(tc.input)
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.want, level, tc.input)
	}

	_, err := parseLogLevel("verbose")
	require.Error(t, err)
}

func TestParseSettingValue(t *testing.T) {
	require.Equal(t, true, parseSettingValue("true"))
	require.Equal(t, false, parseSettingValue("false"))
	require.Equal(t, float64(42), parseSettingValue("42"))
	require.Equal(t, nil, parseSettingValue("null"))

	// Strings stay strings, including ones that parse as JSON structures.
	require.Equal(t, "gpt-4o-mini", parseSettingValue("gpt-4o-mini"))
	require.Equal(t, `{"a":1}`, parseSettingValue(`{"a":1}`))
	require.Equal(t, "sk-test-key", parseSettingValue("sk-test-key"))
}

func newRunFlags(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringP("request", "r", "", "")
	cmd.Flags().StringP("template", "t", "", "")
	return cmd
}

func TestResolveRequestFreeForm(t *testing.T) {
	manager, err := templates.Load("")
	require.NoError(t, err)

	cmd := newRunFlags(t)
	require.NoError(t, cmd.Flags().Set("request", "delete the temp files"))

	id, title, request, err := resolveRequest(cmd, manager)
	require.NoError(t, err)
	require.Equal(t, "custom", id)
	require.Equal(t, "Custom task", title)
	require.Equal(t, "delete the temp files", request)
}

func TestResolveRequestTemplate(t *testing.T) {
	manager, err := templates.Load("")
	require.NoError(t, err)

	cmd := newRunFlags(t)
	require.NoError(t, cmd.Flags().Set("template", "organize_files"))
	require.NoError(t, cmd.Flags().Set("request", "only the downloads folder"))

	id, title, request, err := resolveRequest(cmd, manager)
	require.NoError(t, err)
	require.Equal(t, "organize_files", id)
	require.NotEmpty(t, title)
	require.Contains(t, request, "only the downloads folder")
}

func TestResolveRequestErrors(t *testing.T) {
	manager, err := templates.Load("")
	require.NoError(t, err)

	cmd := newRunFlags(t)
	_, _, _, err = resolveRequest(cmd, manager)
	require.Error(t, err)

	require.NoError(t, cmd.Flags().Set("template", "no_such_template"))
	_, _, _, err = resolveRequest(cmd, manager)
	require.ErrorContains(t, err, "no_such_template")
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigSetAndGet(t *testing.T) {
	dir := t.TempDir()

	output, err := executeCLI(t, "config", "set", "model", "gpt-4o", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "Set model.")

	output, err = executeCLI(t, "config", "get", "model", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "gpt-4o")

	store, err := settings.Open(dir)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", store.Model())
}

func TestConfigSetNestedPolicyField(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCLI(t, "config", "set", "transmission_policy.max_files_to_send", "25", "--config-dir", dir)
	require.NoError(t, err)

	store, err := settings.Open(dir)
	require.NoError(t, err)
	require.Equal(t, 25, store.TransmissionPolicy().MaxFilesToSend)
}

func TestConfigGetMissingKey(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCLI(t, "config", "get", "no.such.key", "--config-dir", dir)
	require.Error(t, err)
}

func TestTemplatesListShowsBuiltins(t *testing.T) {
	dir := t.TempDir()

	output, err := executeCLI(t, "templates", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "organize_files")
	require.Contains(t, output, "Organize:")
}

func TestTemplatesAddAndList(t *testing.T) {
	dir := t.TempDir()

	output, err := executeCLI(t, "templates", "add", "Weekly Report",
		"--prompt", "Summarize this week's changes", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "weekly_report")
	require.FileExists(t, filepath.Join(dir, "templates.yaml"))

	output, err = executeCLI(t, "templates", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "weekly_report")
	require.Contains(t, output, "Custom:")
}

func TestTemplatesAddRequiresPrompt(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCLI(t, "templates", "add", "Broken", "--prompt", "", "--config-dir", dir)
	require.ErrorContains(t, err, "--prompt")
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()

	output, err := executeCLI(t, "history", "--config-dir", dir)
	require.NoError(t, err)
	require.Contains(t, output, "No tasks recorded yet.")
}

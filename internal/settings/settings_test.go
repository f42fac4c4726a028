package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")

	s, err := Open(dir)
	require.NoError(t, err)

	require.FileExists(t, s.Path())
	require.Equal(t, "", s.APIKey())
	require.Equal(t, "", s.CodexPath())

	policy := s.TransmissionPolicy()
	require.False(t, policy.SendFileContent)
	require.Equal(t, 10, policy.MaxFilesToSend)
	require.True(t, policy.SendDiffSummary)
}

func TestDottedKeyRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set("transmission_policy.max_files_to_send", 25))
	require.Equal(t, int64(25), s.Get("transmission_policy.max_files_to_send").Int())

	// Nested keys that do not exist yet are created on the way down.
	require.NoError(t, s.Set("editor.theme", "dark"))
	require.Equal(t, "dark", s.GetString("editor.theme", ""))
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetAPIKey("sk-test"))
	require.NoError(t, s.Set("model", "gpt-4o"))

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, "sk-test", reopened.APIKey())
	require.Equal(t, "gpt-4o", reopened.Model())
}

func TestTransmissionPolicyRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	want := TransmissionPolicy{
		SendFileContent:   true,
		MaxFilesToSend:    3,
		MaxFileSize:       2048,
		SendDiffSummary:   false,
		SendErrorMessages: true,
	}
	require.NoError(t, s.SetTransmissionPolicy(want))
	require.Equal(t, want, s.TransmissionPolicy())
}

func TestGetStringFallback(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "fallback", s.GetString("no_such_key", "fallback"))
	require.Equal(t, "fallback", s.GetString("model", "fallback"), "empty string falls back")
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0600))

	_, err := Open(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not valid JSON")
}

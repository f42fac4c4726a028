package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlanResult_Plan(t *testing.T) {
	raw := `{"type":"plan","steps":[{"action":"list_files","description":"list files","command":"ls -la","safe":true}],"warnings":["check twice"],"backup_required":true}`

	result := ParsePlanResult(raw)

	require.Equal(t, PlanKindPlan, result.Kind)
	require.NotNil(t, result.Plan)
	require.Nil(t, result.Clarify)
	require.Len(t, result.Plan.Steps, 1)
	require.Equal(t, "list files", result.Plan.Steps[0].Description)
	require.Equal(t, "ls -la", result.Plan.Steps[0].Command)
	require.True(t, result.Plan.Steps[0].Safe)
	require.Equal(t, []string{"check twice"}, result.Plan.Warnings)
	require.True(t, result.Plan.BackupRequired)
}

func TestParsePlanResult_Clarify(t *testing.T) {
	raw := `{"type":"clarify","question":"Which folder?","suggestions":["Documents","Downloads"]}`

	result := ParsePlanResult(raw)

	require.Equal(t, PlanKindClarify, result.Kind)
	require.NotNil(t, result.Clarify)
	require.Nil(t, result.Plan)
	require.Equal(t, "Which folder?", result.Clarify.Question)
	require.Equal(t, []string{"Documents", "Downloads"}, result.Clarify.Suggestions)
}

func TestParsePlanResult_PlainTextFallback(t *testing.T) {
	result := ParsePlanResult("do it")

	require.Equal(t, PlanKindPlan, result.Kind)
	require.NotNil(t, result.Plan)
	require.Len(t, result.Plan.Steps, 1)
	require.Equal(t, "do it", result.Plan.Steps[0].Description)
	require.Empty(t, result.Plan.Warnings)
}

func TestParsePlanResult_UnknownTypeFallsBack(t *testing.T) {
	raw := `{"type":"report","body":"nothing to do"}`

	result := ParsePlanResult(raw)

	require.Equal(t, PlanKindPlan, result.Kind)
	require.Len(t, result.Plan.Steps, 1)
	require.Equal(t, raw, result.Plan.Steps[0].Description)
}

func TestParsePlanResult_StringSteps(t *testing.T) {
	raw := `{"type":"plan","steps":["rename photos","move them to 2024/"]}`

	result := ParsePlanResult(raw)

	require.Equal(t, PlanKindPlan, result.Kind)
	require.Len(t, result.Plan.Steps, 2)
	require.Equal(t, "rename photos", result.Plan.Steps[0].Description)
	require.Equal(t, "move them to 2024/", result.Plan.Steps[1].Description)
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		plan     *Plan
		fallback string
		want     string
	}{
		{
			name: "single step",
			plan: &Plan{Steps: []Step{{Description: "list files"}}},
			want: "list files",
		},
		{
			name: "multiple steps joined by newline",
			plan: &Plan{Steps: []Step{{Description: "a"}, {Description: "b"}}},
			want: "a\nb",
		},
		{
			name:     "empty plan falls back to request",
			plan:     &Plan{},
			fallback: "original request",
			want:     "original request",
		},
		{
			name:     "nil plan falls back to request",
			plan:     nil,
			fallback: "original request",
			want:     "original request",
		},
		{
			name:     "steps without descriptions fall back",
			plan:     &Plan{Steps: []Step{{Action: "noop"}}},
			fallback: "original request",
			want:     "original request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, BuildPrompt(tt.plan, tt.fallback))
		})
	}
}

func TestEventKindTerminal(t *testing.T) {
	require.True(t, EventStatus.Terminal())
	require.True(t, EventError.Terminal())
	require.False(t, EventStdout.Terminal())
	require.False(t, EventStderr.Terminal())
	require.False(t, EventCommand.Terminal())
}

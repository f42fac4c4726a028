package protocol

import (
	"encoding/json"
	"strings"
)

// PlanKind discriminates planning responses.
type PlanKind string

const (
	// PlanKindPlan means the planner produced an executable step list.
	PlanKindPlan PlanKind = "plan"
	// PlanKindClarify means the planner needs more input before planning.
	PlanKindClarify PlanKind = "clarify"
)

// Step is one entry of an execution plan.
type Step struct {
	Action               string `json:"action,omitempty"`
	Description          string `json:"description"`
	Command              string `json:"command,omitempty"`
	Safe                 bool   `json:"safe,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

// UnmarshalJSON accepts either a step object or a bare string. The planner's
// plain-text fallback historically produced string steps, so both shapes stay
// readable.
func (s *Step) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Step{Description: text}
		return nil
	}

	type stepAlias Step
	var obj stepAlias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Step(obj)
	return nil
}

// Plan is an ordered, reviewable list of steps proposed before execution.
type Plan struct {
	Steps          []Step   `json:"steps"`
	Warnings       []string `json:"warnings,omitempty"`
	BackupRequired bool     `json:"backup_required,omitempty"`
}

// Clarify asks the user a follow-up question before a plan can be produced.
type Clarify struct {
	Question    string   `json:"question"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// PlanResult is the tagged union of planning outcomes: exactly one of Plan or
// Clarify is set, matching Kind.
type PlanResult struct {
	Kind    PlanKind `json:"type"`
	Plan    *Plan    `json:"plan,omitempty"`
	Clarify *Clarify `json:"clarify,omitempty"`
}

// rawPlanResult mirrors the planner's wire format, where the plan/clarify
// fields sit alongside the type tag rather than under it.
type rawPlanResult struct {
	Type           string   `json:"type"`
	Steps          []Step   `json:"steps"`
	Warnings       []string `json:"warnings"`
	BackupRequired bool     `json:"backup_required"`
	Question       string   `json:"question"`
	Suggestions    []string `json:"suggestions"`
}

// ParsePlanResult interprets a raw planning response. Responses that do not
// parse as a plan or clarify object degrade to a single-step plan holding the
// raw text, so a malformed response still executes what was said instead of
// failing the task.
func ParsePlanResult(raw string) *PlanResult {
	var parsed rawPlanResult
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		switch parsed.Type {
		case string(PlanKindClarify):
			return &PlanResult{
				Kind: PlanKindClarify,
				Clarify: &Clarify{
					Question:    parsed.Question,
					Suggestions: parsed.Suggestions,
				},
			}
		case string(PlanKindPlan):
			return &PlanResult{
				Kind: PlanKindPlan,
				Plan: &Plan{
					Steps:          parsed.Steps,
					Warnings:       parsed.Warnings,
					BackupRequired: parsed.BackupRequired,
				},
			}
		}
	}

	return &PlanResult{
		Kind: PlanKindPlan,
		Plan: &Plan{
			Steps: []Step{{Description: raw}},
		},
	}
}

// BuildPrompt flattens a plan into the prompt handed to the agent: step
// descriptions joined by newlines, or fallback when the plan has none.
func BuildPrompt(plan *Plan, fallback string) string {
	if plan == nil {
		return fallback
	}

	var parts []string
	for _, step := range plan.Steps {
		if step.Description != "" {
			parts = append(parts, step.Description)
		}
	}

	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "\n")
}

package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codexpilot/codexpilot/internal/protocol"
)

// DefaultModel is used when the settings document does not name one.
const DefaultModel = openai.ChatModelGPT4oMini

const (
	planTemperature = 0.7
	planMaxTokens   = 2000
	// outputExcerptLimit bounds how much captured stdout/stderr is sent back
	// to the model for summarization.
	outputExcerptLimit = 500
)

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the chat model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = openai.ChatModel(model)
		}
	}
}

// NewOpenAI creates a planning client authenticated with the given API key.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GeneratePlan asks the model for an execution plan. The raw response is
// interpreted by protocol.ParsePlanResult, so a malformed reply degrades to a
// single-step plan rather than an error.
func (c *OpenAIClient) GeneratePlan(ctx context.Context, userRequest string, task TaskContext, folder FolderInfo) (*protocol.PlanResult, error) {
	raw, err := c.complete(ctx, planningSystemPrompt, buildPlanningMessage(userRequest, task, folder))
	if err != nil {
		return nil, err
	}
	return protocol.ParsePlanResult(raw), nil
}

// Summarize asks the model for a user-facing summary of an execution result.
func (c *OpenAIClient) Summarize(ctx context.Context, plan *protocol.Plan, result *protocol.ExecutionResult) (string, error) {
	return c.complete(ctx, summarySystemPrompt, buildSummaryMessage(plan, result))
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(planTemperature),
		MaxTokens:   openai.Int(planMaxTokens),
	})
	if err != nil {
		return "", &ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Err: fmt.Errorf("empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}

const planningSystemPrompt = `You are an assistant that plans file and code operations safely.

## Your role
1. Analyze the user's request
2. Ask a follow-up question when information is missing
3. Produce a safe execution plan as JSON

## Planning principles
- Safety first: be careful with deletions and overwrites
- Confirm risky operations before running them
- Make the smallest change that satisfies the request
- Prefer reversible operations; create backups where possible

## Output format (JSON)

### Pattern 1: a follow-up question is needed
{
  "type": "clarify",
  "question": "the concrete question",
  "suggestions": ["option 1", "option 2"]
}

### Pattern 2: an execution plan
{
  "type": "plan",
  "steps": [
    {
      "action": "list_files",
      "description": "List the files in the folder",
      "command": "ls -la",
      "safe": true
    },
    {
      "action": "organize_files",
      "description": "Organize the files",
      "command": "an appropriate command",
      "safe": true,
      "requires_confirmation": false
    }
  ],
  "warnings": ["warning messages, if any"],
  "backup_required": false
}

## Risk assessment
Set "requires_confirmation": true for:
- file deletion
- file overwrites
- moving ten or more files
- access to system directories

Always respond with JSON.`

const summarySystemPrompt = `You are an assistant that summarizes code execution results.

Analyze the result and report back to the user with:

1. The outcome (success or failure)
2. The main changes made or findings
3. Recommended next actions, if any

Skip technical detail and explain in terms the user understands.`

func buildPlanningMessage(userRequest string, task TaskContext, folder FolderInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## User request\n%s\n\n", userRequest)
	fmt.Fprintf(&b, "## Task context\nTask: %s\nID: %s\n\n", task.Title, task.ID)
	fmt.Fprintf(&b, "## Target folder\nPath: %s\nFile count: %d\nSelected files: %s\n\n",
		folder.Path, folder.FileCount, strings.Join(folder.SelectedFiles, ", "))
	b.WriteString("Produce a safe execution plan as JSON based on the information above.\n")
	b.WriteString("If anything is unclear, respond with a clarify object instead.")

	return b.String()
}

func buildSummaryMessage(plan *protocol.Plan, result *protocol.ExecutionResult) string {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		planJSON = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Execution plan\n%s\n\n", planJSON)
	fmt.Fprintf(&b, "## Execution result\nExit code: %d\n", result.ExitCode)
	fmt.Fprintf(&b, "Stdout: %s\n", truncate(result.Stdout, outputExcerptLimit))
	fmt.Fprintf(&b, "Stderr: %s\n\n", truncate(result.Stderr, outputExcerptLimit))
	b.WriteString("Summarize this result.")

	return b.String()
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

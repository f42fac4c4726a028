package cli

import (
	"bufio"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codexpilot/codexpilot/internal/discovery"
	"github.com/codexpilot/codexpilot/internal/eventlog"
	"github.com/codexpilot/codexpilot/internal/history"
	"github.com/codexpilot/codexpilot/internal/orchestrator"
	"github.com/codexpilot/codexpilot/internal/planner"
	"github.com/codexpilot/codexpilot/internal/protocol"
	"github.com/codexpilot/codexpilot/internal/runner"
	"github.com/codexpilot/codexpilot/internal/settings"
	"github.com/codexpilot/codexpilot/internal/templates"
	"github.com/codexpilot/codexpilot/internal/transcript"
)

var runCmd = &cobra.Command{
	Use:   "run [folder]",
	Short: "Plan and execute a task in a folder",
	Long: `Plan a task with OpenAI, review the proposed steps, and execute them
through the Codex CLI in the given folder (default: current directory).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringP("request", "r", "", "What to do, in natural language")
	runCmd.Flags().StringP("template", "t", "", "Task template id (see 'codexpilot templates')")
	runCmd.Flags().StringArrayP("file", "f", nil, "Selected file (repeatable)")
	runCmd.Flags().Duration("timeout", 0, "Abort execution after this duration (0: no limit)")
	runCmd.Flags().BoolP("yes", "y", false, "Execute the plan without asking for confirmation")
}

func runTask(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	dir, err := configDir(cmd)
	if err != nil {
		return err
	}

	store, err := settings.Open(dir)
	if err != nil {
		return err
	}
	recorder, err := history.Open(dir)
	if err != nil {
		return err
	}
	manager, err := templates.Load(filepath.Join(dir, "templates.yaml"))
	if err != nil {
		return err
	}

	taskID, title, request, err := resolveRequest(cmd, manager)
	if err != nil {
		return err
	}

	folder := "."
	if len(args) == 1 {
		folder = args[0]
	}
	folder, err = filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("resolve folder: %w", err)
	}

	codexPath, err := discovery.Find(store.CodexPath())
	if err != nil {
		return fmt.Errorf("%w\n\n%s", err, discovery.InstallHint())
	}
	logger.Debug("codex binary resolved", "path", codexPath)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	agent := runner.New(codexPath, logger, runner.WithTimeout(timeout))

	runLog, err := eventlog.New(filepath.Join(dir, "logs", fmt.Sprintf("run-%s-%s.ndjson",
		time.Now().Format("20060102-150405"), uuid.New().String()[:8])))
	if err != nil {
		return err
	}
	defer runLog.Close()

	out := cmd.OutOrStdout()
	formatter := transcript.NewFormatter()
	states := make(chan orchestrator.State, 16)

	notify := orchestrator.Notifications{
		OnStateChanged: func(s orchestrator.State) { states <- s },
		OnMessage: func(text string, sender orchestrator.Sender) {
			fmt.Fprintln(out, formatter.FormatMessage(text, sender))
		},
		OnPlanReady: func(plan *protocol.Plan) {
			fmt.Fprint(out, formatter.FormatPlan(plan))
		},
		OnProcessEvent: func(ev protocol.Event) {
			fmt.Fprintln(out, formatter.FormatEvent(ev))
			if err := runLog.Write(ev); err != nil {
				logger.Warn("failed to log event", "error", err)
			}
		},
	}

	factory := func(apiKey, model string) planner.Client {
		return planner.NewOpenAI(apiKey, planner.WithModel(model))
	}

	orch := orchestrator.New(agent, store, recorder, factory, notify, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch.StartTask(taskID, title, request, folder, selectedFiles(cmd))
	if !orch.IsBusy() {
		// StartTask already reported why (typically a missing API key).
		return fmt.Errorf("task not started")
	}

	autoConfirm, _ := cmd.Flags().GetBool("yes")
	input := bufio.NewReader(cmd.InOrStdin())

	for {
		select {
		case <-ctx.Done():
			orch.Cancel()
			return nil

		case state := <-states:
			switch state {
			case orchestrator.StateClarifying:
				answer, err := promptLine(input, out, "answer> ")
				if err != nil {
					orch.Cancel()
					return err
				}
				orch.ProvideClarification(answer)

			case orchestrator.StateReviewing:
				if autoConfirm {
					orch.ExecutePlan()
					continue
				}
				confirm, err := promptLine(input, out, "Run this plan? [y/N] ")
				if err != nil {
					orch.Cancel()
					return err
				}
				if isYes(confirm) {
					orch.ExecutePlan()
				} else {
					orch.Cancel()
					return nil
				}

			case orchestrator.StateCompleted:
				return nil

			case orchestrator.StateError:
				return fmt.Errorf("task did not complete")

			case orchestrator.StateIdle:
				return nil
			}
		}
	}
}

// resolveRequest combines the template and request flags into the task
// identity and request text. A template's prompt leads; a free-form request
// follows it.
func resolveRequest(cmd *cobra.Command, manager *templates.Manager) (id, title, request string, err error) {
	request, _ = cmd.Flags().GetString("request")
	templateID, _ := cmd.Flags().GetString("template")

	if templateID == "" {
		if strings.TrimSpace(request) == "" {
			return "", "", "", fmt.Errorf("nothing to do: pass --request or --template")
		}
		return "custom", "Custom task", request, nil
	}

	tmpl := manager.ByID(templateID)
	if tmpl == nil {
		return "", "", "", fmt.Errorf("unknown template %q (see 'codexpilot templates')", templateID)
	}

	text := tmpl.Prompt
	if strings.TrimSpace(request) != "" {
		text += "\n\n" + request
	}
	return tmpl.ID, tmpl.Name, text, nil
}

func selectedFiles(cmd *cobra.Command) []string {
	files, _ := cmd.Flags().GetStringArray("file")
	return files
}

func configDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("config-dir"); dir != "" {
		return dir, nil
	}
	return settings.DefaultDir()
}

func promptLine(input *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := input.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Package transcript formats runner events and orchestrator messages for
// console display.
package transcript

import (
	"fmt"
	"strings"

	"github.com/codexpilot/codexpilot/internal/orchestrator"
	"github.com/codexpilot/codexpilot/internal/protocol"
)

// Formatter renders events and messages as single console lines.
type Formatter struct{}

// NewFormatter creates a transcript formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatEvent renders one process event.
func (f *Formatter) FormatEvent(ev protocol.Event) string {
	ts := ev.Timestamp.Format("15:04:05")

	switch ev.Kind {
	case protocol.EventCommand:
		return fmt.Sprintf("[%s] $ %s", ts, ev.Data)
	case protocol.EventStderr:
		return fmt.Sprintf("[%s] ! %s", ts, ev.Data)
	case protocol.EventStatus:
		return fmt.Sprintf("[%s] * %s", ts, ev.Data)
	case protocol.EventError:
		return fmt.Sprintf("[%s] ERROR %s", ts, ev.Data)
	default:
		return fmt.Sprintf("[%s]   %s", ts, ev.Data)
	}
}

// FormatMessage renders one orchestrator message with its sender prefix.
func (f *Formatter) FormatMessage(text string, sender orchestrator.Sender) string {
	switch sender {
	case orchestrator.SenderAssistant:
		return fmt.Sprintf("assistant> %s", text)
	case orchestrator.SenderUser:
		return fmt.Sprintf("you> %s", text)
	default:
		return fmt.Sprintf("-- %s", text)
	}
}

// FormatPlan renders a reviewable plan: numbered steps, then warnings.
func (f *Formatter) FormatPlan(plan *protocol.Plan) string {
	var b strings.Builder

	b.WriteString("Proposed plan:\n")
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "  %d. %s", i+1, step.Description)
		if step.Command != "" {
			fmt.Fprintf(&b, "  (%s)", step.Command)
		}
		if step.RequiresConfirmation {
			b.WriteString("  [needs confirmation]")
		}
		b.WriteString("\n")
	}

	for _, warning := range plan.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", warning)
	}
	if plan.BackupRequired {
		b.WriteString("  warning: a backup is recommended before running this plan\n")
	}

	return b.String()
}

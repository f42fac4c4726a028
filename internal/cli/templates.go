package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codexpilot/codexpilot/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the available task templates",
	RunE:  listTemplates,
}

var templatesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a custom task template",
	Args:  cobra.ExactArgs(1),
	RunE:  addTemplate,
}

func init() {
	templatesCmd.AddCommand(templatesAddCmd)

	templatesAddCmd.Flags().String("prompt", "", "Prompt text the template expands to (required)")
	templatesAddCmd.Flags().String("description", "", "Short description")
	templatesAddCmd.Flags().String("category", "", "Category (default: Custom)")
}

func listTemplates(cmd *cobra.Command, _ []string) error {
	manager, err := openTemplates(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, category := range manager.Categories() {
		fmt.Fprintf(out, "%s:\n", category)
		for _, t := range manager.ByCategory(category) {
			fmt.Fprintf(out, "  %-20s %s\n", t.ID, t.Description)
		}
	}
	return nil
}

func addTemplate(cmd *cobra.Command, args []string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" {
		return fmt.Errorf("--prompt is required")
	}

	manager, err := openTemplates(cmd)
	if err != nil {
		return err
	}

	description, _ := cmd.Flags().GetString("description")
	category, _ := cmd.Flags().GetString("category")

	t := manager.AddCustom(args[0], description, prompt, category)
	if err := manager.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added template %q.\n", t.ID)
	return nil
}

func openTemplates(cmd *cobra.Command) (*templates.Manager, error) {
	dir, err := configDir(cmd)
	if err != nil {
		return nil, err
	}
	return templates.Load(filepath.Join(dir, "templates.yaml"))
}

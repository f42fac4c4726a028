package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codexpilot/codexpilot/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting (dotted keys reach nested fields)",
	Args:  cobra.ExactArgs(1),
	RunE:  getSetting,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting (dotted keys reach nested fields)",
	Args:  cobra.ExactArgs(2),
	RunE:  setSetting,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSettings(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), store.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func getSetting(cmd *cobra.Command, args []string) error {
	store, err := openSettings(cmd)
	if err != nil {
		return err
	}

	value := store.Get(args[0])
	if !value.Exists() {
		return fmt.Errorf("setting %q is not set", args[0])
	}

	fmt.Fprintln(cmd.OutOrStdout(), value.String())
	return nil
}

func setSetting(cmd *cobra.Command, args []string) error {
	store, err := openSettings(cmd)
	if err != nil {
		return err
	}

	if err := store.Set(args[0], parseSettingValue(args[1])); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s.\n", args[0])
	return nil
}

// parseSettingValue stores booleans and numbers typed, not as strings, so
// nested policy fields keep their JSON types.
func parseSettingValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	switch value.(type) {
	case bool, float64, nil:
		return value
	default:
		return raw
	}
}

func openSettings(cmd *cobra.Command) (*settings.Store, error) {
	dir, err := configDir(cmd)
	if err != nil {
		return nil, err
	}
	return settings.Open(dir)
}

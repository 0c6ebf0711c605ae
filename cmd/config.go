package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/longkey1/securechat/internal/config"
	"github.com/longkey1/securechat/internal/logging"
)

const configFields = "configfile, base_url, api_key, api_key_file, model, lock_policy"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.
The API key is always masked.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  securechat config               # Show all configuration
  securechat config model         # Show only model
  securechat config base_url      # Show only base URL
  securechat config lock_policy   # Show only lock policy`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		out := cmd.OutOrStdout()

		// If a field is specified, show only that field
		if len(args) > 0 {
			value, err := configField(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		}

		// Display all configuration values
		fmt.Fprintf(out, "ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Fprintf(out, "BaseURL: %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "APIKey: %s\n", logging.MaskToken(cfg.APIKey))
		fmt.Fprintf(out, "APIKeyFile: %s\n", cfg.APIKeyFile)
		fmt.Fprintf(out, "Model: %s\n", cfg.Model)
		fmt.Fprintf(out, "LockPolicy: %s\n", cfg.Policy())
		return nil
	},
}

func configField(cfg *config.Config, name string) (string, error) {
	switch strings.ToLower(name) {
	case "configfile":
		return viper.ConfigFileUsed(), nil
	case "base_url", "baseurl":
		return cfg.BaseURL, nil
	case "api_key", "apikey":
		return logging.MaskToken(cfg.APIKey), nil
	case "api_key_file", "apikeyfile":
		return cfg.APIKeyFile, nil
	case "model":
		return cfg.Model, nil
	case "lock_policy", "lockpolicy":
		return cfg.Policy().String(), nil
	default:
		return "", fmt.Errorf("unknown field: %s (available fields: %s)", name, configFields)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
}

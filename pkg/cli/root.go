// Package cli implements the fedq command-line client for the federated
// query API.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fedquery/internal/format"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				if apiErr.Code != "" {
					errObj["code"] = apiErr.Code
				}
			}
			_ = format.PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		server string
		token  string
		output string
	)

	rootCmd := &cobra.Command{
		Use:           "fedq",
		Short:         "Federated query CLI",
		Long:          "Command-line interface for asking natural-language questions across MySQL and InfluxDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, markdown, csv, json)")

	client := NewClient(server, token)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Precedence: flag > env > default.
		if !cmd.Flags().Changed("server") {
			if v := os.Getenv("FEDQUERY_SERVER"); v != "" {
				server = v
			}
		}
		if !cmd.Flags().Changed("token") {
			if v := os.Getenv("FEDQUERY_TOKEN"); v != "" {
				token = v
			}
		}
		if !cmd.Flags().Changed("output") {
			if v := os.Getenv("FEDQUERY_OUTPUT"); v != "" {
				output = v
			}
		}

		if _, err := format.ParseStyle(output); err != nil {
			return err
		}

		client.BaseURL = trimBaseURL(server)
		client.Token = token
		return nil
	}

	rootCmd.AddCommand(newAskCmd(client))
	rootCmd.AddCommand(newCatalogCmd(client))
	rootCmd.AddCommand(newHistoryCmd(client))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// outputStyle returns the effective output style from the root command's
// persistent flags. The style was validated in PersistentPreRunE.
func outputStyle(cmd *cobra.Command) format.Style {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	style, err := format.ParseStyle(v)
	if err != nil {
		return format.StyleTable
	}
	return style
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}

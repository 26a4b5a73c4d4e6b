package cli

import (
	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-chaos/pkg/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for route files",
	Long: `Print the JSON Schema route files are validated against. Point an editor's
YAML or JSON language server at it for completion and inline errors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(config.SchemaJSON())
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/mockd-chaos/pkg/cli/internal/output"
	"github.com/getmockd/mockd-chaos/pkg/config"
)

// ValidateOutput is the JSON form of the validate command's result.
type ValidateOutput struct {
	Valid  bool     `json:"valid"`
	Files  []string `json:"files"`
	Routes int      `json:"routes"`
	Errors []string `json:"errors,omitempty"`
}

var validateShowResolved bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate route files without serving them",
	Long: `Validate route files without starting any listeners.

This command checks:
  - YAML and JSON syntax
  - The route file schema (field names, types and ranges)
  - Presets, path patterns and method names
  - Includes, which are loaded relative to the including file`,
	Example: `  # Validate mockd-chaos.yaml in the current directory
  mockd-chaos validate

  # Validate several sources together
  mockd-chaos validate -c base.yaml -c ./extra-routes

  # Show the routes after env var expansion and includes
  mockd-chaos validate --show-resolved`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateShowResolved, "show-resolved", false, "Print the routes after env var expansion and includes")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	f, paths, err := loadRoutes()
	if paths == nil && err != nil {
		return err
	}
	if err == nil {
		err = f.Validate()
	}

	out := ValidateOutput{Valid: err == nil, Files: paths}
	if err != nil {
		out.Errors = validationMessages(err)
	} else {
		out.Routes = len(f.Routes)
	}

	if perr := printResult(cmd, out, func(w io.Writer) {
		if !out.Valid {
			fmt.Fprintf(w, "✗ %d problem(s) found:\n", len(out.Errors))
			for _, msg := range out.Errors {
				fmt.Fprintf(w, "  - %s\n", msg)
			}
			return
		}
		fmt.Fprintf(w, "✓ %d route(s) valid\n", out.Routes)
		if validateShowResolved {
			fmt.Fprintln(w)
			_ = writeYAML(w, f)
		}
	}); perr != nil {
		return perr
	}

	if !out.Valid {
		return ErrInvalidRoutes
	}
	if out.Routes == 0 {
		output.Warn(cmd.ErrOrStderr(), "no routes defined in %s", strings.Join(paths, ", "))
	}
	return nil
}

// validationMessages flattens a load or validation error into one message
// per problem.
func validationMessages(err error) []string {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	msgs := make([]string, len(verr.Errors))
	for i, fe := range verr.Errors {
		msgs[i] = fe.Error()
	}
	return msgs
}

// writeYAML writes v as YAML using its JSON field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

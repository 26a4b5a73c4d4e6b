package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-chaos/pkg/cli/internal/output"
)

// printResult outputs a single operation result.
//
// Contract: when --json is active, ONLY the JSON encoding of data is written
// to stdout. Human-readable prose must go to stderr or be omitted entirely.
// textFn is called only in text mode.
func printResult(cmd *cobra.Command, data any, textFn func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		return output.JSON(w, data)
	}
	textFn(w)
	return nil
}

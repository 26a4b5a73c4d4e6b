package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/cli/internal/output"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [name]",
	Short: "List the built-in chaos presets",
	Long: `List the built-in chaos presets a route can reference with "preset: <name>",
or show the full settings of one preset.`,
	Example: `  mockd-chaos profiles
  mockd-chaos profiles flaky`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		p, ok := chaos.GetProfile(args[0])
		if !ok {
			return fmt.Errorf("%w %q (available: %s)", ErrUnknownProfile, args[0], strings.Join(chaos.ProfileNames(), ", "))
		}
		return printResult(cmd, p, func(w io.Writer) {
			_ = writeYAML(w, p)
		})
	}

	profiles := chaos.ListProfiles()
	return printResult(cmd, profiles, func(w io.Writer) {
		tw := output.Table(w)
		fmt.Fprintln(tw, "NAME\tLATENCY\tFAILURE\tDESCRIPTION")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, describeLatency(p.Latency), describeFailure(p.Failure), p.Description)
		}
		_ = tw.Flush()
	})
}

func describeLatency(l *chaos.LatencyProfile) string {
	if l == nil {
		return "-"
	}
	if l.Distribution.Kind == chaos.DistributionNormal {
		return fmt.Sprintf("normal ~%.0fms", l.Distribution.MeanMs)
	}
	return fmt.Sprintf("%s %dms", l.Distribution.Kind, l.BaseMs)
}

func describeFailure(f *chaos.FailureProfile) string {
	if f == nil || !f.Enabled {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", f.GlobalErrorRate*100)
}

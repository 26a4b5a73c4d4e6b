package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/cli/internal/flags"
)

// PreviewSummary aggregates repeated previews of one request.
type PreviewSummary struct {
	Method       string                  `json:"method"`
	Path         string                  `json:"path"`
	Matched      bool                    `json:"matched"`
	Route        string                  `json:"route,omitempty"`
	Samples      int                     `json:"samples"`
	Injected     int                     `json:"injected"`
	InjectRate   float64                 `json:"injectRate"`
	FaultsByKind map[chaos.FaultKind]int `json:"faultsByKind,omitempty"`
	Statuses     map[int]int             `json:"statuses,omitempty"`
	Latency      *LatencySummary         `json:"latency,omitempty"`
}

// LatencySummary describes the sampled delays in milliseconds.
type LatencySummary struct {
	MinMs  int64 `json:"minMs"`
	P50Ms  int64 `json:"p50Ms"`
	P95Ms  int64 `json:"p95Ms"`
	MaxMs  int64 `json:"maxMs"`
	MeanMs int64 `json:"meanMs"`
}

var (
	previewMethod string
	previewTags   flags.StringSlice
	previewCount  int
	previewSeed   uint64
)

var previewCmd = &cobra.Command{
	Use:   "preview <path>",
	Short: "Show what chaos a request would get",
	Long: `Evaluate a request against the route files without sending it. Each sample
rolls the route's failure and latency profiles once; with --count the
results are summarised.`,
	Example: `  # One roll for GET /users/42
  mockd-chaos preview /users/42

  # Fault rate and latency percentiles over 1000 rolls with a tag applied
  mockd-chaos preview /orders -X POST --tag slow --count 1000`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	f := previewCmd.Flags()
	f.StringVarP(&previewMethod, "method", "X", "GET", "Request method")
	f.Var(&previewTags, "tag", "Request tag (repeatable, comma separated)")
	f.IntVarP(&previewCount, "count", "n", 1, "Number of samples")
	f.Uint64Var(&previewSeed, "seed", 0, "Seed for reproducible samples (0 uses a random seed)")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with '/': %q", path)
	}
	if previewCount < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", previewCount)
	}

	f, paths, err := loadRoutes()
	if err != nil {
		return err
	}
	reg, err := f.Registry()
	if err != nil {
		return err
	}
	logger.Debug("routes loaded", "routes", reg.Len(), "files", paths)

	opts := []chaos.Option{chaos.WithLogger(logger)}
	if previewSeed != 0 {
		opts = append(opts, chaos.WithSource(chaos.NewSeededSource(previewSeed)))
	}
	inj := chaos.NewInjector(reg, opts...)
	method := strings.ToUpper(previewMethod)
	tags := []string(previewTags)

	if previewCount == 1 {
		p := inj.Preview(method, path, tags)
		return printResult(cmd, p, func(w io.Writer) { printPreview(w, method, path, p) })
	}

	s := summarize(inj, method, path, tags, previewCount)
	return printResult(cmd, s, func(w io.Writer) { printSummary(w, s) })
}

func printPreview(w io.Writer, method, path string, p chaos.Preview) {
	if !p.Matched {
		fmt.Fprintf(w, "%s %s matches no route\n", method, path)
		return
	}
	fmt.Fprintf(w, "%s %s -> %s\n", method, path, p.Route)
	fmt.Fprintf(w, "  delay:  %s\n", p.Latency.Delay)
	if p.Fault == nil {
		fmt.Fprintln(w, "  fault:  none configured")
		return
	}
	verdict := "passes"
	if p.Inject {
		verdict = "fails"
	}
	fmt.Fprintf(w, "  fault:  %s (%s, status %d)\n", verdict, p.Fault.Kind, p.Fault.Status)
}

func summarize(inj *chaos.Injector, method, path string, tags []string, n int) PreviewSummary {
	s := PreviewSummary{Method: method, Path: path, Samples: n}
	var delays []time.Duration
	for range n {
		p := inj.Preview(method, path, tags)
		if !p.Matched {
			return s
		}
		s.Matched, s.Route = true, p.Route
		delays = append(delays, p.Latency.Delay)
		if p.Inject && p.Fault != nil {
			s.Injected++
			if s.FaultsByKind == nil {
				s.FaultsByKind = make(map[chaos.FaultKind]int)
				s.Statuses = make(map[int]int)
			}
			s.FaultsByKind[p.Fault.Kind]++
			if p.Fault.Status > 0 {
				s.Statuses[p.Fault.Status]++
			}
		}
	}
	s.InjectRate = float64(s.Injected) / float64(n)
	s.Latency = summarizeDelays(delays)
	return s
}

func summarizeDelays(delays []time.Duration) *LatencySummary {
	if len(delays) == 0 {
		return nil
	}
	slices.Sort(delays)
	if delays[len(delays)-1] <= 0 {
		return nil
	}
	var total time.Duration
	for _, d := range delays {
		total += d
	}
	pct := func(p float64) int64 {
		idx := int(p * float64(len(delays)-1))
		return delays[idx].Milliseconds()
	}
	return &LatencySummary{
		MinMs:  delays[0].Milliseconds(),
		P50Ms:  pct(0.50),
		P95Ms:  pct(0.95),
		MaxMs:  delays[len(delays)-1].Milliseconds(),
		MeanMs: (total / time.Duration(len(delays))).Milliseconds(),
	}
}

func printSummary(w io.Writer, s PreviewSummary) {
	if !s.Matched {
		fmt.Fprintf(w, "%s %s matches no route\n", s.Method, s.Path)
		return
	}
	fmt.Fprintf(w, "%s %s -> %s (%d samples)\n", s.Method, s.Path, s.Route, s.Samples)
	fmt.Fprintf(w, "  injected: %d (%.1f%%)\n", s.Injected, s.InjectRate*100)
	for _, kind := range chaos.FaultKinds() {
		if n := s.FaultsByKind[kind]; n > 0 {
			fmt.Fprintf(w, "    %-18s %d\n", kind, n)
		}
	}
	if l := s.Latency; l != nil {
		fmt.Fprintf(w, "  latency:  min %dms  p50 %dms  p95 %dms  max %dms  mean %dms\n",
			l.MinMs, l.P50Ms, l.P95Ms, l.MaxMs, l.MeanMs)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/getmockd/mockd-chaos/pkg/admin"
	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/cli/internal/flags"
	"github.com/getmockd/mockd-chaos/pkg/engine"
	"github.com/getmockd/mockd-chaos/pkg/eventlog"
	"github.com/getmockd/mockd-chaos/pkg/metrics"
	"github.com/getmockd/mockd-chaos/pkg/ratelimit"
	"github.com/getmockd/mockd-chaos/pkg/tags"
)

// EnvAPIKey is read when --api-key is not given.
const EnvAPIKey = "MOCKD_CHAOS_API_KEY"

// Default listen addresses.
const (
	DefaultAddr      = ":4280"
	DefaultAdminAddr = ":4290"
)

var (
	serveAddr      string
	serveAdminAddr string
	serveGRPCAddr  string
	serveOpenAPI   string
	serveWatch     bool
	serveAPIKey    string
	serveSeed      uint64
	serveEventLog  int
	serveRateLimit float64
	serveRateBurst int
	serveProxies   flags.StringSlice
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve mock routes with chaos injection",
	Long: `Serve the routes from the route files with their latency and failure
profiles applied. The admin API exposes stats, previews, live reload and
Prometheus metrics.

Route files are watched and reloaded on change unless --watch=false. A
reload that fails validation is logged and the previous routes stay active.`,
	Example: `  # Serve mockd-chaos.yaml from the current directory
  mockd-chaos serve

  # Serve a directory of route files and tag requests from an OpenAPI document
  mockd-chaos serve -c ./routes --openapi petstore.yaml

  # Also inject faults into gRPC calls
  mockd-chaos serve --grpc-addr :4281`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", DefaultAddr, "Mock server listen address (empty to disable)")
	f.StringVar(&serveAdminAddr, "admin-addr", DefaultAdminAddr, "Admin API listen address (empty to disable)")
	f.StringVar(&serveGRPCAddr, "grpc-addr", "", "gRPC listen address (disabled when empty)")
	f.StringVar(&serveOpenAPI, "openapi", "", "OpenAPI document whose operation tags are applied to requests")
	f.BoolVar(&serveWatch, "watch", true, "Reload route files when they change")
	f.StringVar(&serveAPIKey, "api-key", "", "API key required by the admin API (default $"+EnvAPIKey+")")
	f.Uint64Var(&serveSeed, "seed", 0, "Seed for reproducible chaos (0 uses a random seed)")
	f.IntVar(&serveEventLog, "event-log-size", eventlog.DefaultCapacity, "Injection events kept for the admin API (0 disables)")
	f.Float64Var(&serveRateLimit, "admin-rate-limit", 0, "Admin API requests per second per client (0 disables)")
	f.IntVar(&serveRateBurst, "admin-rate-burst", 0, "Admin API burst size (default twice the rate)")
	f.Var(&serveProxies, "trusted-proxy", "Proxy address or CIDR whose X-Forwarded-For is trusted (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr == "" && serveAdminAddr == "" {
		return ErrNoListener
	}
	paths, err := routePaths()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	opts := []engine.ServerOption{
		engine.WithRouteFiles(paths...),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	}
	var events *eventlog.Store
	if serveEventLog > 0 {
		events = eventlog.New(serveEventLog)
		opts = append(opts, engine.WithEventSink(events))
	}
	var limiter *ratelimit.Limiter
	if serveRateLimit > 0 {
		limiter, err = ratelimit.New(ratelimit.Config{
			Rate:           serveRateLimit,
			Burst:          serveRateBurst,
			TrustedProxies: serveProxies,
		})
		if err != nil {
			return fmt.Errorf("admin rate limit: %w", err)
		}
	}
	if serveSeed != 0 {
		opts = append(opts, engine.WithSource(chaos.NewSeededSource(serveSeed)))
	}
	if serveOpenAPI != "" {
		res, err := tags.NewOpenAPIResolverFromFile(ctx, serveOpenAPI)
		if err != nil {
			return err
		}
		logger.Info("openapi tags loaded", "file", serveOpenAPI, "operations", res.Len())
		opts = append(opts, engine.WithTagResolver(res))
	}

	srv := engine.NewServer(opts...)
	n, err := srv.Reload()
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	logger.Info("routes loaded", "routes", n, "files", paths)

	return runListeners(ctx, srv, adminOptions(m, events, limiter))
}

func adminOptions(m *metrics.Metrics, events *eventlog.Store, limiter *ratelimit.Limiter) []admin.Option {
	key := serveAPIKey
	if key == "" {
		key = os.Getenv(EnvAPIKey)
	}
	opts := []admin.Option{
		admin.WithLogger(logger),
		admin.WithMetricsHandler(m.Handler()),
		admin.WithAPIKey(key),
	}
	if events != nil {
		opts = append(opts, admin.WithEventLog(events))
	}
	if limiter != nil {
		opts = append(opts, admin.WithRateLimit(limiter))
	}
	return opts
}

// runListeners starts every configured listener and the route watcher, and
// returns when ctx is done or the first of them fails.
func runListeners(ctx context.Context, srv *engine.Server, adminOpts []admin.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Go(func() {
			if err := fn(ctx); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", name, err)
				}
				errMu.Unlock()
				cancel()
			}
		})
	}

	if serveAddr != "" {
		run("mock server", func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, serveAddr)
		})
	}
	if serveAdminAddr != "" {
		api := admin.New(srv.Injector(), append(adminOpts, admin.WithReloader(srv))...)
		run("admin API", func(ctx context.Context) error {
			return api.ListenAndServe(ctx, serveAdminAddr)
		})
		if api.RateLimiter() != nil {
			run("rate limiter", api.RateLimiter().Run)
		}
	}
	if serveGRPCAddr != "" {
		run("gRPC server", func(ctx context.Context) error {
			return serveGRPC(ctx, srv, serveGRPCAddr)
		})
	}
	if serveWatch {
		w, err := srv.Watcher()
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("watching route files: %w", err)
		}
		run("route watcher", w.Run)
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	logger.Info("shut down", "uptime", srv.Uptime().Round(time.Second))
	return nil
}

func serveGRPC(ctx context.Context, srv *engine.Server, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	gs := srv.NewGRPCServer()

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(ln) }()
	logger.Info("gRPC server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		gs.GracefulStop()
		return nil
	}
}

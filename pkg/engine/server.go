// Package engine runs the mock server that sits behind chaos injection.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/chaos/chaosgrpc"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
	"github.com/getmockd/mockd-chaos/pkg/logging"
	"github.com/getmockd/mockd-chaos/pkg/metrics"
)

// Server ties route files, the chaos injector and the mock responder together.
type Server struct {
	paths     []string
	injector  *chaos.Injector
	responder *Responder
	metrics   *metrics.Metrics
	tags      chaos.TagResolver
	source    chaos.Source
	sinks     chaos.MultiSink
	log       *slog.Logger

	mu        sync.Mutex // serializes reloads
	startTime time.Time
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithRouteFiles sets the files, directories or globs routes are loaded from.
func WithRouteFiles(paths ...string) ServerOption {
	return func(s *Server) {
		s.paths = append([]string(nil), paths...)
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records injections, reloads and requests in m.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTagResolver adds a tag resolver after the X-Chaos-Tags header.
func WithTagResolver(res chaos.TagResolver) ServerOption {
	return func(s *Server) {
		s.tags = res
	}
}

// WithEventSink adds a receiver for injection events, such as an event log.
func WithEventSink(sink chaos.EventSink) ServerOption {
	return func(s *Server) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithSource sets the injector's randomness source.
func WithSource(src chaos.Source) ServerOption {
	return func(s *Server) {
		s.source = src
	}
}

// NewServer creates a server with an empty route table. Call Reload or Apply
// to install routes.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		responder: NewResponder(),
		log:       logging.Nop(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	injOpts := []chaos.Option{chaos.WithLogger(s.log)}
	if s.source != nil {
		injOpts = append(injOpts, chaos.WithSource(s.source))
	}
	if s.metrics != nil {
		s.sinks = append(chaos.MultiSink{s.metrics}, s.sinks...)
	}
	switch len(s.sinks) {
	case 0:
	case 1:
		injOpts = append(injOpts, chaos.WithEventSink(s.sinks[0]))
	default:
		injOpts = append(injOpts, chaos.WithEventSink(s.sinks))
	}
	s.injector = chaos.NewInjector(chaos.EmptyRegistry(), injOpts...)
	return s
}

// Injector returns the server's injector.
func (s *Server) Injector() *chaos.Injector {
	return s.injector
}

// Responder returns the mock responder.
func (s *Server) Responder() *Responder {
	return s.responder
}

// RouteFiles returns the configured load paths.
func (s *Server) RouteFiles() []string {
	return append([]string(nil), s.paths...)
}

// Uptime returns the time since the server was created.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Reload re-reads the route files and installs them. On error the current
// routes stay active.
func (s *Server) Reload() (int, error) {
	if len(s.paths) == 0 {
		err := errors.New("no route files configured")
		s.observeReload(0, err)
		return 0, err
	}
	f, err := config.Load(s.paths...)
	if err != nil {
		s.observeReload(0, err)
		return 0, err
	}
	return s.Apply(f)
}

// Apply installs the routes of f. On error the current routes stay active.
func (s *Server) Apply(f *config.File) (int, error) {
	n, err := s.apply(f)
	s.observeReload(n, err)
	return n, err
}

func (s *Server) apply(f *config.File) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings, err := f.Bindings()
	if err != nil {
		return 0, err
	}
	reg, err := chaos.NewRouteRegistry(bindings)
	if err != nil {
		return 0, err
	}
	responses, err := compileResponses(f.Routes)
	if err != nil {
		return 0, err
	}

	s.injector.Swap(reg)
	s.responder.store(responses)
	return reg.Len(), nil
}

func (s *Server) observeReload(routes int, err error) {
	if s.metrics != nil {
		s.metrics.ObserveReload(routes, err)
	}
}

// Watcher returns a watcher that applies route file changes to the server.
func (s *Server) Watcher(opts ...config.WatchOption) (*config.Watcher, error) {
	opts = append([]config.WatchOption{
		config.WithWatchLogger(s.log),
		config.WithReloadObserver(s.observeReload),
	}, opts...)
	return config.NewWatcher(s.paths, func(f *config.File) error {
		_, err := s.apply(f)
		return err
	}, opts...)
}

// Handler returns the mock responder wrapped in chaos injection and, when
// metrics are configured, request counting.
func (s *Server) Handler() http.Handler {
	tags := chaos.HeaderTags(chaos.TagHeader)
	if s.tags != nil {
		tags = chaos.ChainTags(tags, s.tags)
	}
	var h http.Handler = chaos.NewMiddleware(s.responder, s.injector,
		chaos.WithTagResolver(tags),
		chaos.WithMiddlewareLogger(s.log),
	)
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	return h
}

// Serve serves Handler on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return httputil.Serve(ctx, ln, s.Handler(), s.log, "mock server")
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return httputil.ListenAndServe(ctx, addr, s.Handler(), s.log, "mock server")
}

// NewGRPCServer returns a gRPC server whose calls pass through the injector.
// It carries the standard health service and server reflection, so chaos
// routes such as "POST /grpc.health.v1.Health/Check" can be exercised with
// stock tooling.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(chaosgrpc.UnaryServerInterceptor(s.injector)),
		grpc.ChainStreamInterceptor(chaosgrpc.StreamServerInterceptor(s.injector)),
	)
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)
	return srv
}

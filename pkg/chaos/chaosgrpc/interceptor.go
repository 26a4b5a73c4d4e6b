// Package chaosgrpc applies a chaos.Injector to gRPC servers.
//
// Routes are matched with method "POST" and the full gRPC method name as the
// path, so a binding for "/shop.Catalog/GetItem" or "/shop.Catalog/*" applies
// to that RPC. Tags are read from the x-chaos-tags metadata key.
package chaosgrpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// TagMetadataKey is the incoming metadata key carrying chaos tags.
const TagMetadataKey = "x-chaos-tags"

// routeMethod is the method every RPC is resolved under.
const routeMethod = http.MethodPost

// UnaryServerInterceptor injects faults and latency before unary handlers run.
func UnaryServerInterceptor(inj *chaos.Injector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := apply(ctx, inj, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor injects faults and latency before a stream starts.
func StreamServerInterceptor(inj *chaos.Injector) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := apply(ss.Context(), inj, info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func apply(ctx context.Context, inj *chaos.Injector, fullMethod string) error {
	if inj == nil {
		return nil
	}
	tags := TagsFromContext(ctx)

	if fault := inj.GetFaultResponse(routeMethod, fullMethod, tags); fault != nil {
		return faultError(ctx, fault)
	}

	plan := inj.PlanLatency(routeMethod, fullMethod, tags)
	if err := inj.Execute(ctx, plan); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}

func faultError(ctx context.Context, fault *chaos.FaultResponse) error {
	switch fault.Kind {
	case chaos.FaultConnectionError:
		return status.Error(codes.Unavailable, fault.Message)
	case chaos.FaultTimeout:
		t := time.NewTimer(fault.Timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-t.C:
		}
		return status.Error(codes.DeadlineExceeded, fault.Message)
	case chaos.FaultPartialResponse, chaos.FaultPayloadCorruption:
		return status.Error(codes.DataLoss, fault.Message)
	default:
		return status.Error(CodeFromHTTPStatus(fault.Status), fault.Message)
	}
}

// TagsFromContext returns the chaos tags from incoming metadata. Values may be
// comma-separated and the key may repeat.
func TagsFromContext(ctx context.Context) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	var tags []string
	for _, v := range md.Get(TagMetadataKey) {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// CodeFromHTTPStatus maps an HTTP status to the closest gRPC code.
func CodeFromHTTPStatus(statusCode int) codes.Code {
	switch statusCode {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	switch {
	case statusCode >= 500:
		return codes.Internal
	case statusCode >= 400:
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}

package cli

import "errors"

// Common CLI errors
var (
	ErrInvalidRoutes  = errors.New("route files are invalid")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrNoListener     = errors.New("nothing to serve: --addr and --admin-addr are both empty")
)

// Package tags derives chaos tags for requests from an OpenAPI document.
package tags

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// OperationTagPrefix marks the tag derived from an operationId.
const OperationTagPrefix = "operation:"

type operation struct {
	method  string
	matcher *chaos.PathMatcher
	tags    []string
}

// OpenAPIResolver tags a request with the tags of the OpenAPI operation it
// hits, followed by "operation:<operationId>". It implements chaos.TagResolver.
type OpenAPIResolver struct {
	ops []operation
}

// LoadSpec loads an OpenAPI spec from a file path
func LoadSpec(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load spec from file %s: %w", path, err)
	}
	return doc, nil
}

// LoadSpecFromData loads an OpenAPI spec from raw JSON or YAML.
func LoadSpecFromData(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}
	return doc, nil
}

// NewOpenAPIResolverFromFile loads, validates and indexes the spec at path.
func NewOpenAPIResolverFromFile(ctx context.Context, path string) (*OpenAPIResolver, error) {
	doc, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return NewOpenAPIResolver(ctx, doc)
}

// NewOpenAPIResolver validates doc and indexes its operations. Paths without
// template parameters are tried before templated ones.
func NewOpenAPIResolver(ctx context.Context, doc *openapi3.T) (*OpenAPIResolver, error) {
	if doc == nil {
		return nil, fmt.Errorf("OpenAPI document is required")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	res := &OpenAPIResolver{}
	if doc.Paths == nil {
		return res, nil
	}
	for path, item := range doc.Paths.Map() {
		matcher, err := chaos.CompilePath(path)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", path, err)
		}
		for method, op := range item.Operations() {
			tags := append([]string(nil), op.Tags...)
			if op.OperationID != "" {
				tags = append(tags, OperationTagPrefix+op.OperationID)
			}
			if len(tags) == 0 {
				continue
			}
			res.ops = append(res.ops, operation{
				method:  strings.ToUpper(method),
				matcher: matcher,
				tags:    tags,
			})
		}
	}

	sort.Slice(res.ops, func(i, j int) bool {
		pi, pj := res.ops[i].matcher.Pattern(), res.ops[j].matcher.Pattern()
		if ci, cj := strings.Count(pi, "{"), strings.Count(pj, "{"); ci != cj {
			return ci < cj
		}
		if pi != pj {
			return pi < pj
		}
		return res.ops[i].method < res.ops[j].method
	})
	return res, nil
}

// Tags returns the tags of the operation matching method and path.
func (r *OpenAPIResolver) Tags(method, path string) []string {
	if r == nil {
		return nil
	}
	method = strings.ToUpper(method)
	for _, op := range r.ops {
		if op.method == method && op.matcher.Match(path) {
			return append([]string(nil), op.tags...)
		}
	}
	return nil
}

// ResolveTags implements chaos.TagResolver.
func (r *OpenAPIResolver) ResolveTags(req *http.Request) []string {
	return r.Tags(req.Method, req.URL.Path)
}

// Len returns the number of tagged operations.
func (r *OpenAPIResolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ops)
}

var _ chaos.TagResolver = (*OpenAPIResolver)(nil)

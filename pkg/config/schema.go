package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

// SchemaJSON returns the JSON Schema route files are checked against.
func SchemaJSON() []byte {
	return bytes.Clone(schemaJSON)
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile("schema.json")
})

// FieldError is a single configuration problem.
type FieldError struct {
	Source  string // file the field came from, if known
	Path    string // e.g. "routes[2].failure.globalErrorRate"
	Message string
}

func (e FieldError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "invalid configuration"
	case 1:
		return "invalid configuration: " + e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors)+1)
	msgs = append(msgs, fmt.Sprintf("invalid configuration (%d errors):", len(e.Errors)))
	for _, fe := range e.Errors {
		msgs = append(msgs, "  "+fe.Error())
	}
	return strings.Join(msgs, "\n")
}

func (e *ValidationError) add(source, path, message string) {
	e.Errors = append(e.Errors, FieldError{Source: source, Path: path, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// validateDocument checks a decoded document against the route file schema.
// doc must hold JSON values (maps, slices, json.Number, strings, bools, nil).
func validateDocument(doc any, source string) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling route schema: %w", err)
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &ValidationError{}
	collectSchemaErrors(verr, source, out)
	return out.orNil()
}

func collectSchemaErrors(err *jsonschema.ValidationError, source string, out *ValidationError) {
	if len(err.Causes) == 0 {
		out.add(source, pointerToPath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, source, out)
	}
}

// pointerToPath turns a JSON Pointer such as /routes/2/failure/globalErrorRate
// into routes[2].failure.globalErrorRate.
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range strings.Split(ptr, "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Package config loads chaos route files for mockd-chaos.
//
// A route file lists route bindings, each a method and path template with
// optional latency, failure and fault blocks, a named preset, and an optional
// canned response:
//
//	version: "1"
//	include:
//	  - routes/**/*.yaml
//	routes:
//	  - name: get-user
//	    method: GET
//	    path: /users/{id}
//	    latency:
//	      baseMs: 100
//	      jitterMs: 10
//	    failure:
//	      globalErrorRate: 0.05
//	      defaultStatusCodes: [503]
//	  - path: /reports/*
//	    preset: slow-api
//
// Files are YAML (.yaml, .yml) or JSON. ${VAR} and ${VAR:-default} references
// are expanded before parsing, the raw document is checked against an embedded
// JSON Schema, and include patterns (doublestar globs, relative to the including
// file) are loaded in sorted order after the file's own routes.
//
// A Watcher re-reads the file set when any of it changes and hands the result
// to a callback, which typically swaps the injector's registry.
package config

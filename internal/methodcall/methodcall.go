// Package methodcall enforces the ORCH_INPUT_STYLE contract: some domain
// methods accept a designated parameter either as a bare scalar or as a
// single-element list, and the environment variable pins which shape is
// acceptable so a pipeline's behavior doesn't silently change under a
// disguised single-element list.
package methodcall

import (
	"os"
	"strings"

	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// Styles ORCH_INPUT_STYLE accepts.
const (
	StyleAuto         = "auto"
	StyleStrictSingle = "strict_single"
	StyleEnforceList  = "enforce_list"

	inputStyleEnvVar = "ORCH_INPUT_STYLE"
)

// StyleFromEnv reads ORCH_INPUT_STYLE, defaulting to "auto" when unset or
// unrecognized.
func StyleFromEnv() string {
	switch v := os.Getenv(inputStyleEnvVar); v {
	case StyleStrictSingle, StyleEnforceList:
		return v
	default:
		return StyleAuto
	}
}

// DisabledPlugins returns the set of plug-in component names the registry
// must skip when re-scanning on Refresh: the comma-separated
// ORCH_DISABLE_PLUGINS variable, plus one name per line from a
// .pipeline_disable_plugins file in the working directory when present.
func DisabledPlugins() map[string]bool {
	out := make(map[string]bool)
	add := func(raw string) {
		if name := strings.TrimSpace(raw); name != "" {
			out[name] = true
		}
	}
	for _, name := range strings.Split(os.Getenv("ORCH_DISABLE_PLUGINS"), ",") {
		add(name)
	}
	if data, err := os.ReadFile(".pipeline_disable_plugins"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			add(line)
		}
	}
	return out
}

// Guard wraps fn so that, for every name in listParams, the argument's
// shape is checked against style before fn ever sees it. "auto" performs
// no check. A violation returns InputStyleError rather than calling fn.
//
// fn and the returned closure use registry.Callable's underlying function
// shape directly rather than the named type, so this package stays free of
// an import on internal/registry: registry.Register wraps every incoming
// Registration.Callable with Guard, so the dependency runs registry ->
// methodcall, never the reverse.
func Guard(component, method, style string, listParams []string, fn func(args map[string]interface{}) (interface{}, error)) func(args map[string]interface{}) (interface{}, error) {
	if style == StyleAuto || style == "" {
		return fn
	}
	return func(args map[string]interface{}) (interface{}, error) {
		for _, name := range listParams {
			v, ok := args[name]
			if !ok {
				continue
			}
			list, isList := v.([]interface{})

			switch style {
			case StyleStrictSingle:
				if isList && len(list) == 1 {
					return nil, &orcherrors.InputStyleError{
						Component: component, Method: method, Style: style,
						Detail: "parameter " + name + " arrived as a disguised single-element list",
					}
				}
			case StyleEnforceList:
				if !isList {
					return nil, &orcherrors.InputStyleError{
						Component: component, Method: method, Style: style,
						Detail: "parameter " + name + " must be a list under enforce_list",
					}
				}
			}
		}
		return fn(args)
	}
}

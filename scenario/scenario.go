package scenario

// Package scenario holds the test-case catalogue: named sequences of
// protocol calls plus assertions, executed against the server under test.

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Prepared is what the preparation phase of a scenario hands back to the
// driver: where the configuration of the server under test was written, and
// which storage it expects.
type Prepared struct {
	ConfigPath  string
	StorageName string
}

// Scenario is one test case. The registry is polymorphic over this
// capability: prepare server-side state, then execute assertions against a
// server handle.
type Scenario interface {
	Name() string
	// Prepare seeds server-side state and generates the configuration the
	// server under test must be started with.
	Prepare(ctx context.Context, env *Env) (*Prepared, error)
	// Execute runs the scenario's calls and assertions against the server
	// now serving the prepared configuration.
	Execute(ctx context.Context, env *Env) error
}

// Failure is an assertion failure inside a scenario. It is recorded and the
// run continues; any other error aborts or marks the scenario as errored.
type Failure struct {
	msg string
}

func (f *Failure) Error() string { return f.msg }

// Failf builds an assertion failure.
func Failf(format string, args ...any) error {
	return &Failure{msg: fmt.Sprintf(format, args...)}
}

// Registry maps scenario names to descriptors. It is built once at startup
// and never mutated during a run; the catalogue order is the registration
// order, so selection is deterministic.
type Registry struct {
	order  []string
	byName map[string]Scenario
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Scenario)}
}

// Register adds one scenario. Duplicate names are a programming error.
func (r *Registry) Register(s Scenario) error {
	name := s.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("scenario %q registered twice", name)
	}
	r.order = append(r.order, name)
	r.byName[name] = s
	return nil
}

// Names returns every registered name in catalogue order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Select filters the catalogue by glob patterns, falling back to substring
// matching for patterns without metacharacters. No patterns selects
// everything; an empty result is not an error. The returned order is the
// catalogue order, stable across repeated invocations.
func (r *Registry) Select(patterns []string) []Scenario {
	var selected []Scenario
	for _, name := range r.order {
		if matchAny(patterns, name) {
			selected = append(selected, r.byName[name])
		}
	}
	return selected
}

func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
		if !strings.ContainsAny(p, "*?[") && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

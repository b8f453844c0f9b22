package config

// The benchmark plan: which database backends to measure, at which size,
// with how many repetitions. Loaded from a YAML file so a plan can be
// versioned next to the database images it expects.

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Backend identifies the database backend of one benchmark configuration.
type Backend string

const (
	BackendSQLite       Backend = "sqlite"
	BackendSQLitePlugin Backend = "sqliteplugin"
	BackendMySQL        Backend = "mysql"
	BackendPG9          Backend = "pg9"
	BackendPG10         Backend = "pg10"
	BackendPG11         Backend = "pg11"
	BackendMSSQL        Backend = "mssql"
)

// NeedsServer reports whether the backend runs as a separate database
// server container (SQLite variants are embedded).
func (b Backend) NeedsServer() bool {
	return b != BackendSQLite && b != BackendSQLitePlugin
}

var knownBackends = map[Backend]bool{
	BackendSQLite:       true,
	BackendSQLitePlugin: true,
	BackendMySQL:        true,
	BackendPG9:          true,
	BackendPG10:         true,
	BackendPG11:         true,
	BackendMSSQL:        true,
}

// Size selects how much data the populator seeds before measuring.
type Size string

const (
	SizeTiny   Size = "tiny"
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
)

var knownSizes = map[Size]bool{
	SizeTiny:   true,
	SizeSmall:  true,
	SizeMedium: true,
}

// PlanEntry is one benchmark configuration: a backend at a given size.
type PlanEntry struct {
	Label   string  `yaml:"label"`
	Backend Backend `yaml:"backend"`
	Size    Size    `yaml:"size"`
	// Host port the database container publishes; ignored for SQLite
	Port int `yaml:"port,omitempty"`
}

// Plan is the full benchmark plan.
type Plan struct {
	// Default repetitions per trial, overridable from the command line
	Repeat  int         `yaml:"repeat"`
	Entries []PlanEntry `yaml:"backends"`
}

// ConfigurationError means the CLI arguments or a loaded plan are invalid.
// It is fatal and reported before any server starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// LoadPlan reads and validates a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, &ConfigurationError{Field: path, Reason: err.Error()}
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// DefaultPlan is used when no plan file is given.
func DefaultPlan() *Plan {
	return &Plan{
		Repeat: 50,
		Entries: []PlanEntry{
			{Label: "sqlite-small", Backend: BackendSQLite, Size: SizeSmall},
			{Label: "mysql-small", Backend: BackendMySQL, Size: SizeSmall, Port: 2000},
			{Label: "pg11-small", Backend: BackendPG11, Size: SizeSmall, Port: 2003},
		},
	}
}

// Validate checks the plan for missing or contradictory fields.
func (p *Plan) Validate() error {
	if p.Repeat < 0 {
		return &ConfigurationError{Field: "repeat", Reason: "must be positive"}
	}
	if len(p.Entries) == 0 {
		return &ConfigurationError{Field: "backends", Reason: "plan has no entries"}
	}
	seen := map[string]bool{}
	for i, e := range p.Entries {
		field := fmt.Sprintf("backends[%d]", i)
		if e.Label == "" {
			return &ConfigurationError{Field: field, Reason: "label is required"}
		}
		if seen[e.Label] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("duplicate label %q", e.Label)}
		}
		seen[e.Label] = true
		if !knownBackends[e.Backend] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("unknown backend %q", e.Backend)}
		}
		if !knownSizes[e.Size] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("unknown size %q", e.Size)}
		}
		if e.Backend.NeedsServer() && e.Port == 0 {
			return &ConfigurationError{Field: field, Reason: "port is required for server-based backends"}
		}
	}
	return nil
}

// Select returns the entries matching the given labels, sorted by label.
// With no labels, every entry is selected. Unknown labels are a
// configuration error.
func (p *Plan) Select(labels []string) ([]PlanEntry, error) {
	byLabel := make(map[string]PlanEntry, len(p.Entries))
	for _, e := range p.Entries {
		byLabel[e.Label] = e
	}

	var selected []PlanEntry
	if len(labels) == 0 {
		selected = append(selected, p.Entries...)
	} else {
		for _, l := range labels {
			e, ok := byLabel[l]
			if !ok {
				return nil, &ConfigurationError{Field: "backend", Reason: fmt.Sprintf("no plan entry labeled %q", l)}
			}
			selected = append(selected, e)
		}
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Label < selected[j].Label })
	return selected, nil
}

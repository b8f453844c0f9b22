package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPlanIsValid(t *testing.T) {
	require.NoError(t, DefaultPlan().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name:    "no entries",
			plan:    Plan{Repeat: 10},
			wantErr: "no entries",
		},
		{
			name: "missing label",
			plan: Plan{Entries: []PlanEntry{
				{Backend: BackendSQLite, Size: SizeSmall},
			}},
			wantErr: "label is required",
		},
		{
			name: "duplicate label",
			plan: Plan{Entries: []PlanEntry{
				{Label: "a", Backend: BackendSQLite, Size: SizeSmall},
				{Label: "a", Backend: BackendSQLite, Size: SizeTiny},
			}},
			wantErr: "duplicate label",
		},
		{
			name: "unknown backend",
			plan: Plan{Entries: []PlanEntry{
				{Label: "a", Backend: "oracle", Size: SizeSmall},
			}},
			wantErr: "unknown backend",
		},
		{
			name: "unknown size",
			plan: Plan{Entries: []PlanEntry{
				{Label: "a", Backend: BackendSQLite, Size: "huge"},
			}},
			wantErr: "unknown size",
		},
		{
			name: "server backend without port",
			plan: Plan{Entries: []PlanEntry{
				{Label: "a", Backend: BackendMySQL, Size: SizeSmall},
			}},
			wantErr: "port is required",
		},
		{
			name: "sqlite needs no port",
			plan: Plan{Entries: []PlanEntry{
				{Label: "a", Backend: BackendSQLite, Size: SizeSmall},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSelectAllSortedByLabel(t *testing.T) {
	plan := &Plan{Entries: []PlanEntry{
		{Label: "pg11-small", Backend: BackendPG11, Size: SizeSmall, Port: 2003},
		{Label: "mysql-small", Backend: BackendMySQL, Size: SizeSmall, Port: 2000},
	}}

	entries, err := plan.Select(nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "mysql-small", entries[0].Label)
	require.Equal(t, "pg11-small", entries[1].Label)
}

func TestSelectByLabel(t *testing.T) {
	plan := DefaultPlan()

	entries, err := plan.Select([]string{"sqlite-small"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, BackendSQLite, entries[0].Backend)
}

func TestSelectUnknownLabel(t *testing.T) {
	_, err := DefaultPlan().Select([]string{"db2-small"})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repeat: 25
backends:
  - label: sqlite-tiny
    backend: sqlite
    size: tiny
  - label: mysql-small
    backend: mysql
    size: small
    port: 2000
`), 0o644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Equal(t, 25, plan.Repeat)
	require.Len(t, plan.Entries, 2)
	require.Equal(t, BackendMySQL, plan.Entries[1].Backend)
	require.Equal(t, 2000, plan.Entries[1].Port)
}

func TestLoadPlanRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backends:
  - label: broken
    backend: mysql
    size: small
`), 0o644))

	_, err := LoadPlan(path)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}

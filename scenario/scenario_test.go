package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeScenario struct {
	name     string
	prepare  func(ctx context.Context, env *Env) (*Prepared, error)
	execute  func(ctx context.Context, env *Env) error
	prepared int
	executed int
}

func (f *fakeScenario) Name() string { return f.name }

func (f *fakeScenario) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	f.prepared++
	if f.prepare != nil {
		return f.prepare(ctx, env)
	}
	return &Prepared{}, nil
}

func (f *fakeScenario) Execute(ctx context.Context, env *Env) error {
	f.executed++
	if f.execute != nil {
		return f.execute(ctx, env)
	}
	return nil
}

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	registry := NewRegistry()
	for _, name := range names {
		require.NoError(t, registry.Register(&fakeScenario{name: name}))
	}
	return registry
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeScenario{name: "Jobs"}))
	require.Error(t, registry.Register(&fakeScenario{name: "Jobs"}))
}

func TestSelectNoPatternsSelectsAll(t *testing.T) {
	registry := newTestRegistry(t, "Housekeeper", "Jobs", "MaxStorageReject")
	selected := registry.Select(nil)
	require.Len(t, selected, 3)
}

func TestSelectPreservesCatalogueOrder(t *testing.T) {
	registry := newTestRegistry(t, "Housekeeper", "Jobs", "MaxStorageReject")

	// patterns given in reverse order must not reorder the selection
	selected := registry.Select([]string{"MaxStorageReject", "Housekeeper"})
	require.Len(t, selected, 2)
	require.Equal(t, "Housekeeper", selected[0].Name())
	require.Equal(t, "MaxStorageReject", selected[1].Name())
}

func TestSelectIsDeterministic(t *testing.T) {
	registry := newTestRegistry(t, "Housekeeper", "Jobs", "MaxStorageReject")

	first := registry.Select([]string{"*"})
	second := registry.Select([]string{"*"})
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Name(), second[i].Name())
	}
	require.Len(t, first, 3)
}

func TestSelectGlobAndSubstring(t *testing.T) {
	registry := newTestRegistry(t, "Housekeeper", "Jobs", "MaxStorageReject")

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "glob",
			patterns: []string{"Max*"},
			want:     []string{"MaxStorageReject"},
		},
		{
			name:     "substring fallback",
			patterns: []string{"keeper"},
			want:     []string{"Housekeeper"},
		},
		{
			name:     "no match",
			patterns: []string{"Transfers"},
			want:     nil,
		},
		{
			name:     "several patterns",
			patterns: []string{"Jobs", "Max*"},
			want:     []string{"Jobs", "MaxStorageReject"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range registry.Select(tt.patterns) {
				got = append(got, s.Name())
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultRegistryCatalogue(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)
	require.Equal(t, []string{
		"Housekeeper",
		"Jobs",
		"MaxStorageReject",
		"QueryRetrieve",
		"StorageCompression",
		"Worklists",
	}, registry.Names())
}

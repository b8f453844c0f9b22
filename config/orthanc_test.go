package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteAppliesDefaults(t *testing.T) {
	conf := Complete(map[string]any{}, Options{
		Name:      "jobs_under_test",
		HTTPPort:  8052,
		DicomPort: 4252,
	})

	require.Equal(t, "jobs_under_test", conf["Name"])
	require.Equal(t, 8052, conf["HttpPort"])
	require.Equal(t, 4252, conf["DicomPort"])
	require.Equal(t, false, conf["AuthenticationEnabled"])
	require.Equal(t, true, conf["RemoteAccessAllowed"])
}

func TestCompleteCallerKeysWin(t *testing.T) {
	conf := Complete(map[string]any{
		"HttpPort":              9000,
		"AuthenticationEnabled": true,
	}, Options{Name: "n", HTTPPort: 8052, DicomPort: 4252})

	require.Equal(t, 9000, conf["HttpPort"])
	require.Equal(t, true, conf["AuthenticationEnabled"])
}

func TestCompleteDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"StorageCompression": true}
	_ = Complete(in, Options{Name: "n", HTTPPort: 8052, DicomPort: 4252})
	require.Equal(t, map[string]any{"StorageCompression": true}, in)
}

func TestCompleteStorageDirectoryOnlyWhenGiven(t *testing.T) {
	// exe mode passes a host path, container mode mounts a volume instead
	withStorage := Complete(map[string]any{}, Options{Name: "n", HTTPPort: 1, DicomPort: 2, StorageDirectory: "/tmp/storages/jobs"})
	require.Equal(t, "/tmp/storages/jobs", withStorage["StorageDirectory"])

	withoutStorage := Complete(map[string]any{}, Options{Name: "n", HTTPPort: 1, DicomPort: 2})
	_, present := withoutStorage["StorageDirectory"]
	require.False(t, present)
}

func TestCompletePluginsAndAET(t *testing.T) {
	conf := Complete(map[string]any{}, Options{
		Name: "n", HTTPPort: 1, DicomPort: 2,
		AET:     "HARNESS",
		Plugins: []string{"/plugins/libHousekeeper.so"},
	})
	require.Equal(t, []string{"/plugins/libHousekeeper.so"}, conf["Plugins"])
	require.Equal(t, "HARNESS", conf["DicomAet"])
}

func TestWithModality(t *testing.T) {
	conf := WithModality(map[string]any{}, "self", "ORTHANC", "localhost", 4252)
	modalities := conf["DicomModalities"].(map[string]any)
	require.Equal(t, []any{"ORTHANC", "localhost", 4252}, modalities["self"])
}

func TestWithPeer(t *testing.T) {
	conf := WithPeer(map[string]any{}, "transfer-target", "http://localhost:8053", "alice", "secret")
	peers := conf["OrthancPeers"].(map[string]any)
	require.Equal(t, []any{"http://localhost:8053", "alice", "secret"}, peers["transfer-target"])

	conf = WithPeer(conf, "anonymous", "http://localhost:8054", "", "")
	peers = conf["OrthancPeers"].(map[string]any)
	require.Equal(t, []any{"http://localhost:8054"}, peers["anonymous"])
}

func TestWithDatabaseSections(t *testing.T) {
	tests := []struct {
		backend Backend
		section string
	}{
		{BackendMySQL, "MySQL"},
		{BackendPG9, "PostgreSQL"},
		{BackendPG10, "PostgreSQL"},
		{BackendPG11, "PostgreSQL"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			conf, err := WithDatabase(map[string]any{}, tt.backend, 2000, "")
			require.NoError(t, err)

			section := conf[tt.section].(map[string]any)
			require.Equal(t, true, section["EnableIndex"])
			require.Equal(t, false, section["EnableStorage"])
			require.Equal(t, 2000, section["Port"])
			require.Equal(t, "orthanc", section["Username"])
		})
	}
}

func TestWithDatabaseSQLite(t *testing.T) {
	conf, err := WithDatabase(map[string]any{}, BackendSQLite, 0, "/tmp/storages/sqlite-small")
	require.NoError(t, err)
	require.Equal(t, "/tmp/storages/sqlite-small", conf["IndexDirectory"])
	_, present := conf["PostgreSQL"]
	require.False(t, present)
}

func TestWithDatabaseMSSQL(t *testing.T) {
	conf, err := WithDatabase(map[string]any{}, BackendMSSQL, 2004, "")
	require.NoError(t, err)
	section := conf["MSSQL"].(map[string]any)
	require.Contains(t, section["ConnectionString"], "tcp:index,2004")
}

func TestWriteProducesParsableJSON(t *testing.T) {
	dir := t.TempDir()
	conf := Complete(map[string]any{}, Options{Name: "housekeeper_under_test", HTTPPort: 8052, DicomPort: 4252})

	path, err := Write(dir, "housekeeper_under_test", conf)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "housekeeper_under_test.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "housekeeper_under_test", decoded["Name"])
}

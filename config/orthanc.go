package config

// Generation of the JSON configuration files consumed by the Orthanc
// instances the harness launches.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults merged into every generated configuration. Caller-provided keys
// always win.
var baseDefaults = map[string]any{
	"AuthenticationEnabled": false,
	"RemoteAccessAllowed":   true,
}

// Options are the harness-level settings completed into a configuration.
type Options struct {
	// Configuration name, becomes the "Name" field and the file name
	Name      string
	HTTPPort  int
	DicomPort int
	// AE title; empty keeps the server default
	AET string
	// Plugin shared-library paths
	Plugins []string
	// Storage directory; empty omits the field (container mode mounts the
	// storage as a volume instead)
	StorageDirectory string
}

// Complete returns a copy of conf with the options and the base defaults
// filled in. Keys already present in conf are never overwritten.
func Complete(conf map[string]any, opts Options) map[string]any {
	out := make(map[string]any, len(conf)+8)
	for k, v := range conf {
		out[k] = v
	}

	if len(opts.Plugins) > 0 {
		setDefault(out, "Plugins", opts.Plugins)
	}
	if opts.StorageDirectory != "" {
		setDefault(out, "StorageDirectory", opts.StorageDirectory)
	}
	setDefault(out, "Name", opts.Name)
	setDefault(out, "HttpPort", opts.HTTPPort)
	setDefault(out, "DicomPort", opts.DicomPort)
	if opts.AET != "" {
		setDefault(out, "DicomAet", opts.AET)
	}
	for k, v := range baseDefaults {
		setDefault(out, k, v)
	}
	return out
}

func setDefault(conf map[string]any, key string, value any) {
	if _, ok := conf[key]; !ok {
		conf[key] = value
	}
}

// WithModality registers a DICOM modality under the given alias.
func WithModality(conf map[string]any, alias, aet, host string, dicomPort int) map[string]any {
	modalities, _ := conf["DicomModalities"].(map[string]any)
	if modalities == nil {
		modalities = map[string]any{}
	}
	modalities[alias] = []any{aet, host, dicomPort}
	conf["DicomModalities"] = modalities
	return conf
}

// WithPeer registers an Orthanc peer under the given alias.
func WithPeer(conf map[string]any, alias, url, username, password string) map[string]any {
	peers, _ := conf["OrthancPeers"].(map[string]any)
	if peers == nil {
		peers = map[string]any{}
	}
	entry := []any{url}
	if username != "" {
		entry = append(entry, username, password)
	}
	peers[alias] = entry
	conf["OrthancPeers"] = peers
	return conf
}

// WithDatabase adds the index-plugin section for the given backend. SQLite
// variants only set the index directory.
func WithDatabase(conf map[string]any, backend Backend, port int, indexDir string) (map[string]any, error) {
	common := map[string]any{
		"EnableIndex":   true,
		"EnableStorage": false,
		"Host":          "127.0.0.1",
		"Lock":          false,
		"Port":          port,
	}

	switch backend {
	case BackendMySQL:
		common["Database"] = "orthanc"
		common["Username"] = "orthanc"
		common["Password"] = "orthanc"
		conf["MySQL"] = common
	case BackendPG9, BackendPG10, BackendPG11:
		common["Database"] = "orthanc"
		common["Username"] = "orthanc"
		common["Password"] = "orthanc"
		conf["PostgreSQL"] = common
	case BackendMSSQL:
		conf["MSSQL"] = map[string]any{
			"EnableIndex": true,
			"Lock":        false,
			"ConnectionString": fmt.Sprintf(
				"Driver={ODBC Driver 13 for SQL Server};Server=tcp:index,%d;Database=master;Uid=sa;Pwd=MyStrOngPa55word!;Encrypt=yes;TrustServerCertificate=yes;Connection Timeout=30",
				port),
		}
	case BackendSQLite, BackendSQLitePlugin:
		conf["IndexDirectory"] = indexDir
	default:
		return nil, &ConfigurationError{Field: "backend", Reason: fmt.Sprintf("unsupported database backend %q", backend)}
	}
	return conf, nil
}

// Write serializes a completed configuration into dir/<name>.json and
// returns the file path.
func Write(dir, name string, conf map[string]any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create configuration directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(conf, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration %s: %w", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write configuration %s: %w", path, err)
	}
	return path, nil
}

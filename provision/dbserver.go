package provision

// Dockerized database backends for the benchmark runner. The database
// engines are external collaborators: the harness only starts, checks and
// removes their containers.

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/config"
)

// DBDefinition describes how one database engine runs under docker.
type DBDefinition struct {
	Image        string
	InternalPort int
	Env          map[string]string
	StoragePath  string
	Command      []string
}

// DefinitionFor returns the docker definition of a server-based backend.
func DefinitionFor(backend config.Backend) (DBDefinition, error) {
	switch backend {
	case config.BackendMySQL:
		return DBDefinition{
			Image:        "mysql:8.0",
			InternalPort: 3306,
			Env: map[string]string{
				"MYSQL_DATABASE":      "orthanc",
				"MYSQL_USER":          "orthanc",
				"MYSQL_PASSWORD":      "orthanc",
				"MYSQL_ROOT_PASSWORD": "foo-root",
			},
			StoragePath: "/var/lib/mysql",
			Command:     []string{"mysqld", "--default-authentication-plugin=mysql_native_password", "--log-bin-trust-function-creators=1"},
		}, nil
	case config.BackendPG9, config.BackendPG10, config.BackendPG11:
		image := map[config.Backend]string{
			config.BackendPG9:  "postgres:9",
			config.BackendPG10: "postgres:10",
			config.BackendPG11: "postgres:11",
		}[backend]
		return DBDefinition{
			Image:        image,
			InternalPort: 5432,
			Env: map[string]string{
				"POSTGRES_USER":     "orthanc",
				"POSTGRES_PASSWORD": "orthanc",
				"POSTGRES_DB":       "orthanc",
			},
			StoragePath: "/var/lib/postgresql/data",
		}, nil
	case config.BackendMSSQL:
		return DBDefinition{
			Image:        "microsoft/mssql-server-linux",
			InternalPort: 1433,
			Env: map[string]string{
				"ACCEPT_EULA": "Y",
				"SA_PASSWORD": "MyStrOngPa55word!",
			},
			StoragePath: "/var/opt/mssql/data",
		}, nil
	default:
		return DBDefinition{}, fmt.Errorf("backend %q does not run as a server", backend)
	}
}

// BuildDBRunArgs builds the docker command line for a database container.
// Environment variables are emitted in sorted order so the command line is
// deterministic.
func BuildDBRunArgs(label string, port int, def DBDefinition) []string {
	args := []string{
		"run", "-d",
		"--name=" + label,
		"-p", fmt.Sprintf("%d:%d", port, def.InternalPort),
		"--volume=" + label + ":" + def.StoragePath,
	}

	keys := make([]string, 0, len(def.Env))
	for k := range def.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--env", k+"="+def.Env[k])
	}

	args = append(args, def.Image)
	return append(args, def.Command...)
}

// DBServer is one database backend container, addressed by its label: the
// label names the container and its data volume.
type DBServer struct {
	Label   string
	Port    int
	Backend config.Backend

	logger zerolog.Logger
}

// NewDBServer creates a database server description.
func NewDBServer(logger zerolog.Logger, label string, backend config.Backend, port int) *DBServer {
	return &DBServer{
		Label:   label,
		Port:    port,
		Backend: backend,
		logger:  logger.With().Str("db", label).Logger(),
	}
}

// IsRunning checks the container through `docker top`.
func (s *DBServer) IsRunning() bool {
	return exec.Command("docker", "top", s.Label).Run() == nil
}

// Launch creates the data volume (a no-op when it already exists), starts
// the container and waits for the published port to accept connections,
// with a bounded attempt count.
func (s *DBServer) Launch(ctx context.Context) error {
	def, err := DefinitionFor(s.Backend)
	if err != nil {
		return &ProvisioningError{Role: "db-server " + s.Label, Detail: "no docker definition", Err: err}
	}

	if s.IsRunning() {
		s.logger.Info().Msg("Database server is already running")
		return nil
	}

	if out, err := exec.CommandContext(ctx, "docker", "volume", "create", "--name="+s.Label).CombinedOutput(); err != nil {
		return &ProvisioningError{Role: "db-server " + s.Label, Detail: "volume creation failed: " + strings.TrimSpace(string(out)), Err: err}
	}

	args := BuildDBRunArgs(s.Label, s.Port, def)
	s.logger.Info().Str("image", def.Image).Int("port", s.Port).Msg("Launching database server")
	if out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput(); err != nil {
		return &ProvisioningError{Role: "db-server " + s.Label, Detail: "docker run failed: " + strings.TrimSpace(string(out)), Err: err}
	}

	return s.waitPortOpen(ctx, 30)
}

func (s *DBServer) waitPortOpen(ctx context.Context, attempts int) error {
	addr := net.JoinHostPort("localhost", strconv.Itoa(s.Port))
	for n := 0; n < attempts; n++ {
		select {
		case <-ctx.Done():
			return &ProvisioningError{Role: "db-server " + s.Label, Detail: "wait interrupted", Err: ctx.Err()}
		case <-time.After(time.Second):
		}
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			s.logger.Info().Msg("Database server ready")
			return nil
		}
	}
	return &ProvisioningError{Role: "db-server " + s.Label, Detail: fmt.Sprintf("port %d still closed after %d attempts", s.Port, attempts)}
}

// Stop stops and removes the container, keeping its data volume.
func (s *DBServer) Stop() error {
	if s.IsRunning() {
		if out, err := exec.Command("docker", "stop", s.Label).CombinedOutput(); err != nil {
			return fmt.Errorf("failed to stop %s: %w: %s", s.Label, err, strings.TrimSpace(string(out)))
		}
	}
	// the container may not exist at all; ignore removal failures
	_ = exec.Command("docker", "rm", s.Label).Run()
	return nil
}

// Clear stops the container and removes its data volume.
func (s *DBServer) Clear() error {
	if err := s.Stop(); err != nil {
		return err
	}
	_ = exec.Command("docker", "volume", "rm", s.Label).Run()
	s.logger.Info().Msg("Database cleared")
	return nil
}

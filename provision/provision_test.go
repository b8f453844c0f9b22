package provision

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orthanc-tools/harness/config"
)

func TestBuildDockerRunArgs(t *testing.T) {
	inst := NewInstance(zerolog.Nop(), "orthanc-under-tests", "jobs_under_test")
	inst.Mode = ModeDocker
	inst.Image = "orthancteam/orthanc:latest"
	inst.ConfigPath = "/tmp/configurations/jobs_under_test.json"
	inst.Storage = "jobs"
	inst.HTTPPort = 8052
	inst.DicomPort = 4252

	require.Equal(t, []string{
		"run", "--rm",
		"-e", "VERBOSE_ENABLED=true",
		"-e", "VERBOSE_STARTUP=true",
		"-v", "/tmp/configurations/jobs_under_test.json:/etc/orthanc/orthanc.json",
		"-v", "jobs:/var/lib/orthanc/db/",
		"--name", "jobs_under_test",
		"-p", "8052:8052",
		"-p", "4252:4252",
		"orthancteam/orthanc:latest",
	}, BuildDockerRunArgs(inst))
}

func TestStopWithoutStartIsIdempotent(t *testing.T) {
	inst := NewInstance(zerolog.Nop(), "orthanc-under-tests", "idle")
	require.NoError(t, inst.Stop())
	require.NoError(t, inst.Stop())
	require.Equal(t, StatusStopped, inst.Status())
}

func TestDefinitionFor(t *testing.T) {
	tests := []struct {
		backend config.Backend
		image   string
		port    int
	}{
		{config.BackendMySQL, "mysql:8.0", 3306},
		{config.BackendPG9, "postgres:9", 5432},
		{config.BackendPG10, "postgres:10", 5432},
		{config.BackendPG11, "postgres:11", 5432},
		{config.BackendMSSQL, "microsoft/mssql-server-linux", 1433},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			def, err := DefinitionFor(tt.backend)
			require.NoError(t, err)
			require.Equal(t, tt.image, def.Image)
			require.Equal(t, tt.port, def.InternalPort)
		})
	}
}

func TestDefinitionForEmbeddedBackend(t *testing.T) {
	_, err := DefinitionFor(config.BackendSQLite)
	require.Error(t, err)
}

func TestBuildDBRunArgs(t *testing.T) {
	def, err := DefinitionFor(config.BackendPG11)
	require.NoError(t, err)

	require.Equal(t, []string{
		"run", "-d",
		"--name=pg11-small",
		"-p", "2003:5432",
		"--volume=pg11-small:/var/lib/postgresql/data",
		"--env", "POSTGRES_DB=orthanc",
		"--env", "POSTGRES_PASSWORD=orthanc",
		"--env", "POSTGRES_USER=orthanc",
		"postgres:11",
	}, BuildDBRunArgs("pg11-small", 2003, def))
}

func TestBuildDBRunArgsAppendsCommand(t *testing.T) {
	def, err := DefinitionFor(config.BackendMySQL)
	require.NoError(t, err)

	args := BuildDBRunArgs("mysql-small", 2000, def)
	require.Equal(t, "mysql:8.0", args[len(args)-4])
	require.Equal(t, "mysqld", args[len(args)-3])
	require.Equal(t, "--default-authentication-plugin=mysql_native_password", args[len(args)-2])
	require.Equal(t, "--log-bin-trust-function-creators=1", args[len(args)-1])
}

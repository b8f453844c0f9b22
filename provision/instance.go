package provision

// Package provision materializes runnable server instances, either from a
// local executable or from a docker image, and owns their lifecycle.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/orthanc"
)

// ProvisioningError means a server failed to start or never became ready
// within the bounded wait. It is fatal and aborts the run.
type ProvisioningError struct {
	Role   string
	Detail string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to provision %s: %s: %v", e.Role, e.Detail, e.Err)
	}
	return fmt.Sprintf("failed to provision %s: %s", e.Role, e.Detail)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Mode selects how an instance is launched.
type Mode int

const (
	ModeExe Mode = iota
	ModeDocker
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Instance is one running server: under test, previous version or peer.
// Created by the provisioner, owned by the phase controller for its
// lifetime, and torn down at run end or on fatal error.
type Instance struct {
	// Role for error reporting ("orthanc-under-tests", "orthanc-previous-version", …)
	Role string
	// Name doubles as the container name in docker mode
	Name      string
	HTTPPort  int
	DicomPort int

	Mode       Mode
	ExePath    string
	Image      string
	ConfigPath string
	// Host storage path (exe mode) or volume name (docker mode)
	Storage string

	status Status
	cmd    *exec.Cmd
	output bytes.Buffer
	logger zerolog.Logger
}

// NewInstance creates a stopped instance description.
func NewInstance(logger zerolog.Logger, role, name string) *Instance {
	return &Instance{
		Role:   role,
		Name:   name,
		status: StatusStopped,
		logger: logger.With().Str("role", role).Logger(),
	}
}

// Status returns the current lifecycle status.
func (i *Instance) Status() Status { return i.status }

// BuildDockerRunArgs builds the docker command line that launches the
// instance. It is a pure function so the generated command can be verified
// without a docker daemon.
func BuildDockerRunArgs(i *Instance) []string {
	return []string{
		"run", "--rm",
		"-e", "VERBOSE_ENABLED=true",
		"-e", "VERBOSE_STARTUP=true",
		"-v", i.ConfigPath + ":/etc/orthanc/orthanc.json",
		"-v", i.Storage + ":/var/lib/orthanc/db/",
		"--name", i.Name,
		"-p", fmt.Sprintf("%d:%d", i.HTTPPort, i.HTTPPort),
		"-p", fmt.Sprintf("%d:%d", i.DicomPort, i.DicomPort),
		i.Image,
	}
}

// Start launches the server process without waiting for readiness.
func (i *Instance) Start(ctx context.Context) error {
	var cmd *exec.Cmd
	switch i.Mode {
	case ModeExe:
		cmd = exec.CommandContext(ctx, i.ExePath, "--verbose", i.ConfigPath)
	case ModeDocker:
		args := BuildDockerRunArgs(i)
		i.logger.Debug().Str("command", quoteCommand("docker", args)).Msg("Docker command line")
		cmd = exec.CommandContext(ctx, "docker", args...)
	default:
		return &ProvisioningError{Role: i.Role, Detail: "no executable nor docker image configured"}
	}

	cmd.Stdout = &i.output
	cmd.Stderr = &i.output

	if err := cmd.Start(); err != nil {
		i.status = StatusFailed
		return &ProvisioningError{Role: i.Role, Detail: "failed to launch", Err: err}
	}

	i.cmd = cmd
	i.status = StatusStarting
	i.logger.Info().Str("config", i.ConfigPath).Msg("Server starting")
	return nil
}

// WaitReady polls the HTTP interface until the server answers, with a
// bounded number of attempts. On exhaustion the captured server output is
// logged and a ProvisioningError is returned.
func (i *Instance) WaitReady(ctx context.Context, client *orthanc.Client, timeout time.Duration) error {
	if err := client.WaitStarted(ctx, timeout); err != nil {
		i.status = StatusFailed
		i.logger.Error().Msg("Server output\n" + i.Output())
		return &ProvisioningError{Role: i.Role, Detail: fmt.Sprintf("never became ready (config %s)", i.ConfigPath), Err: err}
	}
	i.status = StatusReady
	i.logger.Info().Str("url", client.URL()).Msg("Server ready")
	return nil
}

// Stop terminates the instance. In docker mode the container is stopped by
// name, which also reaps the `docker run` process.
func (i *Instance) Stop() error {
	if i.cmd == nil {
		return nil
	}
	defer func() {
		i.cmd = nil
		i.status = StatusStopped
	}()

	switch i.Mode {
	case ModeDocker:
		if out, err := exec.Command("docker", "stop", i.Name).CombinedOutput(); err != nil {
			return fmt.Errorf("failed to stop container %s: %w: %s", i.Name, err, strings.TrimSpace(string(out)))
		}
		_ = i.cmd.Wait()
	default:
		if err := i.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill %s: %w", i.Role, err)
		}
		_ = i.cmd.Wait()
	}

	i.logger.Debug().Msg("Server output\n" + i.Output())
	i.logger.Info().Msg("Server stopped")
	return nil
}

// Output returns the captured stdout/stderr of the server process.
func (i *Instance) Output() string {
	return i.output.String()
}

// ClearStorage removes the storage of a previous run: the directory in exe
// mode, the named docker volume in docker mode.
func ClearStorage(logger zerolog.Logger, mode Mode, storage string) error {
	switch mode {
	case ModeExe:
		if err := os.RemoveAll(storage); err != nil {
			return fmt.Errorf("failed to clear storage %s: %w", storage, err)
		}
	case ModeDocker:
		// -f ignores a missing volume
		if out, err := exec.Command("docker", "volume", "rm", "-f", storage).CombinedOutput(); err != nil {
			return fmt.Errorf("failed to remove volume %s: %w: %s", storage, err, strings.TrimSpace(string(out)))
		}
	}
	logger.Debug().Str("storage", storage).Msg("Storage cleared")
	return nil
}

func quoteCommand(exe string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, exe)
	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}
	return strings.Join(parts, " ")
}

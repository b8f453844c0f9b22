package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/dcmtk"
	"github.com/orthanc-tools/harness/lifecycle"
	"github.com/orthanc-tools/harness/orthanc"
	"github.com/orthanc-tools/harness/provision"
)

// readyTimeout bounds the wait for a launched instance to answer HTTP.
const readyTimeout = 10 * time.Second

// Env is the explicit context handed to every scenario: how to reach the
// server under test, how to launch instances, where generated files live.
// One Env is initialized per run and torn down at run end; there is no
// process-global state.
type Env struct {
	Logger zerolog.Logger

	Hostname  string
	HTTPPort  int
	DicomPort int

	// Launch sources; exactly one of Exe/Image is set
	Exe   string
	Image string
	// Sources for the preparation ("previous version") instance; default to
	// the under-test sources
	PreviousExe   string
	PreviousImage string

	Plugins []string

	// Root of the generated configurations/ and storages/ directories
	BaseDir string

	// Client of the server under test
	Client *orthanc.Client
	// DICOM SCU runner
	SCU *dcmtk.Runner

	// Controller of the scenario currently running; set by the Runner
	Controller *lifecycle.Controller
}

// IsExe reports whether instances are launched from a local executable.
func (e *Env) IsExe() bool { return e.Exe != "" && e.Image == "" }

// IsDocker reports whether instances are launched from a docker image.
func (e *Env) IsDocker() bool { return e.Exe == "" && e.Image != "" }

// ConfigDir is where generated configuration files are written.
func (e *Env) ConfigDir() string { return filepath.Join(e.BaseDir, "configurations") }

// StoragePath returns the host path of a named storage (exe mode).
func (e *Env) StoragePath(name string) string {
	return filepath.Join(e.BaseDir, "storages", name)
}

// DicomNode returns the DICOM network address of the server under test.
func (e *Env) DicomNode() dcmtk.Node {
	return dcmtk.Node{AET: "ORTHANC", Host: e.Hostname, Port: e.DicomPort}
}

// GenerateConfiguration completes conf with the run-wide defaults (ports,
// plugins, storage directory in exe mode) and writes it to the
// configurations directory.
func (e *Env) GenerateConfiguration(name, storageName string, conf map[string]any) (string, error) {
	opts := config.Options{
		Name:      name,
		HTTPPort:  e.HTTPPort,
		DicomPort: e.DicomPort,
		Plugins:   e.Plugins,
	}
	if e.IsExe() {
		opts.StorageDirectory = e.StoragePath(storageName)
	}
	return config.Write(e.ConfigDir(), name, config.Complete(conf, opts))
}

// ClearStorage wipes a named storage from a previous run.
func (e *Env) ClearStorage(name string) error {
	if e.IsExe() {
		return provision.ClearStorage(e.Logger, provision.ModeExe, e.StoragePath(name))
	}
	return provision.ClearStorage(e.Logger, provision.ModeDocker, name)
}

// LaunchPreparation starts the instance used to seed server-side state,
// from the previous-version executable/image when one was given. The
// returned instance is owned by the current controller; scenarios stop it
// explicitly once seeding is done.
func (e *Env) LaunchPreparation(ctx context.Context, name, storageName, configPath string) (*provision.Instance, error) {
	exe, image := e.PreviousExe, e.PreviousImage
	if exe == "" && image == "" {
		exe, image = e.Exe, e.Image
	}
	return e.launch(ctx, "orthanc-previous-version", name, storageName, configPath, exe, image)
}

// LaunchUnderTest starts the server under test with the prepared
// configuration.
func (e *Env) LaunchUnderTest(ctx context.Context, name, storageName, configPath string) (*provision.Instance, error) {
	return e.launch(ctx, "orthanc-under-tests", name, storageName, configPath, e.Exe, e.Image)
}

func (e *Env) launch(ctx context.Context, role, name, storageName, configPath, exe, image string) (*provision.Instance, error) {
	inst := provision.NewInstance(e.Logger, role, name)
	inst.HTTPPort = e.HTTPPort
	inst.DicomPort = e.DicomPort
	inst.ConfigPath = configPath

	switch {
	case exe != "":
		inst.Mode = provision.ModeExe
		inst.ExePath = exe
		inst.Storage = e.StoragePath(storageName)
	case image != "":
		inst.Mode = provision.ModeDocker
		inst.Image = image
		inst.Storage = storageName
	default:
		return nil, &provision.ProvisioningError{Role: role, Detail: "neither an executable nor a docker image was configured"}
	}

	if err := inst.Start(ctx); err != nil {
		return nil, err
	}
	if e.Controller != nil {
		e.Controller.Own(inst)
	}
	if err := inst.WaitReady(ctx, e.Client, readyTimeout); err != nil {
		return nil, err
	}
	return inst, nil
}

// WaitUnderTestReady blocks until the server under test answers, whether it
// was started by this process or by the operator during a break.
func (e *Env) WaitUnderTestReady(ctx context.Context) error {
	if err := e.Client.WaitStarted(ctx, readyTimeout); err != nil {
		return &provision.ProvisioningError{Role: "orthanc-under-tests", Detail: "not reachable", Err: err}
	}
	return nil
}

// String describes the launch source, for logging.
func (e *Env) String() string {
	if e.IsExe() {
		return fmt.Sprintf("exe:%s", e.Exe)
	}
	return fmt.Sprintf("image:%s", e.Image)
}

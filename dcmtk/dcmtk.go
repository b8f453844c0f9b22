package dcmtk

// Package dcmtk builds and runs the DCMTK SCU command-line tools (echoscu,
// storescu, findscu, movescu, getscu) used to exercise the DICOM network
// interface of the server under test.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Node addresses a DICOM application entity on the network.
type Node struct {
	AET  string
	Host string
	Port int
}

// EchoOptions contains options for a C-ECHO (echoscu).
type EchoOptions struct {
	Called  Node
	Calling string // calling AE title, empty for the tool default
}

// BuildEchoArgs builds the echoscu argument list.
func BuildEchoArgs(opts EchoOptions) []string {
	var args []string
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	return append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
}

// StoreOptions contains options for a C-STORE (storescu).
type StoreOptions struct {
	Called  Node
	Calling string
	Files   []string
}

// BuildStoreArgs builds the storescu argument list. The -xs flag proposes
// every storage SOP class with its default transfer syntax.
func BuildStoreArgs(opts StoreOptions) []string {
	args := []string{"-xs"}
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	args = append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
	return append(args, opts.Files...)
}

// FindOptions contains options for a C-FIND (findscu).
type FindOptions struct {
	Called  Node
	Calling string
	// Query/retrieve level: PATIENT, STUDY, SERIES or IMAGE
	Level string
	// Matching keys, e.g. {"PatientID": "99999"}
	Keys map[string]string
}

// BuildFindArgs builds the findscu argument list using the study-root
// query/retrieve model. Keys are emitted in sorted order so the command
// line is deterministic.
func BuildFindArgs(opts FindOptions) []string {
	args := []string{"-S"}
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	args = append(args, "-k", "QueryRetrieveLevel="+opts.Level)
	for _, k := range sortedKeys(opts.Keys) {
		args = append(args, "-k", k+"="+opts.Keys[k])
	}
	return append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
}

// MoveOptions contains options for a C-MOVE (movescu).
type MoveOptions struct {
	Called  Node
	Calling string
	// AE title of the destination of the moved instances
	Destination string
	Level       string
	Keys        map[string]string
}

// BuildMoveArgs builds the movescu argument list.
func BuildMoveArgs(opts MoveOptions) []string {
	args := []string{"-S"}
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	if opts.Destination != "" {
		args = append(args, "-aem", opts.Destination)
	}
	args = append(args, "-k", "QueryRetrieveLevel="+opts.Level)
	for _, k := range sortedKeys(opts.Keys) {
		args = append(args, "-k", k+"="+opts.Keys[k])
	}
	return append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
}

// GetOptions contains options for a C-GET (getscu).
type GetOptions struct {
	Called  Node
	Calling string
	Level   string
	Keys    map[string]string
	// Directory receiving the retrieved instances; empty keeps the tool's
	// working directory
	OutputDir string
}

// BuildGetArgs builds the getscu argument list. The retrieved instances are
// received over the same association and written as files.
func BuildGetArgs(opts GetOptions) []string {
	args := []string{"-S"}
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	if opts.OutputDir != "" {
		args = append(args, "-od", opts.OutputDir)
	}
	args = append(args, "-k", "QueryRetrieveLevel="+opts.Level)
	for _, k := range sortedKeys(opts.Keys) {
		args = append(args, "-k", k+"="+opts.Keys[k])
	}
	return append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
}

// WorklistOptions contains options for a modality worklist query
// (findscu -W). Worklist queries have no query/retrieve level.
type WorklistOptions struct {
	Called  Node
	Calling string
	Keys    map[string]string
}

// BuildWorklistArgs builds the findscu argument list for the modality
// worklist information model.
func BuildWorklistArgs(opts WorklistOptions) []string {
	args := []string{"-W"}
	if opts.Called.AET != "" {
		args = append(args, "-aec", opts.Called.AET)
	}
	if opts.Calling != "" {
		args = append(args, "-aet", opts.Calling)
	}
	for _, k := range sortedKeys(opts.Keys) {
		args = append(args, "-k", k+"="+opts.Keys[k])
	}
	return append(args, opts.Called.Host, strconv.Itoa(opts.Called.Port))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindExecutable resolves a DCMTK tool name, preferring the locations where
// a locally compiled DCMTK is usually installed.
func FindExecutable(name string) string {
	for _, dir := range []string{"/usr/local/bin", "/usr/local/sbin"} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return name
}

// Runner executes SCU tools and captures their output.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes one tool. A non-zero exit status is returned as an error
// carrying the association output, since the SCUs report DIMSE failures
// through their exit code.
func (r *Runner) Run(ctx context.Context, tool string, args []string) (string, error) {
	exe := FindExecutable(tool)

	r.logger.Debug().
		Str("command", quoteCommand(exe, args)).
		Msg("Running DICOM SCU")

	cmd := exec.CommandContext(ctx, exe, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output.String(), fmt.Errorf("%s failed with exit code %d: %s", tool, exitErr.ExitCode(), strings.TrimSpace(output.String()))
		}
		return output.String(), fmt.Errorf("failed to execute %s: %w", tool, err)
	}
	return output.String(), nil
}

func quoteCommand(exe string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, exe)
	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}
	return strings.Join(parts, " ")
}

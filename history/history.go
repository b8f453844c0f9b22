package history

// Persistence of harness runs: every execution is recorded as a run.json
// under the history root, so previous runs can be listed and compared.

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/model"
)

const runFileName = "run.json"

// Entry is one persisted run together with its directory on disk.
type Entry struct {
	Run      model.Run
	FullPath string
}

// DefaultRoot returns the history root: the .orthanc-harness directory
// under the current working directory.
func DefaultRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return filepath.Join(cwd, ".orthanc-harness"), nil
}

// NewRunID generates a random run identifier (16 bytes, hex encoded).
func NewRunID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Save records one run under root/<timestamp>-<shortID>/run.json and returns
// the run directory.
func Save(logger zerolog.Logger, root string, run *model.Run) (string, error) {
	shortID := run.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	runName := fmt.Sprintf("%s-%s", run.Timestamp.Format("20060102-150405"), shortID)
	runDir := filepath.Join(root, runName)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, runFileName), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run metadata: %w", err)
	}

	logger.Debug().Str("dir", runDir).Str("id", run.ID).Msg("Recorded run")
	return runDir, nil
}

// LoadEntries loads every recorded run below root, most recent first.
// Unparsable files are skipped with a warning, not fatal.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, fmt.Errorf("no runs recorded in %s", root)
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		runPath := filepath.Join(path, runFileName)
		if _, err := os.Stat(runPath); err != nil {
			return nil
		}
		run, err := parseRunJSON(runPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", runPath).Msg("Failed to parse run.json")
			return nil
		}
		entries = append(entries, Entry{Run: run, FullPath: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Run.Timestamp.After(entries[j].Run.Timestamp)
	})
	return entries, nil
}

func parseRunJSON(path string) (model.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Run{}, err
	}
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

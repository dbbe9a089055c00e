package app

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	markerFileName  = "first_run_completed"
	historyFileName = "history.duckdb"
	dataDirEnv      = "PGHEALTH_DATA_DIR"
	defaultDirName  = ".pghealth"
)

// DataDir returns the directory holding history and run markers.
// PGHEALTH_DATA_DIR overrides the default of ~/.pghealth.
func DataDir() (string, error) {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDirName), nil
}

// HistoryPath returns the history database path inside dir, creating dir if needed.
// An empty dir resolves to DataDir().
func HistoryPath(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = DataDir()
		if err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFileName), nil
}

// IsFirstRun reports whether the marker file is missing from the data directory,
// creating it so later runs return false.
func IsFirstRun() bool {
	dir, err := DataDir()
	if err != nil {
		slog.Error("failed to resolve data directory", slog.String("error", err.Error()))
		return false
	}

	markerPath := filepath.Join(dir, markerFileName)
	_, err = os.Stat(markerPath)
	switch {
	case err == nil:
		slog.Debug("marker file exists, not first run", slog.String("path", markerPath))
		return false
	case !os.IsNotExist(err):
		slog.Error("failed to check first run marker", slog.String("path", markerPath), slog.String("error", err.Error()))
		return false
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create data directory", slog.String("path", dir), slog.String("error", err.Error()))
		return false
	}
	f, err := os.Create(markerPath)
	if err != nil {
		slog.Error("failed to create first run marker", slog.String("path", markerPath), slog.String("error", err.Error()))
		return false
	}
	_ = f.Close()
	slog.Debug("first run detected", slog.String("path", markerPath))
	return true
}

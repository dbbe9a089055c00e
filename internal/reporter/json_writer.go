package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// WriteJSON writes v as indented JSON to OutputDir/filename, or to out when no directory is set.
func WriteJSON(v any, opts Options, filename string, out io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filename, err)
	}
	data = append(data, '\n')
	return emit(data, opts, filename, out)
}

func writeText(rendered string, opts Options, filename string, out io.Writer) error {
	return emit([]byte(rendered), opts, filename, out)
}

// emit writes data to OutputDir/filename when set, otherwise to out.
func emit(data []byte, opts Options, filename string, out io.Writer) error {
	if opts.OutputDir == "" {
		if out == nil {
			return fmt.Errorf("writer is nil")
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
		return nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	slog.Debug("report written", slog.String("path", outputPath))
	return nil
}

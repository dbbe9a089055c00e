// Package baseline records recommendation fingerprints so known advice can be
// suppressed on later runs.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/pghealth/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".pghealth-baseline.json"
	fileVersion = 1
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	AddAll(set, file.Fingerprints)
	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// Fingerprint identifies a recommendation by what it targets, not by its
// measurements: priority, why and impact are excluded so a growing table keeps
// its fingerprint.
func Fingerprint(rec models.Recommendation) string {
	query, _ := rec.Details["query"].(string)
	return hash("recommendation", string(rec.FixType), rec.Title, rec.SQL, query)
}

// CollectFingerprints returns the sorted, unique fingerprints of recs.
func CollectFingerprints(recs []models.Recommendation) []string {
	set := Set{}
	for _, rec := range recs {
		set[Fingerprint(rec)] = struct{}{}
	}
	return Sorted(set)
}

// SuppressKnown drops recommendations already present in known, keeping order.
func SuppressKnown(recs []models.Recommendation, known Set) ([]models.Recommendation, int) {
	if len(known) == 0 {
		return recs, 0
	}

	filtered := make([]models.Recommendation, 0, len(recs))
	suppressed := 0
	for _, rec := range recs {
		if _, exists := known[Fingerprint(rec)]; exists {
			suppressed++
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered, suppressed
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

const (
	studentsFile = "students.json"
	rawFile      = "raw_records.json"
)

// Write persists the aggregated students keyed by id, plus the full raw
// record list (unresolved rows included) as the audit trail. Files are
// replaced atomically so a crashed run never leaves a torn snapshot.
func Write(dir string, students map[string]*models.StudentRecord, raw []models.RawActivityRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, studentsFile), students); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, rawFile), raw); err != nil {
		return err
	}

	logger.Info("Snapshot written",
		zap.String("dir", dir),
		zap.Int("students", len(students)),
		zap.Int("raw_records", len(raw)),
	)

	return nil
}

// LoadStudents reads the aggregated snapshot. A missing snapshot is an
// error for the API server but callers that merge runs treat it as an
// empty map via Exists.
func LoadStudents(dir string) (map[string]*models.StudentRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, studentsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var students map[string]*models.StudentRecord
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return students, nil
}

func LoadRaw(dir string) ([]models.RawActivityRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, rawFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read raw records: %w", err)
	}

	var records []models.RawActivityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode raw records: %w", err)
	}

	return records, nil
}

func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, studentsFile))
	return err == nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

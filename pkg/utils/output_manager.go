package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OutputManager lays out job output files under a base directory, one
// directory per job.
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	if baseOutputDir == "" {
		baseOutputDir = "output"
	}
	return &OutputManager{BaseOutputDir: baseOutputDir}
}

// CreateJobOutputDir creates the directory for a job's outputs.
func (om *OutputManager) CreateJobOutputDir(jobID string) (string, error) {
	jobDir := filepath.Join(om.BaseOutputDir, filepath.Base(jobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job output directory: %w", err)
	}
	return jobDir, nil
}

// GetOutputFilePath returns a path for fileName inside the job directory.
// Any directory part of fileName is dropped.
func (om *OutputManager) GetOutputFilePath(jobID, fileName string) (string, error) {
	jobDir, err := om.CreateJobOutputDir(jobID)
	if err != nil {
		return "", err
	}
	return filepath.Join(jobDir, filepath.Base(fileName)), nil
}

// DefaultExportPath names the enriched table written when a job has no
// explicit export file, e.g. output/<id>/enriched_1a2b3c4d_2024-01-02_15-04-05.csv.
func (om *OutputManager) DefaultExportPath(jobID, format string, now time.Time) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		format = "csv"
	}
	name := fmt.Sprintf("enriched_%s_%s.%s", ShortID(jobID), now.Format("2006-01-02_15-04-05"), format)
	return om.GetOutputFilePath(jobID, name)
}

// GetDownloadURL returns the API path serving a job's table in format.
func (om *OutputManager) GetDownloadURL(jobID, format string) string {
	return fmt.Sprintf("/api/v1/jobs/%s/export?format=%s", jobID, format)
}

// RemoveJobOutput deletes a job's output directory.
func (om *OutputManager) RemoveJobOutput(jobID string) error {
	return os.RemoveAll(filepath.Join(om.BaseOutputDir, filepath.Base(jobID)))
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: summary_writer.go
Description: Utility for writing compact per-run JSON summaries next to the
binary Result container. Ensures the output directory exists and writes an
indented JSON file for easy inspection and scripting.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteRunSummary writes a run summary to <outdir>/<label>_summary.json
func WriteRunSummary(outdir string, label string, summary interface{}) (string, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(outdir, fmt.Sprintf("%s_summary.json", label))

	// Marshal summary to JSON
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}

	return filePath, nil
}

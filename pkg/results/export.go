/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: export.go
Description: Plain-text posterior export for interchange. Writes one header line of
column names and one whitespace-delimited row per posterior sample.
*/

package results

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PosteriorFileName returns the canonical plain-text export path for a run.
func PosteriorFileName(outdir, label string) string {
	return filepath.Join(outdir, label+"_posterior_samples.txt")
}

// ExportPosterior writes the posterior table to w: a header line of
// column names, then one space-delimited row per sample.
func (r *Result) ExportPosterior(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(r.Posterior.Columns, " ") + "\n"); err != nil {
		return err
	}
	for _, row := range r.Posterior.Rows {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = strconv.FormatFloat(v, 'g', 12, 64)
		}
		if _, err := bw.WriteString(strings.Join(fields, " ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SavePosteriorSamples writes the plain-text export to its canonical
// path under the Result's output directory.
func (r *Result) SavePosteriorSamples() (string, error) {
	path := PosteriorFileName(r.OutDir, r.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create posterior export: %w", err)
	}
	defer f.Close()
	if err := r.ExportPosterior(f); err != nil {
		return "", fmt.Errorf("failed to write posterior export: %w", err)
	}
	return path, nil
}

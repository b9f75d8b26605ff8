/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: summary_writer_test.go
Description: Unit tests for the JSON run-summary writer. Tests file naming,
directory creation, and that the written document parses back.
*/

package utils_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kleascm/akaylee-inference/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteRunSummary tests the summary file path and content round trip
func TestWriteRunSummary(t *testing.T) {
	outdir := filepath.Join(t.TempDir(), "nested", "outdir")

	summary := map[string]interface{}{
		"run_id":            "abc-123",
		"sampler":           "nest",
		"posterior_samples": 512,
	}

	path, err := utils.WriteRunSummary(outdir, "run", summary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outdir, "run_summary.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc-123", decoded["run_id"])
	assert.Equal(t, "nest", decoded["sampler"])
	assert.Equal(t, float64(512), decoded["posterior_samples"])
}

// TestWriteRunSummaryUnmarshalable tests the marshal failure path
func TestWriteRunSummaryUnmarshalable(t *testing.T) {
	_, err := utils.WriteRunSummary(t.TempDir(), "bad", make(chan int))
	assert.Error(t, err)
}

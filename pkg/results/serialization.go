/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: serialization.go
Description: Binary container serialization for Result artifacts. Writes one Result
per container as a hierarchical CBOR document addressable by the canonical field
names, using deterministic encoding and atomic replacement; reading the container
back yields an equivalent Result or a SerializationError, never a partial Result.
*/

package results

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding. The same Result
// always produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder for Result containers. Any-typed targets
// (sampler_kwargs values) decode with string-keyed maps.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("results: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("results: CBOR decoder initialization failed: " + err.Error())
	}
}

// FileName returns the canonical Result container path for a run.
func FileName(outdir, label string) string {
	return filepath.Join(outdir, label+"_result.cbor")
}

// Save writes the Result container to its canonical path under the
// Result's output directory.
func (r *Result) Save() (string, error) {
	path := FileName(r.OutDir, r.Label)
	return path, r.SaveTo(path)
}

// SaveTo writes the Result container to an explicit path using a
// temp-file-then-rename replacement.
func (r *Result) SaveTo(path string) error {
	data, err := encMode.Marshal(r)
	if err != nil {
		return &interfaces.SerializationError{Path: path, Err: fmt.Errorf("encode result: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &interfaces.SerializationError{Path: path, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &interfaces.SerializationError{Path: path, Err: fmt.Errorf("replace container: %w", err)}
	}
	return nil
}

// Read loads a Result container from disk. A corrupt or unreadable
// container is a SerializationError; a partially-populated Result is
// never returned.
func Read(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &interfaces.SerializationError{Path: path, Err: err}
	}

	var r Result
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, &interfaces.SerializationError{Path: path, Err: fmt.Errorf("decode result: %w", err)}
	}

	if r.FormatVersion != ResultFormatVersion {
		return nil, &interfaces.SerializationError{
			Path: path,
			Err:  fmt.Errorf("unsupported result format version %d", r.FormatVersion),
		}
	}
	if r.Posterior == nil {
		return nil, &interfaces.SerializationError{Path: path, Err: fmt.Errorf("container has no posterior table")}
	}
	return &r, nil
}

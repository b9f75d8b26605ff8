/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: context.go
Description: Run context for the Akaylee Inference engine. Replaces process-wide
output-directory and logger conventions with an explicit context object whose
lifecycle is tied to one sampler invocation.
*/

package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunContext carries the per-run identity and plumbing threaded through
// one sampler invocation. No cross-run shared mutable state exists.
type RunContext struct {
	ID         string
	Label      string
	OutDir     string
	Sampler    string
	Identifier string
	Logger     *logrus.Logger
	StartTime  time.Time
}

// newRunContext creates the context for one sampler invocation.
func newRunContext(label, outdir, sampler, identifier string, logger *logrus.Logger) *RunContext {
	return &RunContext{
		ID:         uuid.New().String(),
		Label:      label,
		OutDir:     outdir,
		Sampler:    sampler,
		Identifier: identifier,
		Logger:     logger,
		StartTime:  time.Now(),
	}
}

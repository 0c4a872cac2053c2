// Package pipeline contains the step executor, the progress reporter and the
// catalog of pipeline definitions: the ordered step sequences run for each
// job type.
package pipeline

import (
	"context"
	"sync"

	"marketgen/internal/domain"
)

// Step is one named unit of pipeline work. A fatal step aborts the job on
// failure; a non-fatal one records a warning and lets the pipeline continue.
type Step struct {
	Name  string
	Fatal bool
	Run   func(ctx context.Context, pc *Context) error
}

// Pipeline is the ordered step sequence for one job type plus the rule that
// turns the accumulated context into a terminal result. Result returns
// domain.ErrNoUsableOutput when the run produced nothing worth keeping, which
// fails the job with the collected warnings.
type Pipeline struct {
	Steps  []Step
	Result func(pc *Context) ([]byte, error)
}

// Context accumulates step outputs and tolerated failures across one run.
// Steps communicate through named outputs; downstream steps must tolerate a
// missing optional key.
type Context struct {
	Job *domain.Job

	mu       sync.Mutex
	outputs  map[string]any
	warnings []domain.Warning
}

// NewContext creates an empty run context for a job.
func NewContext(job *domain.Job) *Context {
	return &Context{Job: job, outputs: make(map[string]any)}
}

// Put stores a step output under key.
func (c *Context) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[key] = value
}

// Get returns the output stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.outputs[key]
	return v, ok
}

// Warn records a tolerated failure.
func (c *Context) Warn(step, item, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, domain.Warning{Step: step, Item: item, Message: message})
}

// Warnings returns a copy of the accumulated warnings.
func (c *Context) Warnings() []domain.Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

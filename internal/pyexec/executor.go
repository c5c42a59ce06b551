// Package pyexec executes sanitized model-generated Python in an embedded
// restricted interpreter. Scripts see only the arcgis SDK bindings and a
// fixed set of builtins; output is captured per call.
package pyexec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/sanitize"
)

const (
	// SuccessSentinel is reported when a script succeeds without printing.
	SuccessSentinel = "✅ Command executed successfully (No text output)."
	// ErrorPrefix labels every execution fault.
	ErrorPrefix = "❌ Execution Error: "
)

// ExecutionResult is either captured output or a fault, never both.
type ExecutionResult struct {
	Output   string        `json:"output,omitempty"`
	Fault    *Exception    `json:"fault,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the script ran to completion.
func (r ExecutionResult) OK() bool {
	return r.Fault == nil
}

// Text is the transcript shown to the user.
func (r ExecutionResult) Text() string {
	if r.Fault != nil {
		return ErrorPrefix + r.Fault.Message
	}
	if r.Output == "" {
		return SuccessSentinel
	}
	return r.Output
}

// Executor runs generated scripts one at a time.
type Executor struct {
	mu       sync.Mutex
	portal   Portal
	maxSteps int
	log      *logger.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxSteps overrides DefaultMaxSteps. Non-positive values keep the
// default.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewExecutor creates an executor whose scripts reach portal through the
// GIS binding.
func NewExecutor(portal Portal, opts ...Option) *Executor {
	e := &Executor{
		portal:   portal,
		maxSteps: DefaultMaxSteps,
		log:      logger.Global().WithPrefix("pyexec"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs src and captures everything it prints. It never returns an
// error: faults, including interpreter panics, become the result's Fault.
func (e *Executor) Execute(ctx context.Context, src sanitize.GeneratedSource) ExecutionResult {
	return e.Run(ctx, src.Code)
}

// Run executes code directly. Callers must have sanitized it.
func (e *Executor) Run(ctx context.Context, code string) (result ExecutionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	var out strings.Builder

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("interpreter panic: %v", r)
			result = ExecutionResult{Fault: &Exception{Kind: "SystemError", Message: fmt.Sprintf("internal interpreter error: %v", r)}}
		}
		result.Duration = time.Since(start)
	}()

	ip := newInterp(ctx, &out, e.portal, e.maxSteps)
	if err := runScript(ip, code); err != nil {
		exc, ok := err.(*Exception)
		if !ok {
			exc = &Exception{Kind: "Exception", Message: err.Error()}
		}
		e.log.Debug("script failed at line %d: %s: %s", exc.Line, exc.Kind, exc.Message)
		return ExecutionResult{Fault: exc}
	}
	e.log.Debug("script finished, %d bytes of output in %d steps", out.Len(), ip.steps)
	return ExecutionResult{Output: out.String()}
}

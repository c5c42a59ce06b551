// Package orchestrator runs one conversation turn end to end: prompt
// construction, model invocation, sanitization, execution and map
// synthesis.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/llm"
	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/observability"
	"github.com/codefionn/geocopilot/internal/progress"
	"github.com/codefionn/geocopilot/internal/pyexec"
	"github.com/codefionn/geocopilot/internal/sanitize"
	"github.com/codefionn/geocopilot/internal/session"
)

// ProgressMessage is shown while a turn is running.
const ProgressMessage = "Writing & Executing Code..."

var tracer = otel.Tracer("github.com/codefionn/geocopilot/internal/orchestrator")

// Executor runs sanitized source.
type Executor interface {
	Execute(ctx context.Context, src sanitize.GeneratedSource) pyexec.ExecutionResult
}

// Synthesizer builds the map and result list for a category.
type Synthesizer interface {
	SynthesizeQuery(ctx context.Context, cat catalog.Category, query string) (*geomap.MapArtifact, []geomap.ResultItem)
}

// TurnResult is everything the UI shows for one turn.
type TurnResult struct {
	ID        string                   `json:"id"`
	Utterance string                   `json:"utterance"`
	Category  catalog.Category         `json:"category"`
	Model     string                   `json:"model"`
	Source    sanitize.GeneratedSource `json:"source"`
	Output    string                   `json:"output"`
	Failed    bool                     `json:"failed"`
	Fault     *pyexec.Exception        `json:"fault,omitempty"`
	Map       *geomap.MapArtifact      `json:"map,omitempty"`
	Items     []geomap.ResultItem      `json:"items"`
	Duration  time.Duration            `json:"duration"`
}

// Orchestrator serializes turns and keeps the session state.
type Orchestrator struct {
	mu        sync.Mutex
	client    *llm.SurfacedClient
	sanitizer *sanitize.Sanitizer
	executor  Executor
	synth     Synthesizer
	catalog   *catalog.Catalog
	session   *session.Session
	progress  progress.Callback
	log       *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the callback receiving stage updates.
func WithProgress(cb progress.Callback) Option {
	return func(o *Orchestrator) {
		o.progress = cb
	}
}

// WithSession replaces the session the orchestrator records turns in.
func WithSession(s *session.Session) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.session = s
		}
	}
}

// WithCatalog sets the category table used for classification.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithSanitizer replaces the default sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sanitizer = s
		}
	}
}

// New creates an orchestrator. Model failures are converted into response
// text, so the client does not need to be wrapped by the caller.
func New(client llm.Client, executor Executor, synth Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    llm.Surfaced(client),
		sanitizer: sanitize.New(),
		executor:  executor,
		synth:     synth,
		catalog:   catalog.Default(),
		session:   session.NewSession(""),
		log:       logger.Global().WithPrefix("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns the session turns are recorded in.
func (o *Orchestrator) Session() *session.Session {
	return o.session
}

// ModelName returns the name of the configured model.
func (o *Orchestrator) ModelName() string {
	return o.client.GetModelName()
}

// Reset clears the transcript and the workspace snapshot.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.Clear()
	o.log.Info("session %s reset", o.session.ID)
}

// RunTurn processes one utterance. It never fails: model and execution
// errors are reported in the result.
func (o *Orchestrator) RunTurn(ctx context.Context, utterance string) *TurnResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	result := &TurnResult{
		ID:        session.GenerateID(),
		Utterance: utterance,
		Model:     o.client.GetModelName(),
	}

	ctx, span := tracer.Start(ctx, "geocopilot.turn", trace.WithAttributes(
		attribute.String("geocopilot.turn.id", result.ID),
		attribute.String("geocopilot.model", result.Model),
	))
	defer span.End()

	o.notify(ctx, progress.StageGenerating, ProgressMessage)
	content := o.generate(ctx, utterance)

	result.Source = o.sanitizer.Sanitize(content)
	if result.Source.Rewrites > 0 {
		observability.SanitizerRewritesTotal.WithLabelValues("credential").Add(float64(result.Source.Rewrites))
		o.log.Warn("removed credentials from %d GIS() calls", result.Source.Rewrites)
	}
	if result.Source.Redactions > 0 {
		observability.SanitizerRewritesTotal.WithLabelValues("redaction").Add(float64(result.Source.Redactions))
		o.log.Warn("redacted %d secrets from generated code", result.Source.Redactions)
	}

	o.notify(ctx, progress.StageExecuting, "Running script...")
	exec := o.execute(ctx, result.Source)
	result.Output = exec.Text()
	result.Failed = !exec.OK()
	result.Fault = exec.Fault

	o.notify(ctx, progress.StageMapping, "Building map...")
	result.Category = o.catalog.Classify(utterance)
	result.Map, result.Items = o.synthesize(ctx, result.Category, o.catalog.Query(result.Category, utterance))

	result.Duration = time.Since(start)
	o.session.RecordTurn(utterance, &session.Snapshot{
		TurnID:    result.ID,
		Utterance: utterance,
		Category:  result.Category,
		Code:      result.Source.Code,
		Output:    result.Output,
		Failed:    result.Failed,
		Map:       result.Map,
		Items:     result.Items,
	})

	outcome := "ok"
	if result.Failed {
		outcome = "fault"
		span.SetStatus(codes.Error, result.Fault.Error())
	}
	span.SetAttributes(
		attribute.String("geocopilot.category", string(result.Category)),
		attribute.Int("geocopilot.items", len(result.Items)),
	)
	observability.TurnsTotal.WithLabelValues(string(result.Category), outcome).Inc()
	observability.StageDuration.WithLabelValues("turn").Observe(result.Duration.Seconds())

	o.notify(ctx, progress.StageDone, "")
	o.log.Info("turn %s finished in %s: category=%s outcome=%s", result.ID, result.Duration.Round(time.Millisecond), result.Category, outcome)
	return result
}

func (o *Orchestrator) generate(ctx context.Context, utterance string) string {
	ctx, span := tracer.Start(ctx, "geocopilot.generate")
	defer span.End()
	start := time.Now()

	prompt := llm.BuildPrompt(utterance)
	if o.log.GetLevel() <= logger.LevelDebug {
		o.log.Debug("prompt is ~%d tokens", llm.EstimateTokens(prompt))
	}

	resp, err := o.client.Invoke(ctx, prompt)
	observability.StageDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())

	status := "ok"
	var content string
	switch {
	case err != nil:
		status = "error"
		content = llm.ErrorContent(o.client.GetModelName(), err)
	case resp.StopReason == "error":
		status = "error"
		content = resp.Content
	default:
		content = resp.Content
		if resp.Usage.PromptTokens > 0 {
			observability.ModelTokensTotal.WithLabelValues(o.client.GetModelName(), "input").Add(float64(resp.Usage.PromptTokens))
		}
		if resp.Usage.CompletionTokens > 0 {
			observability.ModelTokensTotal.WithLabelValues(o.client.GetModelName(), "output").Add(float64(resp.Usage.CompletionTokens))
		}
	}
	observability.ModelRequestsTotal.WithLabelValues(o.client.GetModelName(), status).Inc()
	if status != "ok" {
		span.SetStatus(codes.Error, content)
	}
	return content
}

func (o *Orchestrator) execute(ctx context.Context, src sanitize.GeneratedSource) pyexec.ExecutionResult {
	ctx, span := tracer.Start(ctx, "geocopilot.execute")
	defer span.End()

	if o.executor == nil {
		return pyexec.ExecutionResult{Fault: &pyexec.Exception{Kind: "SystemError", Message: "no executor configured"}}
	}
	if fault := credentialGuard(src); fault != nil {
		o.log.Error("refusing to execute: %s", fault.Message)
		observability.SanitizerRewritesTotal.WithLabelValues("refused").Inc()
		span.SetStatus(codes.Error, fault.Error())
		return pyexec.ExecutionResult{Fault: fault}
	}
	res := o.executor.Execute(ctx, src)
	observability.StageDuration.WithLabelValues("execute").Observe(res.Duration.Seconds())
	if !res.OK() {
		span.SetStatus(codes.Error, res.Fault.Error())
	}
	return res
}

// credentialGuard rejects source that still passes arguments to GIS after
// sanitization.
func credentialGuard(src sanitize.GeneratedSource) *pyexec.Exception {
	if !sanitize.HasCredentialedCall(src.Code) {
		return nil
	}
	return &pyexec.Exception{Kind: "PermissionError", Message: "GIS() must be called without arguments"}
}

func (o *Orchestrator) synthesize(ctx context.Context, cat catalog.Category, query string) (*geomap.MapArtifact, []geomap.ResultItem) {
	ctx, span := tracer.Start(ctx, "geocopilot.synthesize")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	}()

	if o.synth == nil {
		return nil, []geomap.ResultItem{}
	}
	m, items := o.synth.SynthesizeQuery(ctx, cat, query)
	if items == nil {
		items = []geomap.ResultItem{}
	}
	return m, items
}

type progressKey struct{}

// ContextWithProgress attaches a progress callback for the turns run with
// ctx, in addition to the one set by WithProgress.
func ContextWithProgress(ctx context.Context, cb progress.Callback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

func (o *Orchestrator) notify(ctx context.Context, stage progress.Stage, message string) {
	if message == "" {
		message = string(stage)
	}
	update := progress.Update{
		Stage:     stage,
		Message:   message,
		Ephemeral: stage != progress.StageDone,
	}
	if err := progress.Dispatch(o.progress, update); err != nil {
		o.log.Debug("progress callback failed: %v", err)
	}
	if cb, ok := ctx.Value(progressKey{}).(progress.Callback); ok {
		if err := progress.Dispatch(cb, update); err != nil {
			o.log.Debug("progress callback failed: %v", err)
		}
	}
}

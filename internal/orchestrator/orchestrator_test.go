package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/llm"
	"github.com/codefionn/geocopilot/internal/progress"
	"github.com/codefionn/geocopilot/internal/pyexec"
	"github.com/codefionn/geocopilot/internal/sanitize"
	"github.com/codefionn/geocopilot/internal/session"
)

// MockClient returns canned content and records prompts.
type MockClient struct {
	mu      sync.Mutex
	Content string
	Err     error
	Prompts []string
}

func (m *MockClient) Invoke(ctx context.Context, prompt string) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.Response{Content: m.Content, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func (m *MockClient) GetModelName() string { return "mock" }

// MockExecutor records the sources it was asked to run.
type MockExecutor struct {
	mu      sync.Mutex
	Sources []sanitize.GeneratedSource
	Result  pyexec.ExecutionResult
}

func (m *MockExecutor) Execute(ctx context.Context, src sanitize.GeneratedSource) pyexec.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sources = append(m.Sources, src)
	return m.Result
}

// MockSynthesizer records categories and queries.
type MockSynthesizer struct {
	Categories []catalog.Category
	Queries    []string
}

func (m *MockSynthesizer) SynthesizeQuery(ctx context.Context, cat catalog.Category, query string) (*geomap.MapArtifact, []geomap.ResultItem) {
	m.Categories = append(m.Categories, cat)
	m.Queries = append(m.Queries, query)
	return &geomap.MapArtifact{Category: cat}, nil
}

type failingPortal struct{}

func (failingPortal) Search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error) {
	return nil, errors.New("portal unreachable")
}

func (failingPortal) GetItem(ctx context.Context, id string) (*arcgis.Item, error) {
	return nil, errors.New("portal unreachable")
}

func (failingPortal) PortalURL() string { return "https://portal.invalid" }

func TestRunTurnPipeline(t *testing.T) {
	client := &MockClient{Content: "Here you go:\n```python\ngis = GIS(\"https://x\", \"user\", \"pw\")\nprint(1)\n```"}
	exec := &MockExecutor{Result: pyexec.ExecutionResult{Output: "1\n"}}
	synth := &MockSynthesizer{}
	o := New(client, exec, synth)

	res := o.RunTurn(context.Background(), "show me wildfire risk zones")

	require.Len(t, client.Prompts, 1)
	assert.Equal(t, llm.BuildPrompt("show me wildfire risk zones"), client.Prompts[0])

	require.Len(t, exec.Sources, 1)
	assert.Equal(t, "gis = GIS()\nprint(1)", exec.Sources[0].Code)
	assert.False(t, sanitize.HasCredentialedCall(exec.Sources[0].Code))
	assert.Equal(t, 1, res.Source.Rewrites)
	assert.True(t, res.Source.Fenced)

	assert.Equal(t, "1\n", res.Output)
	assert.False(t, res.Failed)
	assert.Equal(t, catalog.Wildfire, res.Category)
	assert.Equal(t, []string{catalog.Default().Query(catalog.Wildfire, "")}, synth.Queries)
	assert.NotNil(t, res.Items)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "mock", res.Model)
}

func TestExecuteRefusesCredentialedSource(t *testing.T) {
	exec := &MockExecutor{Result: pyexec.ExecutionResult{Output: "1\n"}}
	o := New(&MockClient{}, exec, &MockSynthesizer{})

	res := o.execute(context.Background(), sanitize.GeneratedSource{Code: "gis = GIS('https://x', 'user', 'pw')"})

	require.NotNil(t, res.Fault)
	assert.Equal(t, "PermissionError", res.Fault.Kind)
	assert.True(t, strings.HasPrefix(res.Text(), pyexec.ErrorPrefix))
	assert.Empty(t, exec.Sources)

	res = o.execute(context.Background(), sanitize.GeneratedSource{Code: "gis = GIS()"})
	assert.True(t, res.OK())
	assert.Len(t, exec.Sources, 1)
}

func TestRunTurnRecordsSession(t *testing.T) {
	o := New(&MockClient{Content: "print('x')"}, &MockExecutor{}, &MockSynthesizer{})

	res := o.RunTurn(context.Background(), "hello")

	messages := o.Session().GetMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, session.Acknowledgement, messages[1].Content)

	snap, ok := o.Session().Latest()
	require.True(t, ok)
	assert.Equal(t, res.ID, snap.TurnID)
	assert.Equal(t, "print('x')", snap.Code)
	assert.Equal(t, pyexec.SuccessSentinel, snap.Output)
	assert.Equal(t, catalog.Generic, snap.Category)

	o.Reset()
	assert.Empty(t, o.Session().GetMessages())
	_, ok = o.Session().Latest()
	assert.False(t, ok)
}

func TestRunTurnModelFailureContinues(t *testing.T) {
	exec := &MockExecutor{Result: pyexec.ExecutionResult{Fault: &pyexec.Exception{Kind: "SyntaxError", Message: "invalid syntax"}}}
	o := New(&MockClient{Err: errors.New("connection refused")}, exec, &MockSynthesizer{})

	res := o.RunTurn(context.Background(), "show weather")

	require.Len(t, exec.Sources, 1)
	assert.Contains(t, exec.Sources[0].Code, "connection refused")
	assert.True(t, res.Failed)
	assert.True(t, strings.HasPrefix(res.Output, pyexec.ErrorPrefix))
	assert.Equal(t, catalog.Weather, res.Category)
}

func TestRunTurnGenericQueryUsesKeywords(t *testing.T) {
	synth := &MockSynthesizer{}
	o := New(&MockClient{Content: "print(1)"}, &MockExecutor{}, synth)

	o.RunTurn(context.Background(), "hello")

	assert.Equal(t, []catalog.Category{catalog.Generic}, synth.Categories)
	assert.Equal(t, []string{"hello"}, synth.Queries)
}

func TestRunTurnProgress(t *testing.T) {
	var updates []progress.Update
	o := New(&MockClient{Content: "print(1)"}, &MockExecutor{}, &MockSynthesizer{},
		WithProgress(func(u progress.Update) error {
			updates = append(updates, u)
			return errors.New("ignored")
		}))

	o.RunTurn(context.Background(), "hello")

	require.NotEmpty(t, updates)
	assert.Equal(t, progress.StageGenerating, updates[0].Stage)
	assert.Equal(t, ProgressMessage, updates[0].Message)
	assert.Equal(t, progress.StageDone, updates[len(updates)-1].Stage)
	assert.False(t, updates[len(updates)-1].Ephemeral)
}

func TestRunTurnWithoutCollaborators(t *testing.T) {
	o := New(&MockClient{Content: "print(1)"}, nil, nil)

	res := o.RunTurn(context.Background(), "hello")

	assert.True(t, res.Failed)
	assert.Nil(t, res.Map)
	assert.NotNil(t, res.Items)
}

func TestTurnsAreSerialized(t *testing.T) {
	o := New(&MockClient{Content: "print(1)"}, &MockExecutor{}, &MockSynthesizer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunTurn(context.Background(), "hello")
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, o.Session().TurnCount())
	assert.Len(t, o.Session().GetMessages(), 16)
}

func TestEndToEndFailingEnrichmentKeepsFallbackMarkers(t *testing.T) {
	portal := failingPortal{}
	o := New(
		llm.NewRuleBasedClient(catalog.Default()),
		pyexec.NewExecutor(portal),
		geomap.NewSynthesizer(catalog.Default(), portal),
	)

	res := o.RunTurn(context.Background(), "show me wildfire risk zones")

	assert.Equal(t, catalog.Wildfire, res.Category)
	assert.Contains(t, res.Source.Code, `gis.content.search("wildfire risk"`)
	assert.True(t, res.Failed)
	assert.True(t, strings.HasPrefix(res.Output, pyexec.ErrorPrefix))

	require.NotNil(t, res.Map)
	assert.Len(t, res.Map.Markers, 3)
	assert.Len(t, res.Map.Fallbacks(), 3)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
}

func TestHealthCheck(t *testing.T) {
	o := New(&MockClient{}, &MockExecutor{}, &MockSynthesizer{})

	report := o.HealthCheck(context.Background())

	assert.Equal(t, "mock", report.Model)
	assert.True(t, report.ModelOK)
	assert.Equal(t, pyexec.Available, report.Interpreter)
	if pyexec.Available {
		assert.Equal(t, HealthStatusHealthy, report.Status)
	} else {
		assert.Equal(t, HealthStatusDegraded, report.Status)
	}
}

type pingClient struct {
	MockClient
	err error
}

func (p *pingClient) Ping(ctx context.Context) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []string{"llama3:latest"}, nil
}

func TestHealthCheckPingsBackend(t *testing.T) {
	o := New(&pingClient{}, &MockExecutor{}, &MockSynthesizer{})
	report := o.HealthCheck(context.Background())
	assert.True(t, report.ModelOK)
	assert.Equal(t, []string{"llama3:latest"}, report.Models)

	o = New(&pingClient{err: errors.New("refused")}, &MockExecutor{}, &MockSynthesizer{})
	report = o.HealthCheck(context.Background())
	assert.False(t, report.ModelOK)
	assert.NotEqual(t, HealthStatusHealthy, report.Status)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[0], "refused")
}

func TestContextProgress(t *testing.T) {
	var configured, perTurn int
	o := New(&MockClient{Content: "print(1)"}, &MockExecutor{}, &MockSynthesizer{},
		WithProgress(func(progress.Update) error {
			configured++
			return nil
		}))

	ctx := ContextWithProgress(context.Background(), func(progress.Update) error {
		perTurn++
		return nil
	})
	o.RunTurn(ctx, "hello")
	o.RunTurn(context.Background(), "hello")

	assert.Equal(t, 4, perTurn)
	assert.Equal(t, 8, configured)
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/llm"
	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/pyexec"
	"github.com/codefionn/geocopilot/internal/sanitize"
)

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, src sanitize.GeneratedSource) pyexec.ExecutionResult {
	return pyexec.ExecutionResult{Output: "Found 0 wildfire layers:\n"}
}

func newTestCLI(input string) (*CLI, *bytes.Buffer, *bytes.Buffer) {
	orch := orchestrator.New(
		llm.NewRuleBasedClient(catalog.Default()),
		stubExecutor{},
		geomap.NewSynthesizer(catalog.Default(), nil),
	)
	var out, errOut bytes.Buffer
	return New(orch, WithIO(strings.NewReader(input), &out, &errOut)), &out, &errOut
}

func TestRunPrintsWorkspace(t *testing.T) {
	c, out, errOut := newTestCLI("")

	require.NoError(t, c.Run(context.Background(), "show me wildfire risk zones"))

	text := out.String()
	assert.Contains(t, text, "## Code")
	assert.Contains(t, text, `gis.content.search("wildfire risk"`)
	assert.Contains(t, text, "Found 0 wildfire layers:")
	assert.Contains(t, text, "## Wildfire map")
	assert.Contains(t, text, "zone")
	assert.Contains(t, errOut.String(), orchestrator.ProgressMessage)
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	c, _, _ := newTestCLI("")
	assert.Error(t, c.Run(context.Background(), "  "))
}

func TestREPLCommands(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "map.html")
	input := strings.Join([]string{
		"/map " + mapPath,
		"hello",
		"/map " + mapPath,
		"/bogus",
		"/reset",
		"/quit",
		"never reached",
	}, "\n")
	c, out, errOut := newTestCLI(input)

	require.NoError(t, c.REPL(context.Background()))

	assert.Contains(t, errOut.String(), "no map yet")
	assert.Contains(t, errOut.String(), "unknown command /bogus")
	assert.Contains(t, out.String(), "Map written to "+mapPath)
	assert.Contains(t, out.String(), "Session cleared.")
	assert.Empty(t, c.orchestrator.Session().GetMessages())

	data, err := os.ReadFile(mapPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "leaflet")
}

func TestREPLStopsAtEOF(t *testing.T) {
	c, _, _ := newTestCLI("hello\n")
	require.NoError(t, c.REPL(context.Background()))
	assert.Equal(t, 1, c.orchestrator.Session().TurnCount())
}

func TestRenderTurnItems(t *testing.T) {
	res := &orchestrator.TurnResult{
		Source: sanitize.GeneratedSource{Code: "print(1)"},
		Output: pyexec.SuccessSentinel,
		Items: []geomap.ResultItem{
			{Title: "A | B", Kind: "Web Map", Owner: "esri", Modified: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	text := RenderTurn(res)

	assert.Contains(t, text, `| A \| B | Web Map | esri | 2024-03-01 |`)
	assert.Contains(t, text, pyexec.SuccessSentinel)
	assert.NotContains(t, text, "## Map")
}

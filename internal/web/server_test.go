package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/config"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/llm"
	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/pyexec"
	"github.com/codefionn/geocopilot/internal/sanitize"
)

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, src sanitize.GeneratedSource) pyexec.ExecutionResult {
	return pyexec.ExecutionResult{Output: "ok\n"}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	orch := orchestrator.New(
		llm.NewRuleBasedClient(catalog.Default()),
		stubExecutor{},
		geomap.NewSynthesizer(catalog.Default(), nil),
	)
	srv := NewServer(orch, config.ServerConfig{Addr: "127.0.0.1:0", TurnTimeoutSeconds: 5})
	go srv.hub.Run()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.hub.Stop()
	})
	return srv, ts
}

func postTurn(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/turn", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestIndexAndStatic(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "geocopilot")

	resp, err = http.Get(ts.URL + "/static/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTurnAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postTurn(t, ts, `{"utterance":"show me wildfire risk zones"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result orchestrator.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, catalog.Wildfire, result.Category)
	assert.Contains(t, result.Source.Code, "wildfire risk")
	assert.Equal(t, "ok\n", result.Output)
	require.NotNil(t, result.Map)
	assert.Len(t, result.Map.Markers, 3)
	assert.NotNil(t, result.Items)
}

func TestTurnAPIRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postTurn(t, ts, `not json`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postTurn(t, ts, `{"utterance":"   "}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionAndReset(t *testing.T) {
	_, ts := newTestServer(t)
	postTurn(t, ts, `{"utterance":"hello"}`).Body.Close()

	resp, err := http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	var view SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()

	assert.Equal(t, 1, view.Turns)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "Executed. See Workspace.", view.Messages[1].Content)
	require.NotNil(t, view.Latest)
	assert.Equal(t, catalog.Generic, view.Latest.Category)

	resp, err = http.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()
	assert.Equal(t, 0, view.Turns)
	assert.Empty(t, view.Messages)
	assert.Nil(t, view.Latest)
}

func TestMapRoutes(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/map")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	postTurn(t, ts, `{"utterance":"storm damage in florida"}`).Body.Close()

	resp, err = http.Get(ts.URL + "/map")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "leaflet")

	resp, err = http.Get(ts.URL + "/map.geojson")
	require.NoError(t, err)
	var fc geomap.FeatureCollection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	resp.Body.Close()
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 3)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var report orchestrator.HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rule-based", report.Model)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "geocopilot_http_requests_total")
}

func TestWebSocketTurn(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first WebMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, MessageTypeSession, first.Type)

	require.NoError(t, conn.WriteJSON(WebMessage{Type: MessageTypeTurn, Content: "hello"}))

	var stages, contents []string
	var result *orchestrator.TurnResult
	for result == nil {
		var msg WebMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case MessageTypeProgress:
			stages = append(stages, msg.Stage)
			contents = append(contents, msg.Content)
		case MessageTypeResult:
			result = msg.Result
		}
	}

	require.NotEmpty(t, stages)
	assert.Equal(t, "generating", stages[0])
	assert.Equal(t, orchestrator.ProgressMessage, contents[0])
	assert.Equal(t, catalog.Generic, result.Category)
}

func TestWebSocketUnknownMessage(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg WebMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
}

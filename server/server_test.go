package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberat/sonoreport/internal/models"
	"github.com/mberat/sonoreport/pkg/orchestrator"
	"github.com/mberat/sonoreport/pkg/store"
	"github.com/mberat/sonoreport/server"
)

type fakePipeline struct {
	report *models.Report
	chunks []string
	err    error
}

func (f *fakePipeline) Generate(ctx context.Context, finding models.Finding) (*models.Report, error) {
	if finding.LesionType == "" {
		return nil, fmt.Errorf("%w: missing required field lesion_type", orchestrator.ErrInvalidFinding)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakePipeline) GenerateStream(ctx context.Context, finding models.Finding, onChunk func(string)) (*models.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, chunk := range f.chunks {
		onChunk(chunk)
	}
	return f.report, nil
}

func (f *fakePipeline) Translate(ctx context.Context, report string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "ULTRASCHALLBEFUND", nil
}

func sampleReport() *models.Report {
	return &models.Report{
		Raw:         "ULTRASOUND REPORT\n\nFINDINGS:\nA mass.\n\nIMPRESSION:\nBI-RADS 4C",
		Sections:    map[string]string{"FINDINGS": "A mass.", "IMPRESSION": "BI-RADS 4C"},
		BIRADS:      "4c",
		Sources:     []string{"birads-atlas"},
		GeneratedAt: time.Now(),
	}
}

func findingBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(models.Finding{
		LesionType:  "mass",
		Shape:       "irregular",
		Margin:      "spiculated",
		EchoPattern: "hypoechoic",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func newTestServer(pipeline server.Pipeline, streaming bool) *httptest.Server {
	s := server.New(server.Config{Streaming: streaming}, pipeline)
	return httptest.NewServer(s.Handler())
}

func TestHandleReport(t *testing.T) {
	ts := newTestServer(&fakePipeline{report: sampleReport()}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report", "application/json", findingBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report models.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "4c", report.BIRADS)
	assert.Equal(t, []string{"birads-atlas"}, report.Sources)
	assert.Contains(t, report.Sections, "FINDINGS")
}

func TestHandleReportMalformedBody(t *testing.T) {
	ts := newTestServer(&fakePipeline{report: sampleReport()}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleReportInvalidFinding(t *testing.T) {
	ts := newTestServer(&fakePipeline{report: sampleReport()}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report", "application/json", strings.NewReader(`{"shape":"oval"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "lesion_type")
}

func TestHandleReportEmptyStore(t *testing.T) {
	ts := newTestServer(&fakePipeline{err: fmt.Errorf("retrieving guideline passages: %w", store.ErrStoreEmpty)}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report", "application/json", findingBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleReportGenerationFailure(t *testing.T) {
	ts := newTestServer(&fakePipeline{err: fmt.Errorf("generating report: empty response from generation service")}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report", "application/json", findingBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandleReportMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakePipeline{report: sampleReport()}, false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/report")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleTranslate(t *testing.T) {
	ts := newTestServer(&fakePipeline{}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report/translate", "application/json",
		strings.NewReader(`{"report":"ULTRASOUND REPORT"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ULTRASCHALLBEFUND", body["translated"])
}

func TestHandleTranslateEmptyReport(t *testing.T) {
	ts := newTestServer(&fakePipeline{}, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/report/translate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&fakePipeline{}, false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestWebSocketGenerate(t *testing.T) {
	pipeline := &fakePipeline{
		report: sampleReport(),
		chunks: []string{"ULTRASOUND ", "REPORT"},
	}
	ts := newTestServer(pipeline, true)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	finding, err := json.Marshal(models.Finding{
		LesionType:  "mass",
		Shape:       "irregular",
		Margin:      "spiculated",
		EchoPattern: "hypoechoic",
	})
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "generate", Data: finding}))

	var streamed string
	for {
		var msg struct {
			Type    string          `json:"type"`
			Content string          `json:"content"`
			Data    json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg.Type {
		case "stream":
			streamed += msg.Content
		case "report":
			var report models.Report
			require.NoError(t, json.Unmarshal(msg.Data, &report))
			assert.Equal(t, "4c", report.BIRADS)
			assert.Equal(t, "ULTRASOUND REPORT", streamed)
			return
		case "error":
			t.Fatalf("unexpected error frame: %s", msg.Content)
		}
	}
}

func TestWebSocketUnknownType(t *testing.T) {
	ts := newTestServer(&fakePipeline{report: sampleReport()}, true)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(server.Message{Type: "ping"}))

	var msg struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "unknown message type")
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-auditor/internal/audit"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hooks/stripe":
			w.WriteHeader(http.StatusUnauthorized)
		case "/hooks/zapier":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	store, err := catalog.New(catalog.File{
		Version:   "v1",
		APIGroups: []catalog.APIGroup{{Name: "hooks", BaseURL: backend.URL + "/hooks"}},
		Webhooks: []catalog.Webhook{
			{Name: "stripe", Integration: "Stripe", APIGroup: "hooks", Path: "/stripe", ExpectedBehavior: catalog.BehaviorRequiresSignature},
			{Name: "zapier", Integration: "Zapier", APIGroup: "hooks", Path: "/zapier", ExpectedBehavior: catalog.BehaviorAcceptsPayload},
			{Name: "gone", Integration: "Legacy", APIGroup: "hooks", Path: "/gone", ExpectedBehavior: catalog.BehaviorAcceptsPayload},
		},
		Functions: []catalog.Function{
			{ID: 1, Name: "Workers/Roster Sync"},
			{ID: 2, Name: "Archive/Roster Sync v1"},
		},
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ReportsDir = filepath.Join(t.TempDir(), "reports")
	if mutate != nil {
		mutate(cfg)
	}

	srv := NewServer(audit.New(cfg, store, zerolog.Nop()), zerolog.Nop())
	srv.poll = 10 * time.Millisecond

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func startRun(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created["task_id"])
	return created["task_id"]
}

func waitForTask(t *testing.T, ts *httptest.Server, id string) RunTask {
	t.Helper()
	var task RunTask
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/runs/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
			return false
		}
		return task.finished()
	}, 5*time.Second, 20*time.Millisecond)
	return task
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t)

	id := startRun(t, ts, `{"validator":"webhooks","save":true}`)
	task := waitForTask(t, ts, id)

	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, catalog.KindWebhook, task.Validator)
	require.NotNil(t, task.Summary)
	assert.Equal(t, 3, task.Summary.Total)
	assert.Equal(t, 2, task.Summary.Passed)
	assert.Equal(t, 1, task.Summary.Failed)
	assert.True(t, strings.HasSuffix(task.ReportPath, ".json"))
}

func TestRunReportsPersistFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	ts := newTestServerWith(t, func(c *config.Config) {
		c.ReportsDir = filepath.Join(blocker, "reports")
	})

	id := startRun(t, ts, `{"validator":"webhooks","save":true}`)
	task := waitForTask(t, ts, id)

	assert.Equal(t, StatusCompleted, task.Status)
	require.NotNil(t, task.Summary)
	assert.Equal(t, 3, task.Summary.Total)
	assert.Empty(t, task.ReportPath)
	assert.Contains(t, task.Message, "报告保存失败")
}

func TestRunFilterAndErrors(t *testing.T) {
	ts := newTestServer(t)

	id := startRun(t, ts, `{"validator":"webhooks","filter":{"integration":"stripe"}}`)
	task := waitForTask(t, ts, id)
	require.NotNil(t, task.Summary)
	assert.Equal(t, 1, task.Summary.Total)
	assert.Empty(t, task.ReportPath)

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewBufferString(`{"validator":"columns"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketStream(t *testing.T) {
	ts := newTestServer(t)
	id := startRun(t, ts, `{"validator":"webhooks"}`)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?run_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	outcomes := 0
	var last Event
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.Type == "outcome" {
			outcomes++
		}
		last = ev
	}

	assert.Equal(t, 3, outcomes)
	require.NotNil(t, last.Task)
	assert.Equal(t, StatusCompleted, last.Task.Status)
}

func TestCatalogEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/catalog")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Version string         `json:"version"`
		Counts  map[string]int `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "v1", body.Version)
	assert.Equal(t, 3, body.Counts["webhook"])
	assert.Equal(t, 1, body.Counts["function"])
}

func TestCheckRecordSource(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/record-source/check", "application/json",
		bytes.NewBufferString(`{"source":"http","content_url":"http://meta/table/{table_id}/content"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
}

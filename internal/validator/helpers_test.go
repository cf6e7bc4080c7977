package validator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/probe"
)

var testID = TestIdentity{UserID: 7, TeamID: 3}

func newTestStore(t *testing.T, baseURL string) *catalog.Store {
	t.Helper()

	store, err := catalog.New(catalog.File{
		Version: "test",
		Tables: []catalog.Table{
			{ID: 1, Name: "user", Category: "auth"},
			{ID: 2, Name: "user_credentials", Category: "auth"},
			{ID: 3, Name: "team", Category: "teams"},
			{ID: 4, Name: "team_member", Category: "teams"},
		},
		APIGroups: []catalog.APIGroup{
			{Name: "workers", BaseURL: baseURL + "/api:workers", Category: "Workers"},
			{Name: "system", BaseURL: baseURL + "/api:system", Category: "System"},
			{Name: "webhooks", BaseURL: baseURL + "/api:webhooks"},
		},
		Endpoints: []catalog.Endpoint{
			{Path: "/test-function-8032-team-roster-sync", Method: "POST", APIGroup: "workers", RequiresTestID: true},
			{Path: "/health", Method: "GET", APIGroup: "system"},
		},
		Functions: []catalog.Function{
			{ID: 8032, Name: "Workers/Syncing - Team Roster", Domain: "teams"},
			{ID: 9001, Name: "Archive/Old Sync"},
			{ID: 9002, Name: "Workers/Nothing Matches This"},
		},
		FunctionHints: []catalog.FunctionHint{
			{FunctionID: 42, Path: "/health", Method: "GET", APIGroup: "system"},
		},
	})
	require.NoError(t, err)
	return store
}

type fakeProber struct {
	mu      sync.Mutex
	reqs    []probe.Request
	respond func(req probe.Request) (*probe.Response, error)
}

func (f *fakeProber) Do(_ context.Context, req probe.Request) (*probe.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeProber) requests() []probe.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]probe.Request(nil), f.reqs...)
}

func statusProber(status int, body string) *fakeProber {
	return &fakeProber{respond: func(probe.Request) (*probe.Response, error) {
		return &probe.Response{StatusCode: status, Body: []byte(body)}, nil
	}}
}

// memorySource 内存记录源：表名 -> 行
type memorySource struct {
	mu      sync.Mutex
	rows    map[string][]adapter.Row
	fail    map[string]error
	lookups int
	// ignoreLimit 模拟不理会 per_page 的远端
	ignoreLimit bool
}

func (m *memorySource) SampleRows(_ context.Context, table adapter.TableRef, limit int) (*adapter.Page, error) {
	if err := m.fail[table.Name]; err != nil {
		return nil, err
	}
	rows := m.rows[table.Name]
	total := int64(len(rows))
	if len(rows) > limit && !m.ignoreLimit {
		rows = rows[:limit]
	}
	return &adapter.Page{Rows: rows, Total: total, TotalKnown: true, StatusCode: 200}, nil
}

func (m *memorySource) Exists(_ context.Context, table adapter.TableRef, field string, value any) (bool, error) {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()

	if err := m.fail[table.Name]; err != nil {
		return false, err
	}
	want := adapter.FormatValue(value)
	for _, row := range m.rows[table.Name] {
		if v, ok := row[field]; ok && adapter.FormatValue(v) == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySource) Close() error { return nil }

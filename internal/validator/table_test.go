package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
)

func TestTableValidator(t *testing.T) {
	store := newTestStore(t, "http://unused")
	source := &memorySource{
		rows: map[string][]adapter.Row{
			"user": {{"id": 1.0}, {"id": 2.0}},
		},
		fail: map[string]error{
			"team": &probe.TransportError{Method: "GET", URL: "http://x", Timeout: true, Err: context.DeadlineExceeded},
		},
	}
	v := NewTableValidator(store, source)

	t.Run("readable table passes", func(t *testing.T) {
		o := v.Validate(context.Background(), catalog.Table{ID: 1, Name: "user"})
		assert.Equal(t, outcome.StatusPassed, o.Status)
		assert.Equal(t, int64(2), o.Metadata["record_count"])
		assert.Equal(t, true, o.Metadata["has_data"])
	})

	t.Run("empty table still passes", func(t *testing.T) {
		o := v.Validate(context.Background(), catalog.Table{ID: 4, Name: "team_member"})
		assert.True(t, o.Success)
		assert.Equal(t, false, o.Metadata["has_data"])
	})

	t.Run("id resolved from catalog", func(t *testing.T) {
		o := v.Validate(context.Background(), catalog.Table{Name: "user_credentials"})
		assert.True(t, o.Success)
		assert.Equal(t, 2, o.Metadata["table_id"])
	})

	t.Run("timeout is a failure", func(t *testing.T) {
		o := v.Validate(context.Background(), catalog.Table{ID: 3, Name: "team"})
		assert.Equal(t, outcome.StatusFailed, o.Status)
		assert.Equal(t, true, o.Metadata["timeout"])
		assert.Contains(t, o.Error, "TIMEOUT")
	})

	t.Run("unknown table is a configuration error", func(t *testing.T) {
		o := v.Validate(context.Background(), catalog.Table{Name: "ghost"})
		assert.Equal(t, outcome.StatusFailed, o.Status)
		assert.Equal(t, "configuration", o.Metadata["error_type"])
	})

	t.Run("remote error keeps status code", func(t *testing.T) {
		source.fail["user"] = &probe.RemoteError{StatusCode: 500, Body: "oops"}
		defer delete(source.fail, "user")

		o := v.Validate(context.Background(), catalog.Table{ID: 1, Name: "user"})
		assert.Equal(t, outcome.StatusFailed, o.Status)
		assert.Equal(t, 500, o.Metadata["status_code"])
	})
}

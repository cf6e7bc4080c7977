package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
)

func TestReferenceValidator_NullOnNonNullableIsOrphan(t *testing.T) {
	store := newTestStore(t, "http://unused")
	source := &memorySource{rows: map[string][]adapter.Row{
		"user_credentials": {{"id": 11.0, "user_id": nil}},
		"user":             {{"id": 1.0}},
	}}
	v := NewReferenceValidator(store, source, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "user_credentials", Field: "user_id",
		ReferencesTable: "user", ReferencesField: "id",
		Nullable: false,
	})

	assert.False(t, o.Success)
	assert.Equal(t, 1, o.Metadata["orphan_count"])
	assert.Equal(t, []string{"11"}, o.Metadata["sample_orphan_ids"])
	assert.Equal(t, "user", o.Group)
	assert.Equal(t, 0, source.lookups)
}

func TestReferenceValidator_NullableNullIsFine(t *testing.T) {
	store := newTestStore(t, "http://unused")
	source := &memorySource{rows: map[string][]adapter.Row{
		"team_member": {{"id": 1.0, "team_id": nil}, {"id": 2.0}},
	}}
	v := NewReferenceValidator(store, source, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "team_member", Field: "team_id", ReferencesTable: "team", Nullable: true,
	})

	assert.True(t, o.Success)
	assert.Equal(t, 0, o.Metadata["orphan_count"])
	assert.Equal(t, 2, o.Metadata["null_fk_count"])
}

func TestReferenceValidator_CachesParentLookups(t *testing.T) {
	store := newTestStore(t, "http://unused")

	var children []adapter.Row
	for i := 0; i < 40; i++ {
		teamID := 1.0
		if i%2 == 1 {
			teamID = 2.0
		}
		children = append(children, adapter.Row{"id": float64(100 + i), "team_id": teamID})
	}
	source := &memorySource{rows: map[string][]adapter.Row{
		"team_member": children,
		"team":        {{"id": 1.0}},
	}}
	v := NewReferenceValidator(store, source, 100, 5)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "team_member", Field: "team_id", ReferencesTable: "team",
	})

	// 40 行只有两个不同外键值
	assert.Equal(t, 2, source.lookups)
	assert.Equal(t, 2, o.Metadata["parent_lookups"])
	assert.Equal(t, outcome.StatusFailed, o.Status)
	assert.Equal(t, 20, o.Metadata["orphan_count"])
	assert.Len(t, o.Metadata["sample_orphan_ids"], 5)
	assert.Equal(t, 40, o.Metadata["rows_checked"])
}

func TestReferenceValidator_SampleIsBounded(t *testing.T) {
	store := newTestStore(t, "http://unused")

	var children []adapter.Row
	for i := 0; i < 250; i++ {
		children = append(children, adapter.Row{"id": float64(i), "user_id": 1.0})
	}
	source := &memorySource{rows: map[string][]adapter.Row{
		"user_credentials": children,
		"user":             {{"id": 1.0}},
	}}
	v := NewReferenceValidator(store, source, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "user_credentials", Field: "user_id", ReferencesTable: "user",
	})

	assert.True(t, o.Success)
	assert.Equal(t, DefaultSampleSize, o.Metadata["rows_checked"])
}

func TestReferenceValidator_TrimsOversizedPage(t *testing.T) {
	store := newTestStore(t, "http://unused")

	var children []adapter.Row
	for i := 0; i < 250; i++ {
		children = append(children, adapter.Row{"id": float64(i), "user_id": float64(1000 + i)})
	}
	source := &memorySource{
		rows: map[string][]adapter.Row{
			"user_credentials": children,
			"user":             {{"id": 1.0}},
		},
		ignoreLimit: true,
	}
	v := NewReferenceValidator(store, source, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "user_credentials", Field: "user_id", ReferencesTable: "user",
	})

	assert.Equal(t, DefaultSampleSize, o.Metadata["rows_checked"])
	assert.Equal(t, DefaultSampleSize, o.Metadata["parent_lookups"])
	assert.Equal(t, DefaultSampleSize, source.lookups)
	assert.Equal(t, DefaultSampleSize, o.Metadata["orphan_count"])
}

func TestReferenceValidator_UnresolvableTable(t *testing.T) {
	store := newTestStore(t, "http://unused")
	v := NewReferenceValidator(store, &memorySource{}, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "invoice_line", Field: "invoice_id", ReferencesTable: "invoice",
	})

	require.Equal(t, outcome.StatusFailed, o.Status)
	assert.Equal(t, "configuration", o.Metadata["error_type"])
	assert.Contains(t, o.Error, "invoice_line")
}

func TestReferenceValidator_LookupFailure(t *testing.T) {
	store := newTestStore(t, "http://unused")
	source := &memorySource{
		rows: map[string][]adapter.Row{"user_credentials": {{"id": 1.0, "user_id": 9.0}}},
		fail: map[string]error{"user": &probe.RemoteError{StatusCode: 502}},
	}
	v := NewReferenceValidator(store, source, 0, 0)

	o := v.Validate(context.Background(), catalog.ReferenceEdge{
		Table: "user_credentials", Field: "user_id", ReferencesTable: "user",
	})

	assert.Equal(t, outcome.StatusFailed, o.Status)
	assert.Equal(t, 502, o.Metadata["status_code"])
	assert.Contains(t, o.Error, "parent lookup in user")
}

package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

func testGraph(t *testing.T) *ReferenceGraph {
	t.Helper()

	edges := []catalog.ReferenceEdge{
		{Table: "user_credentials", Field: "user_id", ReferencesTable: "user"},
		{Table: "team_member", Field: "user_id", ReferencesTable: "user", CascadeDelete: true},
		{Table: "team_member", Field: "team_id", ReferencesTable: "team", Nullable: true},
	}
	store, err := catalog.New(catalog.File{
		Tables: []catalog.Table{
			{ID: 1, Name: "user", Category: "auth"},
			{ID: 2, Name: "user_credentials", Category: "auth"},
			{ID: 4, Name: "team_member"},
		},
		References: edges,
	})
	require.NoError(t, err)
	return Build(store, store.ListReferenceEdges(catalog.Filter{}))
}

func TestBuild(t *testing.T) {
	g := testGraph(t)

	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 3)

	user := g.Nodes["user"]
	assert.Equal(t, 2, user.Children)
	assert.Equal(t, 1, user.TableID)
	assert.True(t, user.Resolved)
	assert.Equal(t, "auth", user.Category)

	// team 不在目录中
	assert.False(t, g.Nodes["team"].Resolved)
	assert.Equal(t, 2, g.Nodes["team_member"].Parents)

	e := g.GetEdge("team_member.team_id->team.id")
	require.NotNil(t, e)
	assert.Equal(t, EdgeTypeNullableFK, e.Type)
	assert.False(t, e.Checked())
}

func TestAnnotateAndGroup(t *testing.T) {
	g := testGraph(t)

	outcomes := []outcome.Outcome{
		outcome.Failed(catalog.KindReference, "user_credentials.user_id->user.id", "3 orphaned rows",
			outcome.WithMeta("orphan_count", 3), outcome.WithMeta("rows_checked", 100),
			outcome.WithMeta("sample_orphan_ids", []string{"5", "9", "12"})),
		outcome.Failed(catalog.KindReference, "team_member.user_id->user.id", "1 orphaned rows",
			outcome.WithMeta("orphan_count", 1), outcome.WithMeta("rows_checked", 40)),
		outcome.Passed(catalog.KindReference, "team_member.team_id->team.id",
			outcome.WithMeta("orphan_count", 0)),
		outcome.Passed(catalog.KindTable, "user"),
		outcome.Passed(catalog.KindReference, "unknown.x->y.id"),
	}
	assert.Equal(t, 3, g.AnnotateAll(outcomes))

	groups := g.ByParent()
	require.Len(t, groups, 2)
	assert.Equal(t, "user", groups[0].Parent)
	assert.Equal(t, 4, groups[0].Orphans)
	assert.True(t, groups[0].Systemic)
	assert.Equal(t, "team", groups[1].Parent)
	assert.False(t, groups[1].Systemic)

	e := g.GetEdge("user_credentials.user_id->user.id")
	assert.Equal(t, []string{"5", "9", "12"}, e.SampleOrphan)
	assert.Equal(t, 100, e.RowsChecked)
}

func TestAnnotate_DecodedMetadata(t *testing.T) {
	g := testGraph(t)

	// 从 JSON 报告读回的结果
	var o outcome.Outcome
	require.NoError(t, json.Unmarshal([]byte(`{
		"kind": "reference",
		"name": "team_member.user_id->user.id",
		"status": "failed",
		"metadata": {"orphan_count": 2, "sample_orphan_ids": ["7", "8"]}
	}`), &o))

	require.True(t, g.Annotate(o))
	e := g.GetEdge("team_member.user_id->user.id")
	assert.Equal(t, 2, e.OrphanCount)
	assert.Equal(t, []string{"7", "8"}, e.SampleOrphan)
}

func TestToJSON(t *testing.T) {
	data, err := testGraph(t).ToJSON()
	require.NoError(t, err)

	var decoded struct {
		Nodes map[string]Node `json:"nodes"`
		Edges map[string]Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Edges, 3)
	assert.Equal(t, "user", decoded.Edges["user_credentials.user_id->user.id"].To)
}

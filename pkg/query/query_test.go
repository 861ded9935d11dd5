package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/intent/pkg/query"
)

func workflowProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "workflows", "w").
		Project("id", "ID").
		Project("name", "Name").
		Project("state", "State").
		Project("created_at", "CreatedAt")
}

const selectWorkflows = "SELECT w.id, w.name, w.state, w.created_at FROM public.workflows w"

func ptr(s string) *string { return &s }

func TestProjectionMap(t *testing.T) {
	p := workflowProjection()

	assert.Equal(t, "public.workflows w", p.Table())
	assert.Equal(t, "w.id, w.name, w.state, w.created_at", p.Columns())
	assert.Equal(t, "w.created_at", p.Column("CreatedAt"))
	assert.Equal(t, "unknown", p.Column("unknown"))
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{"empty", "", nil},
		{"ascending", "Name", []query.SortField{{Field: "Name"}}},
		{"descending", "-CreatedAt", []query.SortField{{Field: "CreatedAt", Descending: true}}},
		{"mixed with spaces", " Name , -CreatedAt ", []query.SortField{
			{Field: "Name"},
			{Field: "CreatedAt", Descending: true},
		}},
		{"empty parts skipped", "Name,,State", []query.SortField{{Field: "Name"}, {Field: "State"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, query.ParseSortFields(tt.input))
		})
	}
}

func TestBuild(t *testing.T) {
	sql, args := query.NewBuilder(workflowProjection()).Build()
	assert.Equal(t, selectWorkflows, sql)
	assert.Empty(t, args)
}

func TestBuildWithDefaultSort(t *testing.T) {
	sql, _ := query.NewBuilder(workflowProjection(), query.SortField{Field: "CreatedAt", Descending: true}).Build()
	assert.Equal(t, selectWorkflows+" ORDER BY w.created_at DESC", sql)
}

func TestDefaultSortWithUnprojectedTiebreak(t *testing.T) {
	sql, _ := query.NewBuilder(workflowProjection(),
		query.SortField{Field: "CreatedAt", Descending: true},
		query.SortField{Field: "w.seq", Descending: true},
	).BuildPage(1, 1)
	assert.Equal(t, selectWorkflows+" ORDER BY w.created_at DESC, w.seq DESC LIMIT 1 OFFSET 0", sql)
}

func TestOrderByFieldsOverridesDefault(t *testing.T) {
	sql, _ := query.NewBuilder(workflowProjection(), query.SortField{Field: "CreatedAt", Descending: true}).
		OrderByFields([]query.SortField{{Field: "Name"}, {Field: "CreatedAt", Descending: true}}).
		Build()
	assert.Equal(t, selectWorkflows+" ORDER BY w.name ASC, w.created_at DESC", sql)
}

func TestBuildCount(t *testing.T) {
	state := "seeds"
	sql, args := query.NewBuilder(workflowProjection()).WhereEquals("State", &state).BuildCount()
	assert.Equal(t, "SELECT COUNT(*) FROM public.workflows w WHERE w.state = $1", sql)
	assert.Equal(t, []any{&state}, args)
}

func TestBuildPage(t *testing.T) {
	sql, _ := query.NewBuilder(workflowProjection(), query.SortField{Field: "CreatedAt", Descending: true}).BuildPage(2, 10)
	assert.Equal(t, selectWorkflows+" ORDER BY w.created_at DESC LIMIT 10 OFFSET 10", sql)
}

func TestBuildSingleOrNull(t *testing.T) {
	sql, args := query.NewBuilder(workflowProjection()).WhereEquals("ID", "abc").BuildSingleOrNull()
	assert.Equal(t, selectWorkflows+" WHERE w.id = $1 LIMIT 1", sql)
	assert.Equal(t, []any{"abc"}, args)
}

func TestWhereEqualsSkipsNil(t *testing.T) {
	var state *string
	sql, args := query.NewBuilder(workflowProjection()).WhereEquals("State", state).WhereEquals("Name", nil).Build()
	assert.Equal(t, selectWorkflows, sql)
	assert.Empty(t, args)
}

func TestWhereSearch(t *testing.T) {
	sql, args := query.NewBuilder(workflowProjection()).
		WhereEquals("State", "seeds").
		WhereSearch(ptr("crm"), "Name", "State").
		Build()

	assert.Equal(t, selectWorkflows+" WHERE w.state = $1 AND (w.name ILIKE $2 OR w.state ILIKE $3)", sql)
	assert.Equal(t, []any{"seeds", "%crm%", "%crm%"}, args)
}

func TestWhereSearchSkipsEmpty(t *testing.T) {
	sql, _ := query.NewBuilder(workflowProjection()).WhereSearch(ptr("")).WhereSearch(nil, "Name").Build()
	assert.Equal(t, selectWorkflows, sql)
}

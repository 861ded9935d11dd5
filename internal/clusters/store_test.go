package clusters_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/clusters"
)

type rowsAffected int64

func (r rowsAffected) LastInsertId() (int64, error) { return 0, nil }
func (r rowsAffected) RowsAffected() (int64, error) { return int64(r), nil }

// keywordTable resolves edge inserts against a fixed set of recorded keywords.
type keywordTable struct {
	recorded map[string]bool
	calls    int
}

func (k *keywordTable) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	k.calls++
	hub, spoke := args[1].(string), args[2].(string)
	if k.recorded[hub] && k.recorded[spoke] {
		return rowsAffected(1), nil
	}
	return rowsAffected(0), nil
}

func edges(hub string, spokes ...string) []clusters.EdgeInput {
	out := make([]clusters.EdgeInput, len(spokes))
	for i, s := range spokes {
		out[i] = clusters.EdgeInput{Hub: hub, Spoke: s, Similarity: score(0.8)}
	}
	return out
}

func TestInsertEdges(t *testing.T) {
	table := &keywordTable{recorded: map[string]bool{"crm": true, "a": true, "b": true}}

	n, err := clusters.InsertEdges(context.Background(), table, uuid.New(), edges("crm", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertEdgesUnrecordedSpoke(t *testing.T) {
	table := &keywordTable{recorded: map[string]bool{"crm": true, "a": true, "b": true}}

	n, err := clusters.InsertEdges(context.Background(), table, uuid.New(), edges("crm", "a", "ghost", "b"))
	require.ErrorIs(t, err, clusters.ErrUnresolvedEdge)
	assert.Contains(t, err.Error(), `"ghost"`)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, table.calls)
}

func TestInsertEdgesUnrecordedHub(t *testing.T) {
	table := &keywordTable{recorded: map[string]bool{"a": true}}

	_, err := clusters.InsertEdges(context.Background(), table, uuid.New(), edges("crm", "a"))
	assert.ErrorIs(t, err, clusters.ErrUnresolvedEdge)
}

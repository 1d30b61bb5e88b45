package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/skaldhq/skald/internal/config"
	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

const testDim = 3

// openTestStores returns one store per available backend. sqlite always
// runs; postgres only when TEST_DB_HOST is set.
func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}

	sqliteStore, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })
	stores["sqlite"] = sqliteStore

	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		pgStore, err := OpenPostgres(context.Background(), config.DatabaseConfig{
			Host:     host,
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "skald_test",
		}, testDim)
		require.NoError(t, err)
		t.Cleanup(func() { pgStore.Close() })
		stores["postgres"] = pgStore
	}
	return stores
}

func newTestDocument(agentID, id string, ctime int64) *model.Document {
	return &model.Document{
		ID:       id,
		AgentID:  agentID,
		Text:     "body of " + id,
		Kind:     "reference",
		Source:   "https://example.com/" + id,
		Checksum: "sum-" + id,
		Ctime:    ctime,
	}
}

func TestStoreDocumentLifecycle(t *testing.T) {
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := uuid.NewString()
			docID := uuid.NewString()

			doc := newTestDocument(agentID, docID, 1000)
			doc.Metadata = map[string]interface{}{"topic": "go"}
			require.NoError(t, st.CreateDocument(ctx, doc))

			err := st.CreateDocument(ctx, newTestDocument(agentID, docID, 1001))
			require.ErrorIs(t, err, appErr.ErrConflict)

			fetched, err := st.GetDocument(ctx, docID)
			require.NoError(t, err)
			require.NotNil(t, fetched)
			require.Equal(t, agentID, fetched.AgentID)
			require.Equal(t, "sum-"+docID, fetched.Checksum)
			require.Equal(t, "go", fetched.Metadata["topic"])
			require.True(t, fetched.IsMain)

			require.NoError(t, st.DeleteDocument(ctx, docID))
			fetched, err = st.GetDocument(ctx, docID)
			require.NoError(t, err)
			require.Nil(t, fetched)

			// deleting again is a no-op
			require.NoError(t, st.DeleteDocument(ctx, docID))
		})
	}
}

func TestStoreFragmentsAndSearch(t *testing.T) {
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := uuid.NewString()
			docID := uuid.NewString()
			require.NoError(t, st.CreateDocument(ctx, newTestDocument(agentID, docID, 1000)))

			fragments := []*model.Fragment{
				{
					ID:         uuid.NewString(),
					AgentID:    agentID,
					DocumentID: docID,
					Text:       "go concurrency patterns",
					Position:   0,
					Embedding:  []float32{1, 0, 0},
					Metadata:   map[string]interface{}{"lang": "go"},
				},
				{
					ID:         uuid.NewString(),
					AgentID:    agentID,
					DocumentID: docID,
					Text:       "unrelated cooking notes",
					Position:   1,
					Embedding:  []float32{0, 1, 0},
					Metadata:   map[string]interface{}{"lang": "en"},
				},
			}
			require.NoError(t, st.CreateFragments(ctx, fragments))

			results, err := st.SearchSimilar(ctx, agentID, []float32{1, 0, 0}, SearchOptions{Limit: 10, Threshold: 0.5})
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.Equal(t, "go concurrency patterns", results[0].Text)
			require.Equal(t, docID, results[0].DocumentID)
			require.InDelta(t, 1.0, results[0].Similarity, 0.001)

			// zero threshold still excludes the orthogonal fragment
			results, err = st.SearchSimilar(ctx, agentID, []float32{1, 0, 0}, SearchOptions{Limit: 10, Threshold: 0})
			require.NoError(t, err)
			require.Len(t, results, 1)

			// metadata filter removes the matching fragment
			results, err = st.SearchSimilar(ctx, agentID, []float32{1, 0, 0}, SearchOptions{
				Limit:     10,
				Threshold: 0.5,
				Filters:   []Filter{{Field: "lang", Op: OpEq, Value: "en"}},
			})
			require.NoError(t, err)
			require.Len(t, results, 0)

			// other agents never see these fragments
			results, err = st.SearchSimilar(ctx, uuid.NewString(), []float32{1, 0, 0}, SearchOptions{Limit: 10, Threshold: 0.5})
			require.NoError(t, err)
			require.Len(t, results, 0)

			// delete cascades to fragments and embeddings
			require.NoError(t, st.DeleteDocument(ctx, docID))
			results, err = st.SearchSimilar(ctx, agentID, []float32{1, 0, 0}, SearchOptions{Limit: 10, Threshold: 0.5})
			require.NoError(t, err)
			require.Len(t, results, 0)
		})
	}
}

func TestStoreFragmentValidation(t *testing.T) {
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := uuid.NewString()

			err := st.CreateFragments(ctx, []*model.Fragment{{
				ID:        uuid.NewString(),
				AgentID:   agentID,
				Embedding: nil,
			}})
			require.ErrorIs(t, err, appErr.ErrInvalid)

			err = st.CreateFragments(ctx, []*model.Fragment{{
				ID:        uuid.NewString(),
				AgentID:   agentID,
				Embedding: []float32{1, 2},
			}})
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

func TestStoreListPagination(t *testing.T) {
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := uuid.NewString()
			ids := make([]string, 5)
			for i := 0; i < 5; i++ {
				ids[i] = uuid.NewString()
				require.NoError(t, st.CreateDocument(ctx, newTestDocument(agentID, ids[i], int64(1000+i))))
			}

			var collected []string
			cursor := ""
			pages := 0
			for {
				docs, next, err := st.ListDocuments(ctx, agentID, ListOptions{Limit: 2, Cursor: cursor})
				require.NoError(t, err)
				for _, doc := range docs {
					collected = append(collected, doc.ID)
				}
				pages++
				if next == "" {
					break
				}
				cursor = next
			}
			require.Equal(t, 3, pages)
			require.Len(t, collected, 5)
			// newest first by default
			require.Equal(t, ids[4], collected[0])
			require.Equal(t, ids[0], collected[4])

			docs, next, err := st.ListDocuments(ctx, agentID, ListOptions{Limit: 10, SortAsc: true})
			require.NoError(t, err)
			require.Empty(t, next)
			require.Len(t, docs, 5)
			require.Equal(t, ids[0], docs[0].ID)

			_, _, err = st.ListDocuments(ctx, agentID, ListOptions{Limit: 2, Cursor: "%%%not-base64%%%"})
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

func TestStoreListFilters(t *testing.T) {
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			agentID := uuid.NewString()
			for i := 0; i < 4; i++ {
				doc := newTestDocument(agentID, uuid.NewString(), int64(1000+i))
				doc.Metadata = map[string]interface{}{
					"topic":    fmt.Sprintf("topic-%d", i%2),
					"priority": i,
					"tags":     []interface{}{fmt.Sprintf("t%d", i), "common"},
				}
				require.NoError(t, st.CreateDocument(ctx, doc))
			}

			docs, _, err := st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "topic", Op: OpEq, Value: "topic-1"}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 2)

			docs, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "priority", Op: OpGte, Value: 2}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 2)

			docs, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "topic", Op: OpIn, Values: []interface{}{"topic-0", "missing"}}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 2)

			docs, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "tags", Op: OpContains, Values: []interface{}{"t3"}}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 1)

			docs, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "tags", Op: OpContains, Values: []interface{}{"common"}}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 4)

			// empty operand sets match nothing
			docs, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "topic", Op: OpIn}},
			})
			require.NoError(t, err)
			require.Len(t, docs, 0)

			_, _, err = st.ListDocuments(ctx, agentID, ListOptions{
				Filters: []Filter{{Field: "bad field;drop", Op: OpEq, Value: "x"}},
			})
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

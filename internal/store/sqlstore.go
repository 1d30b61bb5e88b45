package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/skaldhq/skald/internal/model"
	"github.com/skaldhq/skald/internal/pkg/dbutil"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
	"github.com/skaldhq/skald/internal/pkg/timeutil"
)

var documentColumns = []string{"id", "agent_id", "text", "kind", "source", "metadata", "checksum", "document_id", "created_at"}

type sqlStore struct {
	db  *sql.DB
	d   dialect
	dim int
}

func (s *sqlStore) embeddingTable() string {
	if s.d.driver == driverPostgres {
		return fmt.Sprintf("knowledge_embeddings_%d", s.dim)
	}
	return "knowledge_embeddings"
}

func (s *sqlStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", appErr.ErrInvalid)
	}
	ctime := doc.Ctime
	if ctime == 0 {
		ctime = timeutil.NowUnix()
	}
	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata", appErr.ErrInvalid)
	}
	data := map[string]interface{}{
		"id":          doc.ID,
		"agent_id":    doc.AgentID,
		"text":        doc.Text,
		"kind":        doc.Kind,
		"source":      doc.Source,
		"metadata":    metadata,
		"checksum":    doc.Checksum,
		"document_id": doc.DocumentID,
		"is_main":     s.d.boolVal(true),
		"created_at":  ctime,
	}
	sqlStr, args, err := builder.BuildInsert("knowledge", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = s.d.finalize(sqlStr, args)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: document %s", appErr.ErrConflict, doc.ID)
		}
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) CreateFragments(ctx context.Context, fragments []*model.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	for _, frag := range fragments {
		if len(frag.Embedding) == 0 {
			return fmt.Errorf("%w: fragment %s has no embedding", appErr.ErrInvalid, frag.ID)
		}
		if s.dim > 0 && len(frag.Embedding) != s.dim {
			return fmt.Errorf("%w: fragment %s embedding dimension %d, want %d",
				appErr.ErrInvalid, frag.ID, len(frag.Embedding), s.dim)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	defer tx.Rollback()

	for _, frag := range fragments {
		if err := s.insertFragmentTx(ctx, tx, frag); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) insertFragmentTx(ctx context.Context, tx *sql.Tx, frag *model.Fragment) error {
	ctime := frag.Ctime
	if ctime == 0 {
		ctime = timeutil.NowUnix()
	}
	metadata := frag.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["position"] = frag.Position
	blob, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata", appErr.ErrInvalid)
	}
	row := map[string]interface{}{
		"id":          frag.ID,
		"agent_id":    frag.AgentID,
		"text":        frag.Text,
		"kind":        "",
		"source":      "",
		"metadata":    blob,
		"checksum":    "",
		"document_id": frag.DocumentID,
		"is_main":     s.d.boolVal(false),
		"created_at":  ctime,
	}
	sqlStr, args, err := builder.BuildInsert("knowledge", []map[string]interface{}{row})
	if err != nil {
		return err
	}
	sqlStr, args = s.d.finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: fragment %s", appErr.ErrConflict, frag.ID)
		}
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}

	var embValue interface{}
	if s.d.driver == driverPostgres {
		embValue = pgvector.NewVector(frag.Embedding)
	} else {
		data, err := json.Marshal(frag.Embedding)
		if err != nil {
			return fmt.Errorf("%w: embedding", appErr.ErrInvalid)
		}
		embValue = string(data)
	}
	embSQL := fmt.Sprintf("INSERT INTO %s (id, knowledge_id, created_at, embedding) VALUES (?, ?, ?, ?)", s.embeddingTable())
	embSQL, embArgs := s.d.finalize(embSQL, []interface{}{frag.ID, frag.ID, ctime, embValue})
	if _, err := tx.ExecContext(ctx, embSQL, embArgs...); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      id,
		"is_main": s.d.boolVal(true),
	}
	sqlStr, args, err := builder.BuildSelect("knowledge", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = s.d.finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	doc, err := scanDocument(rows)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *sqlStore) ListDocuments(ctx context.Context, agentID string, opts ListOptions) ([]*model.Document, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	where := map[string]interface{}{
		"agent_id": agentID,
		"is_main":  s.d.boolVal(true),
	}
	for i, f := range opts.Filters {
		cond, condArgs, err := s.d.compileFilter("metadata", f)
		if err != nil {
			return nil, "", err
		}
		where[fmt.Sprintf("_custom_filter%d", i)] = builder.Custom(cond, condArgs...)
	}
	cursor, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		if opts.SortAsc {
			where["_custom_cursor"] = builder.Custom("(created_at > ? OR (created_at = ? AND id > ?))",
				cursor.Ctime, cursor.Ctime, cursor.ID)
		} else {
			where["_custom_cursor"] = builder.Custom("(created_at < ? OR (created_at = ? AND id < ?))",
				cursor.Ctime, cursor.Ctime, cursor.ID)
		}
	}
	if opts.SortAsc {
		where["_orderby"] = "created_at asc, id asc"
	} else {
		where["_orderby"] = "created_at desc, id desc"
	}
	// one extra row detects whether another page exists
	where["_limit"] = []uint{0, uint(limit + 1)}

	sqlStr, args, err := builder.BuildSelect("knowledge", where, documentColumns)
	if err != nil {
		return nil, "", err
	}
	sqlStr, args = s.d.finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	docs := make([]*model.Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextCursor = encodeCursor(last.Ctime, last.ID)
	}
	return docs, nextCursor, nil
}

func (s *sqlStore) SearchSimilar(ctx context.Context, agentID string, embedding []float32, opts SearchOptions) ([]*model.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", appErr.ErrInvalid)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var conds []string
	var condArgs []interface{}
	for _, f := range opts.Filters {
		cond, args, err := s.d.compileFilter("k.metadata", f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		condArgs = append(condArgs, args...)
	}
	condSQL := ""
	if len(conds) > 0 {
		condSQL = " AND " + strings.Join(conds, " AND ")
	}
	if s.d.driver == driverPostgres {
		return s.searchPostgres(ctx, agentID, embedding, opts.Threshold, limit, condSQL, condArgs)
	}
	return s.searchSQLite(ctx, agentID, embedding, opts.Threshold, limit, condSQL, condArgs)
}

func (s *sqlStore) searchPostgres(ctx context.Context, agentID string, embedding []float32, threshold float64, limit int, condSQL string, condArgs []interface{}) ([]*model.SearchResult, error) {
	vec := pgvector.NewVector(embedding)
	query := fmt.Sprintf(`SELECT k.id, k.document_id, k.text, k.metadata, k.created_at, 1 - (e.embedding <=> ?) AS similarity
FROM knowledge k
JOIN %s e ON e.knowledge_id = k.id
WHERE k.agent_id = ? AND k.is_main = ? AND 1 - (e.embedding <=> ?) > ?%s
ORDER BY similarity DESC
LIMIT ?`, s.embeddingTable(), condSQL)
	args := append([]interface{}{vec, agentID, s.d.boolVal(false), vec, threshold}, condArgs...)
	args = append(args, limit)
	query, args = s.d.finalize(query, args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		var res model.SearchResult
		var docID, metadata sql.NullString
		if err := rows.Scan(&res.ID, &docID, &res.Text, &metadata, &res.Ctime, &res.Similarity); err != nil {
			return nil, err
		}
		res.DocumentID = docID.String
		res.Metadata = unmarshalMetadata(metadata.String)
		results = append(results, &res)
	}
	return results, rows.Err()
}

// searchSQLite ranks in process: sqlite has no vector operator, so fragment
// embeddings are stored as JSON and scored with cosine similarity here.
func (s *sqlStore) searchSQLite(ctx context.Context, agentID string, embedding []float32, threshold float64, limit int, condSQL string, condArgs []interface{}) ([]*model.SearchResult, error) {
	query := fmt.Sprintf(`SELECT k.id, k.document_id, k.text, k.metadata, k.created_at, e.embedding
FROM knowledge k
JOIN %s e ON e.knowledge_id = k.id
WHERE k.agent_id = ? AND k.is_main = ?%s`, s.embeddingTable(), condSQL)
	args := append([]interface{}{agentID, s.d.boolVal(false)}, condArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		var res model.SearchResult
		var docID, metadata sql.NullString
		var blob []byte
		if err := rows.Scan(&res.ID, &docID, &res.Text, &metadata, &res.Ctime, &blob); err != nil {
			return nil, err
		}
		var vector []float32
		if err := json.Unmarshal(blob, &vector); err != nil {
			return nil, fmt.Errorf("%w: stored embedding for %s", appErr.ErrPersistence, res.ID)
		}
		similarity := cosineSimilarity(embedding, vector)
		if similarity <= threshold {
			continue
		}
		res.DocumentID = docID.String
		res.Metadata = unmarshalMetadata(metadata.String)
		res.Similarity = similarity
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *sqlStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	defer tx.Rollback()

	embSQL := fmt.Sprintf("DELETE FROM %s WHERE knowledge_id IN (SELECT id FROM knowledge WHERE id = ? OR document_id = ?)", s.embeddingTable())
	embSQL, embArgs := s.d.finalize(embSQL, []interface{}{id, id})
	if _, err := tx.ExecContext(ctx, embSQL, embArgs...); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	rowSQL, rowArgs := s.d.finalize("DELETE FROM knowledge WHERE id = ? OR document_id = ?", []interface{}{id, id})
	if _, err := tx.ExecContext(ctx, rowSQL, rowArgs...); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var kind, source, metadata, checksum, docID sql.NullString
	if err := rows.Scan(&doc.ID, &doc.AgentID, &doc.Text, &kind, &source, &metadata, &checksum, &docID, &doc.Ctime); err != nil {
		return nil, err
	}
	doc.Kind = kind.String
	doc.Source = source.String
	doc.Checksum = checksum.String
	doc.DocumentID = docID.String
	doc.Metadata = unmarshalMetadata(metadata.String)
	doc.IsMain = true
	return &doc, nil
}

func marshalMetadata(metadata map[string]interface{}) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(blob string) map[string]interface{} {
	if blob == "" {
		return nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &metadata); err != nil {
		return nil
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

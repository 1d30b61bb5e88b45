package store

import (
	"context"

	"github.com/skaldhq/skald/internal/model"
)

// Store persists knowledge documents and their embedding vectors. The
// postgres and sqlite implementations share one SQL layer and must behave
// identically; the contract test suite runs against both.
type Store interface {
	// CreateDocument inserts a document row. Returns ErrConflict when the
	// id already exists; callers replace via DeleteDocument first.
	CreateDocument(ctx context.Context, doc *model.Document) error

	// CreateFragments inserts fragment rows plus their embeddings in one
	// transaction: either every fragment of a replacement is visible or
	// none is.
	CreateFragments(ctx context.Context, fragments []*model.Fragment) error

	// GetDocument returns nil without error when the id is absent.
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// ListDocuments returns up to opts.Limit document rows plus a cursor
	// for the next page when more exist.
	ListDocuments(ctx context.Context, agentID string, opts ListOptions) ([]*model.Document, string, error)

	// SearchSimilar ranks fragments by cosine similarity to the query
	// embedding, keeping rows strictly above opts.Threshold.
	SearchSimilar(ctx context.Context, agentID string, embedding []float32, opts SearchOptions) ([]*model.SearchResult, error)

	// DeleteDocument removes the document and all its fragments and
	// embeddings; idempotent when already absent.
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}

type ListOptions struct {
	Limit   int
	Cursor  string
	SortAsc bool
	Filters []Filter
}

type SearchOptions struct {
	Limit     int
	Threshold float64
	Filters   []Filter
}

const defaultListLimit = 50

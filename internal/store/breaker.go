package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

// BreakerState is the circuit breaker state of the persistence backend.
type BreakerState int

const (
	// BreakerClosed is normal operation.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects all storage calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets probe calls through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips after a run of backend failures so a dead database fails
// calls fast instead of stacking timeouts. Semantic errors (conflict,
// invalid input, not found) do not count: the backend answered, the request
// was just wrong.
type Breaker struct {
	mu sync.Mutex

	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

func NewBreaker(failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once
// the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailure) > b.cooldown {
			b.state = BreakerHalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.successes = 0
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// WithBreaker wraps a store so every operation passes through the breaker.
func WithBreaker(inner Store, b *Breaker) Store {
	return &breakerStore{inner: inner, breaker: b}
}

type breakerStore struct {
	inner   Store
	breaker *Breaker
}

func (s *breakerStore) do(fn func() error) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("%w: storage circuit open", appErr.ErrUnavailable)
	}
	err := fn()
	s.observe(err)
	return err
}

func (s *breakerStore) observe(err error) {
	if err == nil || !countsAsFailure(err) {
		s.breaker.Success()
		return
	}
	s.breaker.Failure()
}

func countsAsFailure(err error) bool {
	switch {
	case errors.Is(err, appErr.ErrConflict),
		errors.Is(err, appErr.ErrInvalid),
		errors.Is(err, appErr.ErrNotFound):
		return false
	}
	return true
}

func (s *breakerStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return s.do(func() error {
		return s.inner.CreateDocument(ctx, doc)
	})
}

func (s *breakerStore) CreateFragments(ctx context.Context, fragments []*model.Fragment) error {
	return s.do(func() error {
		return s.inner.CreateFragments(ctx, fragments)
	})
}

func (s *breakerStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc *model.Document
	err := s.do(func() error {
		var err error
		doc, err = s.inner.GetDocument(ctx, id)
		return err
	})
	return doc, err
}

func (s *breakerStore) ListDocuments(ctx context.Context, agentID string, opts ListOptions) ([]*model.Document, string, error) {
	var docs []*model.Document
	var cursor string
	err := s.do(func() error {
		var err error
		docs, cursor, err = s.inner.ListDocuments(ctx, agentID, opts)
		return err
	})
	return docs, cursor, err
}

func (s *breakerStore) SearchSimilar(ctx context.Context, agentID string, embedding []float32, opts SearchOptions) ([]*model.SearchResult, error) {
	var results []*model.SearchResult
	err := s.do(func() error {
		var err error
		results, err = s.inner.SearchSimilar(ctx, agentID, embedding, opts)
		return err
	})
	return results, err
}

func (s *breakerStore) DeleteDocument(ctx context.Context, id string) error {
	return s.do(func() error {
		return s.inner.DeleteDocument(ctx, id)
	})
}

func (s *breakerStore) Close() error {
	return s.inner.Close()
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skaldhq/skald/internal/model"
	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

type flakyStore struct {
	Store
	err error
}

func (s *flakyStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return nil, s.err
}

func (s *flakyStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return s.err
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection refused")}
	b := NewBreaker(3, 2, time.Minute)
	st := WithBreaker(inner, b)

	for i := 0; i < 3; i++ {
		_, err := st.GetDocument(context.Background(), "x")
		require.Error(t, err)
		require.NotErrorIs(t, err, appErr.ErrUnavailable)
	}
	require.Equal(t, BreakerOpen, b.State())

	_, err := st.GetDocument(context.Background(), "x")
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}

func TestBreakerIgnoresSemanticErrors(t *testing.T) {
	inner := &flakyStore{err: appErr.ErrConflict}
	b := NewBreaker(2, 1, time.Minute)
	st := WithBreaker(inner, b)

	for i := 0; i < 10; i++ {
		err := st.CreateDocument(context.Background(), &model.Document{ID: "d"})
		require.ErrorIs(t, err, appErr.ErrConflict)
	}
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	inner := &flakyStore{err: errors.New("down")}
	b := NewBreaker(1, 2, 10*time.Millisecond)
	st := WithBreaker(inner, b)

	_, err := st.GetDocument(context.Background(), "x")
	require.Error(t, err)
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	inner.err = nil

	// two successful probes close the circuit
	_, err = st.GetDocument(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, BreakerHalfOpen, b.State())
	_, err = st.GetDocument(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	inner := &flakyStore{err: errors.New("down")}
	b := NewBreaker(1, 2, 10*time.Millisecond)
	st := WithBreaker(inner, b)

	_, err := st.GetDocument(context.Background(), "x")
	require.Error(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = st.GetDocument(context.Background(), "x")
	require.Error(t, err)
	require.Equal(t, BreakerOpen, b.State())
}

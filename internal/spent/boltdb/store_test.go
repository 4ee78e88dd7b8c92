package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/vmauth/common/testlogger"
	"github.com/drand/vmauth/internal/spent"
	"github.com/drand/vmauth/internal/spent/spenttest"
)

func newTestStore(t *testing.T, folder string) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(context.Background(), testlogger.New(t), folder, nil)
	require.NoError(t, err)
	return s
}

func TestBoltStore(t *testing.T) {
	spenttest.Run(t, func(t *testing.T) spent.Store {
		s := newTestStore(t, t.TempDir())
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}

func TestBoltStoreReopen(t *testing.T) {
	ctx := context.Background()
	folder := t.TempDir()
	e := spenttest.NewEntry(7)

	s := newTestStore(t, folder)
	require.NoError(t, s.Spend(ctx, []spent.Entry{e}))
	require.NoError(t, s.Close(ctx))

	s = newTestStore(t, folder)
	defer s.Close(ctx)
	got, err := s.Get(ctx, e.SerialNumber)
	require.NoError(t, err)
	require.Equal(t, e, *got)
	require.ErrorIs(t, s.Spend(ctx, []spent.Entry{e}), spent.ErrDoubleSpend)
}

func TestBoltStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBoltStore(ctx, testlogger.New(t), t.TempDir(), nil)
	require.ErrorIs(t, err, context.Canceled)

	s := newTestStore(t, t.TempDir())
	defer s.Close(context.Background())
	require.ErrorIs(t, s.Spend(ctx, []spent.Entry{spenttest.NewEntry(1)}), context.Canceled)
	_, err = s.IsSpent(ctx, spenttest.NewEntry(1).SerialNumber)
	require.ErrorIs(t, err, context.Canceled)
}

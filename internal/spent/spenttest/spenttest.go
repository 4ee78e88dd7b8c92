// Package spenttest holds the behaviour every spent.Store must have.
package spenttest

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/vmauth/internal/spent"
)

// NewEntry returns an entry whose serial number and tag are derived from i.
func NewEntry(i byte) spent.Entry {
	return spent.Entry{
		SerialNumber:  bytes.Repeat([]byte{i}, 32),
		Tag:           bytes.Repeat([]byte{0xf0 ^ i}, 32),
		Commitment:    bytes.Repeat([]byte{0x0f ^ i}, 32),
		Authorization: fmt.Sprintf("auth-%d", i),
		Program:       "token.vm",
		Function:      "transfer",
	}
}

// Run checks a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) spent.Store) {
	t.Run("Empty", func(t *testing.T) {
		testEmpty(t, newStore(t))
	})
	t.Run("SpendAndLookup", func(t *testing.T) {
		testSpendAndLookup(t, newStore(t))
	})
	t.Run("DoubleSpend", func(t *testing.T) {
		testDoubleSpend(t, newStore(t))
	})
	t.Run("DuplicateInBatch", func(t *testing.T) {
		testDuplicateInBatch(t, newStore(t))
	})
}

func testEmpty(t *testing.T, s spent.Store) {
	ctx := context.Background()
	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	e := NewEntry(1)
	ok, err := s.IsSpent(ctx, e.SerialNumber)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = s.Get(ctx, e.SerialNumber)
	require.ErrorIs(t, err, spent.ErrNotFound)
	require.NoError(t, s.Spend(ctx, nil))
}

func testSpendAndLookup(t *testing.T, s spent.Store) {
	ctx := context.Background()
	e1, e2 := NewEntry(1), NewEntry(2)
	require.NoError(t, s.Spend(ctx, []spent.Entry{e1, e2}))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, e := range []spent.Entry{e1, e2} {
		ok, err := s.IsSpent(ctx, e.SerialNumber)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = s.HasTag(ctx, e.Tag)
		require.NoError(t, err)
		require.True(t, ok)
		got, err := s.Get(ctx, e.SerialNumber)
		require.NoError(t, err)
		require.Equal(t, e, *got)
	}

	ok, err := s.HasTag(ctx, e1.SerialNumber)
	require.NoError(t, err)
	require.False(t, ok)
}

func testDoubleSpend(t *testing.T, s spent.Store) {
	ctx := context.Background()
	require.NoError(t, s.Spend(ctx, []spent.Entry{NewEntry(1)}))

	// same serial number, the fresh entry of the batch is not written
	fresh := NewEntry(3)
	err := s.Spend(ctx, []spent.Entry{fresh, NewEntry(1)})
	require.ErrorIs(t, err, spent.ErrDoubleSpend)
	ok, err := s.IsSpent(ctx, fresh.SerialNumber)
	require.NoError(t, err)
	require.False(t, ok)

	// same tag under another serial number
	sameTag := NewEntry(4)
	sameTag.Tag = NewEntry(1).Tag
	require.ErrorIs(t, s.Spend(ctx, []spent.Entry{sameTag}), spent.ErrDoubleSpend)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testDuplicateInBatch(t *testing.T, s spent.Store) {
	ctx := context.Background()
	err := s.Spend(ctx, []spent.Entry{NewEntry(5), NewEntry(6), NewEntry(5)})
	require.ErrorIs(t, err, spent.ErrDoubleSpend)
	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

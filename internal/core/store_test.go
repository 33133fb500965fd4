// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecordStore_Insert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	first, err := store.Insert(ctx, Record{Topic: "stream-42", Message: "a"})
	require.NoError(t, err)
	second, err := store.Insert(ctx, Record{Topic: "stream-42", Message: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestMemoryRecordStore_Recent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	for _, msg := range []string{"a", "b", "c", "d"} {
		_, err := store.Insert(ctx, Record{Topic: "stream-42", Message: msg})
		require.NoError(t, err)
	}

	records, err := store.Recent(ctx, "stream-42", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Ascending order, most recent window.
	assert.Equal(t, "c", records[0].Message)
	assert.Equal(t, "d", records[1].Message)
}

func TestMemoryRecordStore_RecentEmpty(t *testing.T) {
	store := NewMemoryRecordStore()
	records, err := store.Recent(context.Background(), "nobody-home", 50)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryRecordStore_RecentNonPositiveLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	_, err := store.Insert(ctx, Record{Topic: "stream-42", Message: "m"})
	require.NoError(t, err)

	// Matches the Postgres store: LIMIT 0 and below yield nothing.
	for _, limit := range []int{0, -1} {
		records, err := store.Recent(ctx, "stream-42", limit)
		require.NoError(t, err)
		assert.Empty(t, records, "limit %d", limit)
	}
}

func TestMemoryRecordStore_RecentLargerLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	_, err := store.Insert(ctx, Record{Topic: "stream-42", Message: "only"})
	require.NoError(t, err)

	records, err := store.Recent(ctx, "stream-42", 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "only", records[0].Message)
}

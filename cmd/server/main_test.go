package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexedStore struct {
	err    error
	closed bool
}

func (f *fakeIndexedStore) EnsureIndexes(ctx context.Context) error { return f.err }

func (f *fakeIndexedStore) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestEnsureIndexes(t *testing.T) {
	ctx := context.Background()

	ok := &fakeIndexedStore{}
	require.NoError(t, ensureIndexes(ctx, ok))
	assert.False(t, ok.closed)

	boom := errors.New("index build failed")
	failing := &fakeIndexedStore{err: boom}
	err := ensureIndexes(ctx, failing)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ensure mongodb indexes")
	assert.True(t, failing.closed, "store is closed when indexes are missing")
}

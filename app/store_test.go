package app

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey(t *testing.T) {
	endpoint := "https://push.example/abc"
	want := strings.TrimRight(base64.StdEncoding.EncodeToString([]byte(endpoint)), "=")

	key := StorageKey(endpoint)
	assert.Equal(t, want, key)
	assert.NotContains(t, key, "=")
}

func TestPutPreservesEndpointExactly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	endpoint := "https://push.example/abc?x=1&y=2"
	sub, err := store.Put(ctx, endpoint, `{"endpoint":"`+endpoint+`"}`)
	require.NoError(t, err)
	assert.Equal(t, endpoint, sub.Endpoint)

	subs, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, endpoint, subs[0].Endpoint)
	assert.Equal(t, StorageKey(endpoint), subs[0].Key)
}

func TestPutDeduplicatesByEndpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	endpoint := "https://push.example/abc"
	_, err := store.Put(ctx, endpoint, `{"endpoint":"https://push.example/abc","keys":{"auth":"old"}}`)
	require.NoError(t, err)
	_, err = store.Put(ctx, endpoint, `{"endpoint":"https://push.example/abc","keys":{"auth":"new"}}`)
	require.NoError(t, err)

	subs, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Contains(t, subs[0].Payload, "new")
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	endpoint := "https://push.example/abc"
	_, err := store.Put(ctx, endpoint, `{"endpoint":"`+endpoint+`"}`)
	require.NoError(t, err)

	key := StorageKey(endpoint)
	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key)) // absent key is a no-op

	subs, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

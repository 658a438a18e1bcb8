package ldcomponents

import (
	"context"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapshelf/syncstore/internal/sharedtest"
)

func TestInMemoryBackend(t *testing.T) {
	t.Run("each build is private", func(t *testing.T) {
		factory := InMemoryBackend()
		b1, err := factory.Build(sharedtest.NewSimpleTestContext("a"))
		require.NoError(t, err)
		b2, err := factory.Build(sharedtest.NewSimpleTestContext("b"))
		require.NoError(t, err)

		require.NoError(t, b1.Write(context.Background(), map[string]ldvalue.Value{"username": ldvalue.String("x")}))
		values, err := b2.BulkRead(context.Background(), []string{"username"})
		require.NoError(t, err)
		assert.Len(t, values, 0)
	})

	t.Run("write null deletes", func(t *testing.T) {
		b, _ := InMemoryBackend().Build(sharedtest.NewSimpleTestContext("a"))
		ctx := context.Background()
		require.NoError(t, b.Write(ctx, map[string]ldvalue.Value{"username": ldvalue.String("x"), "incognito": ldvalue.Bool(true)}))
		require.NoError(t, b.Write(ctx, map[string]ldvalue.Value{"username": ldvalue.Null()}))

		values, err := b.BulkRead(ctx, []string{"username", "incognito"})
		require.NoError(t, err)
		assert.Equal(t, map[string]ldvalue.Value{"incognito": ldvalue.Bool(true)}, values)
	})
}

func TestSharedMemoryBackend(t *testing.T) {
	shared := NewSharedMemoryBackend()
	shared.Put("no_focus", ldvalue.Bool(true))

	b1, err := shared.Build(sharedtest.NewSimpleTestContext("a"))
	require.NoError(t, err)
	b2, err := shared.Build(sharedtest.NewSimpleTestContext("b"))
	require.NoError(t, err)

	require.NoError(t, b1.Write(context.Background(), map[string]ldvalue.Value{"username": ldvalue.String("x")}))
	require.NoError(t, b1.Close())

	values, err := b2.BulkRead(context.Background(), []string{"username", "no_focus", "albums"})
	require.NoError(t, err)
	assert.Equal(t, map[string]ldvalue.Value{"username": ldvalue.String("x"), "no_focus": ldvalue.Bool(true)}, values)
	assert.Equal(t, values, shared.Snapshot())
}

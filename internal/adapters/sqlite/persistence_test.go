package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fieldsync.db")

	p, err := Open(path)
	require.NoError(t, err)

	_, ok, err := p.Get(ctx, "fieldsync.queue")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "fieldsync.queue", `[{"id":"a"}]`))
	require.NoError(t, p.Set(ctx, "fieldsync.queue", `[{"id":"b"}]`))

	got, ok, err := p.Get(ctx, "fieldsync.queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"b"}]`, got)
	require.NoError(t, p.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err = reopened.Get(ctx, "fieldsync.queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"b"}]`, got, "value survives reopen")

	require.NoError(t, reopened.Remove(ctx, "fieldsync.queue"))
	_, ok, err = reopened.Get(ctx, "fieldsync.queue")
	require.NoError(t, err)
	assert.False(t, ok)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitWithoutTransactionIsNoop(t *testing.T) {
	ctx := context.Background()
	out, err := Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx, out)
}

func TestRollbackWithoutTransactionIsNoop(t *testing.T) {
	ctx := context.Background()
	out, err := Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx, out)
}

func TestFromContextWithoutTransaction(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

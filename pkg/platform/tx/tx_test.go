package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	_, ok := HooksFrom(context.Background())
	assert.False(t, ok)

	ctx, hooks := WithHooks(context.Background())
	got, ok := HooksFrom(ctx)
	require.True(t, ok)
	require.Same(t, hooks, got)

	var applied []int
	hooks.OnCommit(func() { applied = append(applied, 1) })
	hooks.OnCommit(func() { applied = append(applied, 2) })
	assert.Empty(t, applied, "nothing runs before commit")

	hooks.Commit()
	assert.Equal(t, []int{1, 2}, applied)

	hooks.Commit()
	assert.Equal(t, []int{1, 2}, applied, "commit runs staged writes once")
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_RunsEveryItem(t *testing.T) {
	var count atomic.Int32
	items := []int{1, 2, 3, 4, 5}

	outcomes := ForEach(context.Background(), items, func(ctx context.Context, i int) error {
		count.Add(1)
		return nil
	})

	assert.Equal(t, int32(5), count.Load())
	require.Len(t, outcomes, 5)
	for i, o := range outcomes {
		assert.Equal(t, items[i], o.Item)
		assert.NoError(t, o.Err)
	}
	assert.NoError(t, Join(outcomes))
}

func TestForEach_IsolatesFailuresAndPanics(t *testing.T) {
	var completed atomic.Int32
	boom := errors.New("boom")

	outcomes := ForEach(context.Background(), []string{"a", "b", "c", "d"}, func(ctx context.Context, s string) error {
		switch s {
		case "b":
			return boom
		case "c":
			panic("bad folder")
		}
		completed.Add(1)
		return nil
	})

	assert.Equal(t, int32(2), completed.Load())
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, boom)
	require.Error(t, outcomes[2].Err)
	assert.Contains(t, outcomes[2].Err.Error(), "bad folder")
	assert.NoError(t, outcomes[3].Err)

	joined := Join(outcomes)
	assert.ErrorIs(t, joined, boom)
	assert.Contains(t, joined.Error(), "panic for c")
}

func TestForEach_FailureDoesNotCancelSiblings(t *testing.T) {
	outcomes := ForEach(context.Background(), []int{0, 1, 2}, func(ctx context.Context, i int) error {
		if i == 0 {
			return fmt.Errorf("item %d", i)
		}
		return ctx.Err()
	})

	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)
}

func TestForEach_Empty(t *testing.T) {
	outcomes := ForEach(context.Background(), nil, func(ctx context.Context, i int) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.Empty(t, outcomes)
	assert.NoError(t, Join(outcomes))
}

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDeadlinedReturnsBeforeTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := runDeadlined(ctx, func() (*int, error) {
		x := 42
		return &x, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, *v)
}

func TestRunDeadlinedAbandonsSlowWork(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := runDeadlined(ctx, func() (*int, error) {
		time.Sleep(200 * time.Millisecond)
		x := 1
		return &x, nil
	})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
}

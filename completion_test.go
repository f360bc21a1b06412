package signalr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotCompletesExactlyOnce(t *testing.T) {
	handle, future := NewOneShot[int]()

	handle.Complete(42)
	handle.Complete(43) // ignored
	handle.Fail(assertErr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestOneShotFail(t *testing.T) {
	handle, future := NewOneShot[string]()
	handle.Fail(assertErr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := future.Wait(ctx)
	assert.ErrorIs(t, err, assertErr)
}

func TestOneShotWaitRespectsContext(t *testing.T) {
	_, future := NewOneShot[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := future.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOneShotCompleteFromAnyGoroutine(t *testing.T) {
	handle, future := NewOneShot[int]()

	go handle.Complete(7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

var assertErr = &HubError{Message: "boom"}

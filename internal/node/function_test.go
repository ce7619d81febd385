package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestFunctionNodeExecuteReturnsFnResult(t *testing.T) {
	n := NewFunctionNode("double", func(_ context.Context, ectx types.ExecutionContext) (any, error) {
		return ectx.Input.(int) * 2, nil
	}, false)

	out, err := n.Execute(context.Background(), types.ExecutionContext{Input: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestFunctionNodeReturnsToReadyAfterExecute(t *testing.T) {
	n := NewFunctionNode("f", func(_ context.Context, _ types.ExecutionContext) (any, error) {
		return nil, nil
	}, false)

	_, _ = n.Execute(context.Background(), types.ExecutionContext{})
	assert.Equal(t, types.NodeReady, n.State())
}

func TestFunctionNodePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	n := NewFunctionNode("f", func(_ context.Context, _ types.ExecutionContext) (any, error) {
		return nil, boom
	}, false)

	_, err := n.Execute(context.Background(), types.ExecutionContext{})
	assert.ErrorIs(t, err, boom)
}

func TestFunctionNodeInterruptCancelsCooperativeFn(t *testing.T) {
	n := NewFunctionNode("f", func(ctx context.Context, _ types.ExecutionContext) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, false)

	done := make(chan error, 1)
	go func() {
		_, err := n.Execute(context.Background(), types.ExecutionContext{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, n.Interrupt())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("interrupt did not cancel in time")
	}
}

func TestIdentityNodeEchoesInput(t *testing.T) {
	n := NewIdentityNode(DefaultIdentityNodeID)
	out, err := n.Execute(context.Background(), types.ExecutionContext{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, types.VariantIdentity, n.Variant())
}

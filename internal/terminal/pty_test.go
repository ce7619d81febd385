package terminal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPTYBackendEchoesWrite(t *testing.T) {
	b, err := StartPTY("/bin/cat", nil, nil, 80, 24)
	require.NoError(t, err)
	defer b.Stop(context.Background(), time.Second)

	require.NoError(t, b.Write([]byte("hello\n")))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(b.Buffer()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, string(b.Buffer()), "hello")
}

func TestPTYBackendStopReapsProcess(t *testing.T) {
	b, err := StartPTY("/bin/sleep", []string{"30"}, nil, 80, 24)
	require.NoError(t, err)

	err = b.Stop(context.Background(), 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, b.Closed())
}

func TestPTYBackendReadTailLimitsLines(t *testing.T) {
	b := &PTYBackend{maxBuf: MaxBufferBytes}
	b.buf.WriteString("line1\nline2\nline3\nline4\n")

	tail := b.ReadTail(2)
	assert.Contains(t, string(tail), "line3")
	assert.Contains(t, string(tail), "line4")
	assert.NotContains(t, string(tail), "line1")
}

func TestPTYBackendClosedAfterStop(t *testing.T) {
	b, err := StartPTY("/bin/sleep", []string{"1"}, nil, 80, 24)
	require.NoError(t, err)

	assert.False(t, b.Closed())
	require.NoError(t, b.Stop(context.Background(), time.Second))
	assert.True(t, b.Closed())
}

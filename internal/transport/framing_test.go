package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/pkg/types"
)

func testEngine() *engine.Engine {
	return engine.New(types.Config{})
}

func TestUnixServerDispatchesCommandsLineByLine(t *testing.T) {
	dir := t.TempDir()
	sock := dir + "/conductor.sock"

	srv := NewUnixServer(sock, testEngine())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	defer srv.Shutdown(context.Background())

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cmd := types.Command{Type: types.CreateSession, Params: map[string]any{"id": "s1"}, RequestID: "r1"}
	line, err := json.Marshal(cmd)
	require.NoError(t, err)
	_, err = conn.Write(append(line, '\n'))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var result types.CommandResult
	require.NoError(t, json.Unmarshal(respLine, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "r1", result.RequestID)
}

func TestUnixServerReturnsKindedErrorForMalformedLine(t *testing.T) {
	dir := t.TempDir()
	sock := dir + "/conductor.sock"

	srv := NewUnixServer(sock, testEngine())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	defer srv.Shutdown(context.Background())

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("{not json}\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var result types.CommandResult
	require.NoError(t, json.Unmarshal(respLine, &result))
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrInvalidInput, result.Error)
}

func TestTCPServerDispatchesCommands(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", testEngine())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	defer srv.Shutdown(context.Background())

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cmd := types.Command{Type: types.ListSessions, Params: map[string]any{}}
	line, err := json.Marshal(cmd)
	require.NoError(t, err)
	_, err = conn.Write(append(line, '\n'))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var result types.CommandResult
	require.NoError(t, json.Unmarshal(respLine, &result))
	assert.True(t, result.Success)
}

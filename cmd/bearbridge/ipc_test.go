package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestIPC(t *testing.T) (*testDaemon, string) {
	t.Helper()

	d := startTestDaemon(t, DefaultConfig())
	d.next(t) // loaded

	dir, err := os.MkdirTemp("", "bear")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runIPCServer(ctx, socketPath, d.bridge, d.events, quietLogger())
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "ipc socket not created")
	return d, socketPath
}

func TestIPC_BridgeMessageAndState(t *testing.T) {
	d, sock := startTestIPC(t)

	_, err := SendIPCRequest(sock, ipcBridgeMessage, BridgeMessage{Payload: `{"data":"1"}`})
	require.NoError(t, err)
	assert.Equal(t, EventModeChanged, d.next(t).Kind)

	resp, err := SendIPCRequest(sock, ipcState, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.State)
	assert.Equal(t, Mode1, resp.State.Mode)
	assert.Equal(t, "study_focus", resp.State.ModeName)
}

func TestIPC_Wake(t *testing.T) {
	d, sock := startTestIPC(t)

	_, err := SendIPCRequest(sock, ipcWake, nil)
	require.NoError(t, err)

	ev := d.next(t)
	assert.Equal(t, EventWake, ev.Kind)
	require.NotNil(t, ev.Mode)
	assert.Equal(t, ModeNeutral, *ev.Mode)
}

func TestIPC_UnbindThenBind(t *testing.T) {
	d, sock := startTestIPC(t)

	_, err := SendIPCRequest(sock, ipcUnbindActor, nil)
	require.NoError(t, err)

	// Accepted by the bridge, skipped by the controller.
	_, err = SendIPCRequest(sock, ipcBridgeMessage, BridgeMessage{Payload: "2"})
	require.NoError(t, err)

	resp, err := SendIPCRequest(sock, ipcState, nil)
	require.NoError(t, err)
	assert.False(t, resp.State.Bound)
	assert.Equal(t, ModeNeutral, resp.State.Mode)
	assert.Equal(t, uint64(1), resp.State.Counters.Skipped)

	_, err = SendIPCRequest(sock, ipcBindActor, bindActorData{Name: "Teddy", BaseScale: &Vec3{X: 3, Y: 3, Z: 3}})
	require.NoError(t, err)

	resp, err = SendIPCRequest(sock, ipcState, nil)
	require.NoError(t, err)
	assert.True(t, resp.State.Bound)
	assert.Equal(t, "Teddy", resp.State.ActorName)
	assert.Equal(t, Vec3{X: 3, Y: 3, Z: 3}, resp.State.BaseScale)

	select {
	case ev := <-d.emitted:
		t.Fatalf("unexpected event while unbound: %+v", ev)
	default:
	}
}

func TestIPC_UnknownRequestType(t *testing.T) {
	_, sock := startTestIPC(t)

	resp, err := SendIPCRequest(sock, "dance", nil)
	require.Error(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unknown request type")
}

func TestParseIPCRequest_BindDefaultsBaseScale(t *testing.T) {
	req, err := parseIPCRequest([]byte(`{"type":"bind_actor","data":{"name":"Bear"}}`))
	require.NoError(t, err)
	assert.Equal(t, ActorBound{Name: "Bear", BaseScale: Vec3{X: 1, Y: 1, Z: 1}}, req.Bind)

	_, err = parseIPCRequest([]byte(`{"type":"bridge_message","data":"not an object"}`))
	assert.Error(t, err)
}

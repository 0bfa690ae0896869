package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// bear-ctl and scripts talk to the daemon over a unix socket.
//
// Protocol: line-delimited JSON (envelopes documented in events.go)
//   - Client sends: {"type": "bridge_message", "data": {"payload": "1"}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//   - "state" responds with {"status": "ok", "state": {...}}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string         `json:"status"`          // "ok" or "error"
	Error  string         `json:"error,omitempty"` // error message if status == "error"
	State  *StateSnapshot `json:"state,omitempty"`
}

const ipcRequestTimeout = 2 * time.Second

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, bridge *Bridge, events chan<- Event, logger *slog.Logger) error {
	socketPath = ExpandPath(socketPath)

	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, bridge, events, logger)
	}
}

// handleIPCConnection serves one client until it hangs up or ctx ends.
func handleIPCConnection(ctx context.Context, conn net.Conn, bridge *Bridge, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	// Unblock Scan on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		resp := handleIPCRequest(ctx, line, bridge, events)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func handleIPCRequest(ctx context.Context, line []byte, bridge *Bridge, events chan<- Event) IPCResponse {
	req, err := parseIPCRequest(line)
	if err != nil {
		return ipcError(fmt.Errorf("parse request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, ipcRequestTimeout)
	defer cancel()

	switch req.Type {
	case ipcBridgeMessage:
		if err := bridge.Submit(ctx, req.Message.Payload); err != nil {
			return ipcError(err)
		}
		return IPCResponse{Status: "ok"}

	case ipcState:
		snap, err := requestSnapshot(ctx, events)
		if err != nil {
			return ipcError(fmt.Errorf("state: %w", err))
		}
		return IPCResponse{Status: "ok", State: &snap}

	case ipcWake:
		return queueEvent(ctx, events, WakeRequested{Origin: "ipc", At: time.Now()})

	case ipcBindActor:
		return queueEvent(ctx, events, req.Bind)

	case ipcUnbindActor:
		return queueEvent(ctx, events, ActorUnbound{})

	default:
		return ipcError(fmt.Errorf("unhandled request type: %q", req.Type))
	}
}

func queueEvent(ctx context.Context, events chan<- Event, ev Event) IPCResponse {
	select {
	case events <- ev:
		return IPCResponse{Status: "ok"}
	case <-ctx.Done():
		return ipcError(fmt.Errorf("event queue full: %w", ctx.Err()))
	}
}

func ipcError(err error) IPCResponse {
	return IPCResponse{Status: "error", Error: err.Error()}
}

// ============================================================================
// IPC Client
// ============================================================================

// SendIPCRequest sends one envelope to the daemon and returns its response.
func SendIPCRequest(socketPath string, typ string, data any) (IPCResponse, error) {
	conn, err := net.DialTimeout("unix", ExpandPath(socketPath), ipcRequestTimeout)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	line, err := MarshalEnvelope(typ, data)
	if err != nil {
		return IPCResponse{}, err
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(line))); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * ipcRequestTimeout))
	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}

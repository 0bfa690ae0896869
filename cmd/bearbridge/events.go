package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ==============================
// Events (reducer inputs)
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop at the render cadence.
// Dt is wall-clock delta in seconds between ticks.
type Tick struct {
	Now time.Time
	Dt  float64
}

func (Tick) eventMarker() {}

// CommandReceived is a decoded host command. At is set by the daemon when the
// command is reduced and becomes the timestamp of the events it emits.
type CommandReceived struct {
	Command Command
	Raw     string
	At      time.Time
}

func (CommandReceived) eventMarker() {}

// SceneLoaded announces the scene to the host. Only the first one emits.
type SceneLoaded struct {
	At time.Time
}

func (SceneLoaded) eventMarker() {}

// WakeRequested asks the host to nudge the user (vibrate) without changing mode.
// At is restamped by the daemon like CommandReceived.At.
type WakeRequested struct {
	Origin string
	At     time.Time
}

func (WakeRequested) eventMarker() {}

// ActorBound binds the actor and captures its base scale.
type ActorBound struct {
	Name      string
	BaseScale Vec3
}

func (ActorBound) eventMarker() {}

// ActorUnbound releases the actor. Commands are skipped until it is bound again.
type ActorUnbound struct{}

func (ActorUnbound) eventMarker() {}

// MaterialsReloaded replaces the material table (config hot reload).
type MaterialsReloaded struct {
	Materials []string
}

func (MaterialsReloaded) eventMarker() {}

// RequestStateSnapshot asks the daemon for a StateSnapshot on Reply.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// IPC Envelope
// ============================================================================
// Line-delimited JSON over the unix socket:
//   {"type": "bridge_message", "data": {"payload": "{\"data\":\"2\"}"}}
//   {"type": "wake"}
//   {"type": "state"}
//   {"type": "bind_actor", "data": {"name": "BearObject", "base_scale": {"x":1,"y":1,"z":1}}}
//   {"type": "unbind_actor"}
// ============================================================================

// EventEnvelope wraps an IPC request with a type discriminator.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPC request types.
const (
	ipcBridgeMessage = "bridge_message"
	ipcWake          = "wake"
	ipcState         = "state"
	ipcBindActor     = "bind_actor"
	ipcUnbindActor   = "unbind_actor"
)

// BridgeMessage forwards a raw host payload through the bridge.
type BridgeMessage struct {
	Payload string `json:"payload"`
}

// bindActorData is the JSON form of ActorBound.
type bindActorData struct {
	Name      string `json:"name"`
	BaseScale *Vec3  `json:"base_scale,omitempty"`
}

// ipcRequest is a parsed IPC envelope.
type ipcRequest struct {
	Type    string
	Message BridgeMessage
	Bind    ActorBound
}

// parseIPCRequest decodes one IPC line.
func parseIPCRequest(line []byte) (ipcRequest, error) {
	var env EventEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return ipcRequest{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	req := ipcRequest{Type: env.Type}

	switch env.Type {
	case ipcBridgeMessage:
		if err := json.Unmarshal(env.Data, &req.Message); err != nil {
			return ipcRequest{}, fmt.Errorf("unmarshal BridgeMessage: %w", err)
		}
		return req, nil

	case ipcBindActor:
		d := bindActorData{}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return ipcRequest{}, fmt.Errorf("unmarshal bind_actor: %w", err)
			}
		}
		req.Bind = ActorBound{Name: d.Name, BaseScale: Vec3{X: 1, Y: 1, Z: 1}}
		if d.BaseScale != nil {
			req.Bind.BaseScale = *d.BaseScale
		}
		return req, nil

	case ipcWake, ipcState, ipcUnbindActor:
		return req, nil

	default:
		return ipcRequest{}, fmt.Errorf("unknown request type: %q", env.Type)
	}
}

// MarshalEnvelope builds an IPC line for the given type and optional data.
func MarshalEnvelope(typ string, data any) ([]byte, error) {
	env := EventEnvelope{Type: typ}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = b
	}
	return json.Marshal(env)
}

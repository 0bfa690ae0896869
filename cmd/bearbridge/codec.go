package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Bridge Codec
// ============================================================================
// Inbound: {"data": "<1|2|3|0|RESET>"} or the same alphabet as a bare string.
// Extra fields (gameObject, method, timestamp) are ignored.
//
// Outbound, two shapes selected by event kind:
//   - loaded:      {"type":"UNITY_LOADED","message","timestamp"}
//   - actor event: {"action","message","bearMode","vibrate","vibrationPattern","timestamp"}
//
// The host dispatches on whichever of "type" / "action" is present, so both
// shapes are part of the wire contract.
// ============================================================================

// EventKind identifies the outbound bridge event.
type EventKind string

const (
	EventLoaded      EventKind = "loaded"
	EventModeChanged EventKind = "mode_changed"
	EventReset       EventKind = "reset"
	EventWake        EventKind = "wake"
)

// Wire identifiers used by the host.
const (
	wireTypeLoaded    = "UNITY_LOADED"
	wireActionMode    = "showBearStudy"
	wireActionReset   = "bear_reset"
	wireActionWake    = "wake_up_bear"
	commandReset      = "RESET"
	commandResetDigit = "0"

	loadedMessage = "bear controller ready"
)

// BridgeEvent is an outbound notification to the host.
// Timestamp is epoch milliseconds at emission time.
type BridgeEvent struct {
	Kind             EventKind
	Message          string
	Mode             *Mode
	VibrationPattern []int
	Timestamp        int64
}

// inboundPayload is the structured inbound form.
type inboundPayload struct {
	Data *string `json:"data"`
}

// loadedPayload is the type-keyed outbound shape.
type loadedPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// actorPayload is the action-keyed outbound shape.
type actorPayload struct {
	Action           string `json:"action"`
	Message          string `json:"message"`
	BearMode         int    `json:"bearMode"`
	Vibrate          bool   `json:"vibrate"`
	VibrationPattern []int  `json:"vibrationPattern,omitempty"`
	Timestamp        int64  `json:"timestamp"`
}

// hostPayload is the union of both outbound shapes, as seen by the host.
type hostPayload struct {
	Type             string `json:"type"`
	Action           string `json:"action"`
	Message          string `json:"message"`
	BearMode         *int   `json:"bearMode"`
	Vibrate          bool   `json:"vibrate"`
	VibrationPattern []int  `json:"vibrationPattern"`
	Timestamp        int64  `json:"timestamp"`
}

// DecodeCommand maps a raw inbound payload to a Command. It never fails:
// a payload that is not a structured {data} object (or has no data) is
// interpreted as a bare command string, and anything outside the command
// alphabet becomes Unrecognized.
func DecodeCommand(raw string) Command {
	s := raw
	if data, ok := decodeStructured(raw); ok {
		s = data
	}

	switch s {
	case "1":
		return SetMode{Mode: Mode1}
	case "2":
		return SetMode{Mode: Mode2}
	case "3":
		return SetMode{Mode: Mode3}
	case commandResetDigit, commandReset:
		return Reset{}
	default:
		return Unrecognized{Raw: raw}
	}
}

func decodeStructured(raw string) (string, bool) {
	var p inboundPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", false
	}
	if p.Data == nil || *p.Data == "" {
		return "", false
	}
	return *p.Data, true
}

// EncodeEvent serializes a BridgeEvent into the shape the host expects for its kind.
func EncodeEvent(ev BridgeEvent) ([]byte, error) {
	if ev.Kind == EventLoaded {
		return json.Marshal(loadedPayload{
			Type:      wireTypeLoaded,
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		})
	}

	action, err := actionForKind(ev.Kind)
	if err != nil {
		return nil, err
	}

	mode := 0
	if ev.Mode != nil {
		mode = int(*ev.Mode)
	}

	return json.Marshal(actorPayload{
		Action:           action,
		Message:          ev.Message,
		BearMode:         mode,
		Vibrate:          len(ev.VibrationPattern) > 0,
		VibrationPattern: ev.VibrationPattern,
		Timestamp:        ev.Timestamp,
	})
}

func actionForKind(k EventKind) (string, error) {
	switch k {
	case EventModeChanged:
		return wireActionMode, nil
	case EventReset:
		return wireActionReset, nil
	case EventWake:
		return wireActionWake, nil
	default:
		return "", fmt.Errorf("encode bridge event: unsupported kind %q", k)
	}
}

// DecodeHostEvent is the host-side inverse of EncodeEvent. It dispatches on
// whichever key ("type" or "action") is present.
func DecodeHostEvent(payload []byte) (BridgeEvent, error) {
	var p hostPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return BridgeEvent{}, fmt.Errorf("unmarshal host event: %w", err)
	}

	ev := BridgeEvent{
		Message:          p.Message,
		VibrationPattern: p.VibrationPattern,
		Timestamp:        p.Timestamp,
	}

	switch {
	case p.Type != "":
		if p.Type != wireTypeLoaded {
			return BridgeEvent{}, fmt.Errorf("unknown host event type: %q", p.Type)
		}
		ev.Kind = EventLoaded
		return ev, nil

	case p.Action != "":
		switch p.Action {
		case wireActionMode:
			ev.Kind = EventModeChanged
		case wireActionReset:
			ev.Kind = EventReset
		case wireActionWake:
			ev.Kind = EventWake
		default:
			return BridgeEvent{}, fmt.Errorf("unknown host event action: %q", p.Action)
		}
		if p.BearMode != nil {
			m := Mode(*p.BearMode)
			ev.Mode = &m
		}
		return ev, nil

	default:
		return BridgeEvent{}, fmt.Errorf("host event has neither type nor action")
	}
}

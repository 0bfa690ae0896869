package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{raw: "1", want: SetMode{Mode: Mode1}},
		{raw: "2", want: SetMode{Mode: Mode2}},
		{raw: "3", want: SetMode{Mode: Mode3}},
		{raw: `{"data":"1"}`, want: SetMode{Mode: Mode1}},
		{raw: `{"data":"3"}`, want: SetMode{Mode: Mode3}},
		{raw: "0", want: Reset{}},
		{raw: "RESET", want: Reset{}},
		{raw: `{"data":"RESET"}`, want: Reset{}},
		{raw: `{"data":"0"}`, want: Reset{}},

		{raw: "4", want: Unrecognized{Raw: "4"}},
		{raw: "reset", want: Unrecognized{Raw: "reset"}},
		{raw: "", want: Unrecognized{Raw: ""}},
		{raw: " 1", want: Unrecognized{Raw: " 1"}},
		{raw: `{"data":""}`, want: Unrecognized{Raw: `{"data":""}`}},
		{raw: `{"data":2}`, want: Unrecognized{Raw: `{"data":2}`}},
		{raw: `{"mode":"1"}`, want: Unrecognized{Raw: `{"mode":"1"}`}},
		{raw: `{"data":"9"}`, want: Unrecognized{Raw: `{"data":"9"}`}},
		{raw: `{"data":`, want: Unrecognized{Raw: `{"data":`}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeCommand(tt.raw))
		})
	}
}

func TestEncodeEvent_Loaded(t *testing.T) {
	b, err := EncodeEvent(BridgeEvent{Kind: EventLoaded, Message: loadedMessage, Timestamp: 1700000000000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"UNITY_LOADED","message":"bear controller ready","timestamp":1700000000000}`, string(b))
}

func TestEncodeEvent_ModeChangedCarriesVibration(t *testing.T) {
	m := Mode2
	b, err := EncodeEvent(BridgeEvent{
		Kind:             EventModeChanged,
		Message:          "bear rest mode activated",
		Mode:             &m,
		VibrationPattern: []int{0, 200, 100, 200},
		Timestamp:        42,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"action": "showBearStudy",
		"message": "bear rest mode activated",
		"bearMode": 2,
		"vibrate": true,
		"vibrationPattern": [0, 200, 100, 200],
		"timestamp": 42
	}`, string(b))
}

func TestEncodeEvent_ResetHasNoVibration(t *testing.T) {
	m := ModeNeutral
	b, err := EncodeEvent(BridgeEvent{Kind: EventReset, Message: "bear reset complete", Mode: &m, Timestamp: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"bear_reset","message":"bear reset complete","bearMode":0,"vibrate":false,"timestamp":7}`, string(b))
}

func TestEncodeEvent_WakeAction(t *testing.T) {
	m := Mode3
	b, err := EncodeEvent(BridgeEvent{Kind: EventWake, Message: "wake up bear", Mode: &m, VibrationPattern: []int{0, 100, 50, 100}})
	require.NoError(t, err)

	ev, err := DecodeHostEvent(b)
	require.NoError(t, err)
	assert.Equal(t, EventWake, ev.Kind)
	require.NotNil(t, ev.Mode)
	assert.Equal(t, Mode3, *ev.Mode)
	assert.Equal(t, []int{0, 100, 50, 100}, ev.VibrationPattern)
}

func TestEncodeEvent_UnknownKind(t *testing.T) {
	_, err := EncodeEvent(BridgeEvent{Kind: "bogus"})
	assert.Error(t, err)
}

func TestDecodeHostEvent_RejectsUnknownShapes(t *testing.T) {
	for _, payload := range []string{
		`{"type":"SOMETHING_ELSE"}`,
		`{"action":"dance"}`,
		`not json`,
	} {
		_, err := DecodeHostEvent([]byte(payload))
		assert.Error(t, err, payload)
	}
}

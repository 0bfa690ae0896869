package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDebugKey(t *testing.T) {
	tests := []struct {
		name string
		ev   inputEvent
		want string
		ok   bool
	}{
		{"key 1", inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValuePress}, "1", true},
		{"key 2", inputEvent{Type: EV_KEY, Code: KEY_2, Value: evValuePress}, "2", true},
		{"key 3", inputEvent{Type: EV_KEY, Code: KEY_3, Value: evValuePress}, "3", true},
		{"key 0", inputEvent{Type: EV_KEY, Code: KEY_0, Value: evValuePress}, "0", true},
		{"key R", inputEvent{Type: EV_KEY, Code: KEY_R, Value: evValuePress}, "RESET", true},
		{"release", inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValueRelease}, "", false},
		{"repeat", inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValueRepeat}, "", false},
		{"other key", inputEvent{Type: EV_KEY, Code: 30, Value: evValuePress}, "", false},
		{"not a key", inputEvent{Type: 0x02, Code: KEY_1, Value: evValuePress}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapDebugKey(tt.ev)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapDebugKey_PayloadsDecodeToCommands(t *testing.T) {
	raw, _ := mapDebugKey(inputEvent{Type: EV_KEY, Code: KEY_R, Value: evValuePress})
	assert.Equal(t, Reset{}, DecodeCommand(raw))

	raw, _ = mapDebugKey(inputEvent{Type: EV_KEY, Code: KEY_3, Value: evValuePress})
	assert.Equal(t, SetMode{Mode: Mode3}, DecodeCommand(raw))
}

func TestDecodeInputEvent(t *testing.T) {
	var buf bytes.Buffer
	want := inputEvent{Sec: 1, Usec: 2, Type: EV_KEY, Code: KEY_2, Value: evValuePress}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, want))

	got, ok := decodeInputEvent(buf.Bytes())
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = decodeInputEvent(buf.Bytes()[:inputEventSize-1])
	assert.False(t, ok)
}

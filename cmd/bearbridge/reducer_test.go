package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.UnixMilli(1700000000123)

func newTestState() *SceneState {
	cfg := DefaultConfig()
	return NewSceneState(&cfg)
}

func command(raw string) CommandReceived {
	return CommandReceived{Command: DecodeCommand(raw), Raw: raw, At: testNow}
}

// emitted returns the bridge events among effs, in order.
func emitted(effs []Effect) []BridgeEvent {
	var out []BridgeEvent
	for _, e := range effs {
		if em, ok := e.(EffEmit); ok {
			out = append(out, em.Event)
		}
	}
	return out
}

func modePtr(m Mode) *Mode { return &m }

func TestReduce_SetModeEmitsAndStartsRun(t *testing.T) {
	cfg := testSceneConfig()
	rr := Reduce(newTestState(), command("2"), cfg)

	want := []BridgeEvent{{
		Kind:             EventModeChanged,
		Message:          "bear rest mode activated",
		Mode:             modePtr(Mode2),
		VibrationPattern: []int{0, 200, 100, 200},
		Timestamp:        testNow.UnixMilli(),
	}}
	if diff := cmp.Diff(want, emitted(rr.Effects)); diff != "" {
		t.Fatalf("emitted events mismatch (-want +got):\n%s", diff)
	}

	s := rr.State
	assert.Equal(t, Mode2, s.Mode)
	assert.Equal(t, Appearance{Tint: ColorGreen}, s.Actor.Appearance)
	require.NotNil(t, s.Run)
	assert.Equal(t, s.RunSeq, s.Run.ID)
	assert.Equal(t, PhaseGrow, s.Run.Phase)
	assert.Equal(t, uint64(1), s.Counters.CommandsApplied)
	assert.Equal(t, uint64(1), s.Counters.RunsStarted)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := newTestState()
	before := s.Snapshot()

	_ = Reduce(s, command("3"), testSceneConfig())

	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("input state mutated (-before +after):\n%s", diff)
	}
}

func TestReduce_MaterialsOverrideTint(t *testing.T) {
	s := newTestState()
	s.Materials = []string{"fur_default", "fur_focus", "", "fur_play"}

	rr := Reduce(s, command("1"), testSceneConfig())
	assert.Equal(t, Appearance{Material: "fur_focus"}, rr.State.Actor.Appearance)

	// Missing entry falls back to the mode color.
	rr = Reduce(rr.State, command("2"), testSceneConfig())
	assert.Equal(t, Appearance{Tint: ColorGreen}, rr.State.Actor.Appearance)

	rr = Reduce(rr.State, command("RESET"), testSceneConfig())
	assert.Equal(t, Appearance{Material: "fur_default"}, rr.State.Actor.Appearance)
}

func TestReduce_ResetMidRun(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("3"), cfg).State
	for i := 0; i < 3; i++ {
		s = Reduce(s, Tick{Now: testNow, Dt: 0.15}, cfg).State
	}
	require.NotNil(t, s.Run)
	require.NotZero(t, s.Actor.YawDeg)

	rr := Reduce(s, command(`{"data":"RESET"}`), cfg)
	s = rr.State

	want := []BridgeEvent{{
		Kind:      EventReset,
		Message:   "bear reset complete",
		Mode:      modePtr(ModeNeutral),
		Timestamp: testNow.UnixMilli(),
	}}
	if diff := cmp.Diff(want, emitted(rr.Effects)); diff != "" {
		t.Fatalf("emitted events mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, ModeNeutral, s.Mode)
	assert.Nil(t, s.Run)
	assert.Zero(t, s.Actor.YawDeg)
	assert.Equal(t, s.Actor.BaseScale, s.Actor.Scale)
	assert.Equal(t, Appearance{Tint: ColorWhite}, s.Actor.Appearance)
	assert.Equal(t, uint64(1), s.Counters.RunsSuperseded)

	// Later ticks leave the reset pose alone.
	s = Reduce(s, Tick{Now: testNow, Dt: 0.15}, cfg).State
	assert.Zero(t, s.Actor.YawDeg)
	assert.Equal(t, s.Actor.BaseScale, s.Actor.Scale)
}

func TestReduce_SupersedingRunContinuesFromCurrentTransform(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("1"), cfg).State
	s = Reduce(s, Tick{Now: testNow, Dt: 0.15}, cfg).State
	midScale := s.Actor.Scale

	s = Reduce(s, command("3"), cfg).State
	require.NotNil(t, s.Run)
	assert.Equal(t, uint64(2), s.Run.ID)
	assert.Equal(t, midScale, s.Run.StartScale)
	assert.Equal(t, uint64(1), s.Counters.RunsSuperseded)

	for s.Run != nil {
		s = Reduce(s, Tick{Now: testNow, Dt: 0.05}, cfg).State
	}
	assert.Equal(t, Mode3, s.Mode)
	assert.Equal(t, 270.0, s.Actor.YawDeg)
	assert.Equal(t, s.Actor.BaseScale, s.Actor.Scale)
	assert.Equal(t, uint64(1), s.Counters.RunsCompleted)
}

func TestReduce_StaleRunNeverAdvances(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("2"), cfg).State
	s.RunSeq++ // something newer has been started elsewhere
	scale := s.Actor.Scale

	s = Reduce(s, Tick{Now: testNow, Dt: 0.15}, cfg).State
	assert.Nil(t, s.Run)
	assert.Equal(t, scale, s.Actor.Scale)
}

func TestReduce_UnboundActorSkipsCommands(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), ActorUnbound{}, cfg).State

	for _, raw := range []string{"1", "RESET"} {
		rr := Reduce(s, command(raw), cfg)
		assert.Empty(t, emitted(rr.Effects), raw)
		s = rr.State
	}
	rr := Reduce(s, WakeRequested{Origin: "test", At: testNow}, cfg)
	assert.Empty(t, emitted(rr.Effects))
	s = rr.State

	assert.Equal(t, ModeNeutral, s.Mode)
	assert.Nil(t, s.Run)
	assert.Equal(t, uint64(3), s.Counters.Skipped)

	// Binding again restores command handling from a neutral pose.
	s = Reduce(s, ActorBound{Name: "Teddy", BaseScale: Vec3{X: 2, Y: 2, Z: 2}}, cfg).State
	rr = Reduce(s, command("1"), cfg)
	require.Len(t, emitted(rr.Effects), 1)
	assert.Equal(t, "Teddy", rr.State.Actor.Name)
	assert.Equal(t, Vec3{X: 2.4, Y: 2.4, Z: 2.4}, rr.State.Run.PeakScale)
}

func TestReduce_UnrecognizedChangesNothing(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("2"), cfg).State

	rr := Reduce(s, command("banana"), cfg)
	assert.Empty(t, emitted(rr.Effects))
	assert.Equal(t, Mode2, rr.State.Mode)
	assert.Same(t, s.Run, rr.State.Run)
	assert.Equal(t, uint64(1), rr.State.Counters.Unrecognized)
}

func TestReduce_SceneLoadedEmitsOnce(t *testing.T) {
	cfg := testSceneConfig()
	rr := Reduce(newTestState(), SceneLoaded{At: testNow}, cfg)

	want := []BridgeEvent{{Kind: EventLoaded, Message: loadedMessage, Timestamp: testNow.UnixMilli()}}
	if diff := cmp.Diff(want, emitted(rr.Effects)); diff != "" {
		t.Fatalf("emitted events mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rr.State.Loaded)

	rr = Reduce(rr.State, SceneLoaded{At: testNow.Add(time.Second)}, cfg)
	assert.Empty(t, emitted(rr.Effects))
	assert.Equal(t, testNow, rr.State.LoadedAt)
}

func TestReduce_WakeKeepsMode(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("1"), cfg).State

	rr := Reduce(s, WakeRequested{Origin: "test", At: testNow}, cfg)
	want := []BridgeEvent{{
		Kind:             EventWake,
		Message:          "wake up bear",
		Mode:             modePtr(Mode1),
		VibrationPattern: []int{0, 100, 50, 100},
		Timestamp:        testNow.UnixMilli(),
	}}
	if diff := cmp.Diff(want, emitted(rr.Effects)); diff != "" {
		t.Fatalf("emitted events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Mode1, rr.State.Mode)
	assert.Same(t, s.Run, rr.State.Run)
}

func TestReduce_SnapshotRequest(t *testing.T) {
	reply := make(chan StateSnapshot, 1)
	rr := Reduce(newTestState(), RequestStateSnapshot{Reply: reply}, testSceneConfig())

	require.Len(t, rr.Effects, 1)
	eff, ok := rr.Effects[0].(EffPublishSnapshot)
	require.True(t, ok)
	assert.Equal(t, "neutral", eff.Snapshot.ModeName)
	assert.True(t, eff.Snapshot.Bound)
	assert.Equal(t, defaultActorName, eff.Snapshot.ActorName)
}

func TestReduce_MaterialsReloadedAppliesOnNextModeChange(t *testing.T) {
	cfg := testSceneConfig()
	s := Reduce(newTestState(), command("1"), cfg).State
	assert.Equal(t, Appearance{Tint: ColorBlue}, s.Actor.Appearance)

	rr := Reduce(s, MaterialsReloaded{Materials: []string{"fur_default", "fur_focus"}}, cfg)
	assert.Empty(t, emitted(rr.Effects))
	// The current appearance is kept until the next command.
	assert.Equal(t, Appearance{Tint: ColorBlue}, rr.State.Actor.Appearance)

	rr = Reduce(rr.State, command("1"), cfg)
	assert.Equal(t, Appearance{Material: "fur_focus"}, rr.State.Actor.Appearance)
}

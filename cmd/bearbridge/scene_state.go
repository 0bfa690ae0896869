package main

import (
	"fmt"
	"time"
)

// Mode is the actor's active mode. Exactly one is active at a time.
type Mode int

const (
	ModeNeutral Mode = iota
	Mode1
	Mode2
	Mode3
)

// Valid reports whether m is one of the three active modes.
func (m Mode) Valid() bool { return m >= Mode1 && m <= Mode3 }

func (m Mode) String() string {
	switch m {
	case ModeNeutral:
		return "neutral"
	case Mode1:
		return "study_focus"
	case Mode2:
		return "rest"
	case Mode3:
		return "activity"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DisplayName is the human-facing label used in event messages.
func (m Mode) DisplayName() string {
	switch m {
	case Mode1:
		return "study focus mode"
	case Mode2:
		return "rest mode"
	case Mode3:
		return "activity mode"
	default:
		return "default mode"
	}
}

// Color is a named tint applied when no material is configured for a mode.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// ModeColor is the fixed fallback tint for a mode.
func ModeColor(m Mode) Color {
	switch m {
	case Mode1:
		return ColorBlue
	case Mode2:
		return ColorGreen
	case Mode3:
		return ColorRed
	default:
		return ColorWhite
	}
}

// Appearance is the actor's visual surface: either a configured material
// or a tint. The two are alternatives; a scene with no materials is fully
// functional with tints alone.
type Appearance struct {
	Material string `json:"material,omitempty"`
	Tint     Color  `json:"tint,omitempty"`
}

// ResolveAppearance picks the material at index mode when the table has one,
// otherwise the mode's fixed color.
func ResolveAppearance(m Mode, materials []string) Appearance {
	idx := int(m)
	if idx >= 0 && idx < len(materials) && materials[idx] != "" {
		return Appearance{Material: materials[idx]}
	}
	return Appearance{Tint: ModeColor(m)}
}

// Vec3 is a local-space scale vector.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Scale returns v multiplied by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// LerpVec3 interpolates linearly from a to b. t is not clamped.
func LerpVec3(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// ActorState is the transform and surface of the single controllable actor.
type ActorState struct {
	Name  string
	Bound bool

	// BaseScale is the scale captured when the actor was bound.
	// Runs always return to it and Reset snaps to it.
	BaseScale Vec3

	Scale      Vec3
	YawDeg     float64 // unnormalized; repeated runs accumulate
	Appearance Appearance
}

// SceneCounters are monotonically increasing diagnostics.
type SceneCounters struct {
	CommandsApplied uint64 `json:"commands_applied"`
	Unrecognized    uint64 `json:"unrecognized"`
	Skipped         uint64 `json:"skipped"` // commands dropped because the actor was not bound
	RunsStarted     uint64 `json:"runs_started"`
	RunsSuperseded  uint64 `json:"runs_superseded"`
	RunsCompleted   uint64 `json:"runs_completed"`
}

// SceneState is the daemon-owned state container. Only the daemon goroutine
// touches it, through Reduce.
type SceneState struct {
	Mode  Mode
	Actor ActorState

	// Run is the in-flight animation, if any. At most one exists.
	Run *AnimationRun

	// RunSeq is the id of the most recently started (or invalidated) run.
	// A tick only advances Run when Run.ID == RunSeq.
	RunSeq uint64

	// Materials is the optional material table indexed by mode (0 = default).
	Materials []string

	Loaded   bool
	LoadedAt time.Time

	Counters SceneCounters
}

// NewSceneState builds the initial state from config.
func NewSceneState(cfg *Config) *SceneState {
	s := &SceneState{
		Mode:      ModeNeutral,
		Materials: append([]string(nil), cfg.Scene.Materials...),
	}
	s.Actor = ActorState{Name: cfg.Scene.Actor.Name}
	if cfg.Scene.Actor.Bound {
		s.Actor = boundActor(cfg.Scene.Actor.Name, cfg.Scene.Actor.BaseScale, s.Materials)
	}
	return s
}

func boundActor(name string, base Vec3, materials []string) ActorState {
	return ActorState{
		Name:       name,
		Bound:      true,
		BaseScale:  base,
		Scale:      base,
		YawDeg:     0,
		Appearance: resetAppearance(materials),
	}
}

// resetAppearance is material[0] when configured, otherwise white.
func resetAppearance(materials []string) Appearance {
	return ResolveAppearance(ModeNeutral, materials)
}

// StateSnapshot is a read-only copy of SceneState for IPC/HTTP/WS consumers.
type StateSnapshot struct {
	Mode       Mode          `json:"mode"`
	ModeName   string        `json:"mode_name"`
	ActorName  string        `json:"actor"`
	Bound      bool          `json:"bound"`
	BaseScale  Vec3          `json:"base_scale"`
	Scale      Vec3          `json:"scale"`
	YawDeg     float64       `json:"yaw_deg"`
	Appearance Appearance    `json:"appearance"`
	Animating  bool          `json:"animating"`
	Phase      string        `json:"phase,omitempty"`
	RunID      uint64        `json:"run_id"`
	Loaded     bool          `json:"loaded"`
	LoadedAt   time.Time     `json:"loaded_at"`
	Materials  []string      `json:"materials,omitempty"`
	Counters   SceneCounters `json:"counters"`
}

// Snapshot copies the state into a StateSnapshot.
func (s *SceneState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Mode:       s.Mode,
		ModeName:   s.Mode.String(),
		ActorName:  s.Actor.Name,
		Bound:      s.Actor.Bound,
		BaseScale:  s.Actor.BaseScale,
		Scale:      s.Actor.Scale,
		YawDeg:     s.Actor.YawDeg,
		Appearance: s.Actor.Appearance,
		RunID:      s.RunSeq,
		Loaded:     s.Loaded,
		LoadedAt:   s.LoadedAt,
		Materials:  append([]string(nil), s.Materials...),
		Counters:   s.Counters,
	}
	if s.Run != nil {
		snap.Animating = true
		snap.Phase = s.Run.Phase.String()
	}
	return snap
}

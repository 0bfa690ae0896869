package main

import "fmt"

// ==============================
// Commands (host -> scene)
// ==============================

// Command is a decoded request from the host. Decoding is total, so every
// inbound payload maps to exactly one of these.
type Command interface {
	commandMarker()
	String() string
}

// SetMode switches the actor into one of the three active modes.
type SetMode struct {
	Mode Mode
}

func (SetMode) commandMarker()   {}
func (c SetMode) String() string { return fmt.Sprintf("SetMode(%d)", int(c.Mode)) }

// Reset returns the actor to Neutral without animating.
type Reset struct{}

func (Reset) commandMarker() {}
func (Reset) String() string { return "Reset()" }

// Unrecognized carries a payload that did not map to a known command.
// It never changes state and never produces an event.
type Unrecognized struct {
	Raw string
}

func (Unrecognized) commandMarker() {}
func (c Unrecognized) String() string {
	return fmt.Sprintf("Unrecognized(%q)", c.Raw)
}

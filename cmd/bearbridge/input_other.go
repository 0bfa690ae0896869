//go:build !linux

package main

import (
	"context"
	"errors"
	"os"
)

func readInputEvents(ctx context.Context, files []*os.File, events chan<- inputEvent) error {
	return errors.New("debug key input requires linux evdev")
}

// =============================================================================
// repl.go - REPL Loop
// =============================================================================
//
// Reads console lines, parses them with parseCommand and drives the device.
// Commands that change the processor only send a line; the effect shows up
// asynchronously through the update subscriber registered in main.go.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/reedr/steinway-lyngdorf/slprotocol"
)

const (
	// prompt is shown before each console line.
	prompt = "sl> "

	// commandTimeout bounds a single command, including a reconnect.
	commandTimeout = slprotocol.ConnectTimeout + 5*time.Second
)

// controller is the part of slprotocol.Device the console drives.
type controller interface {
	Snapshot() slprotocol.Snapshot
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	Mute(ctx context.Context, mute bool) error
	SetVolume(ctx context.Context, level float64) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SelectSource(ctx context.Context, label string) error
	SelectSoundMode(ctx context.Context, label string) error
	SelectAudioMode(ctx context.Context, label string) error
	Query(ctx context.Context, method string) error
}

// errQuit ends the REPL.
var errQuit = errors.New("quit")

// runREPL reads and executes commands until quit, EOF or ctx is done.
func runREPL(ctx context.Context, dev controller, editor lineReader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}

		line, err := editor.GetLine(prompt)
		if err != nil {
			// EOF (Ctrl-D) or interrupt
			fmt.Fprintln(out)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := execute(ctx, dev, line, out); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// execute runs a single console line.
func execute(ctx context.Context, dev controller, line string, out io.Writer) error {
	cmd, err := parseCommand(line)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch cmd.action {
	case actionQuit:
		return errQuit

	case actionHelp:
		return printHelp(out, cmd.arg)

	case actionStatus:
		fmt.Fprint(out, formatStatus(dev.Snapshot()))
		return nil

	case actionPowerOn:
		return dev.TurnOn(ctx)
	case actionPowerOff:
		return dev.TurnOff(ctx)

	case actionMuteOn:
		return dev.Mute(ctx, true)
	case actionMuteOff:
		return dev.Mute(ctx, false)

	case actionVolumeSet:
		return dev.SetVolume(ctx, cmd.level)
	case actionVolumeUp, actionVolumeDown:
		if _, ok := dev.Snapshot().VolumeLevel(); !ok {
			return errors.New("volume is not known yet")
		}
		if cmd.action == actionVolumeUp {
			return dev.VolumeUp(ctx)
		}
		return dev.VolumeDown(ctx)

	case actionSource:
		return dev.SelectSource(ctx, cmd.arg)
	case actionSoundMode:
		return dev.SelectSoundMode(ctx, cmd.arg)
	case actionAudioMode:
		return dev.SelectAudioMode(ctx, cmd.arg)

	case actionListSources:
		s := dev.Snapshot()
		current, _ := s.SourceName()
		printList(out, "Sources", s.Sources, current)
		return nil
	case actionListSoundModes:
		s := dev.Snapshot()
		current, _ := s.VoicingName()
		printList(out, "Voicings", s.Voicings, current)
		return nil
	case actionListAudioModes:
		s := dev.Snapshot()
		current, _ := s.AudioModeName()
		printList(out, "Audio modes", s.AudioModes, current)
		return nil

	case actionQuery:
		return dev.Query(ctx, cmd.arg)
	}

	return fmt.Errorf("unhandled command '%s'", line)
}

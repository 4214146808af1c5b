// =============================================================================
// translate.go - Console Command Parsing
// =============================================================================
//
// Turns a line typed at the console into a consoleCommand. Keywords are
// case-insensitive; labels (source, voicing and audio mode names) are taken
// verbatim from the rest of the line because they must match the lists the
// processor reported.
//
//	power on | power off
//	vol 0.35 | vol 35% | vol up | vol down
//	mute on | mute off
//	source <label> | mode <label> | audio <label>
//	sources | modes | audiomodes | status
//	query <METHOD>
//
// =============================================================================

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// action identifies what a console command does.
type action int

const (
	actionQuit action = iota
	actionHelp
	actionStatus
	actionPowerOn
	actionPowerOff
	actionMuteOn
	actionMuteOff
	actionVolumeSet
	actionVolumeUp
	actionVolumeDown
	actionSource
	actionSoundMode
	actionAudioMode
	actionListSources
	actionListSoundModes
	actionListAudioModes
	actionQuery
)

// consoleCommand is a parsed console line.
type consoleCommand struct {
	action action
	arg    string  // label, method name or help topic
	level  float64 // for actionVolumeSet
}

// GO CONCEPT: strings.SplitN for Command Parsing
// ------------------------------------------------
// SplitN(s, sep, 2) yields the keyword and everything after it. Keeping the
// remainder in one piece matters here: source labels such as "TV Audio"
// contain spaces and must reach the lookup unchanged.
//
// Compare with Python: line.split(" ", 1) does the same.

// parseCommand parses one non-empty console line.
func parseCommand(line string) (consoleCommand, error) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	keyword := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch keyword {
	case "quit", "exit", ".quit":
		return consoleCommand{action: actionQuit}, nil

	case "help", "?", ".help":
		return consoleCommand{action: actionHelp, arg: args}, nil

	case "status", "st":
		return consoleCommand{action: actionStatus}, nil

	case "power", "pwr":
		switch strings.ToLower(args) {
		case "on":
			return consoleCommand{action: actionPowerOn}, nil
		case "off", "standby":
			return consoleCommand{action: actionPowerOff}, nil
		}
		return consoleCommand{}, usageError("power")

	case "on":
		return consoleCommand{action: actionPowerOn}, nil
	case "off", "standby":
		return consoleCommand{action: actionPowerOff}, nil

	case "mute":
		switch strings.ToLower(args) {
		case "", "on":
			return consoleCommand{action: actionMuteOn}, nil
		case "off":
			return consoleCommand{action: actionMuteOff}, nil
		}
		return consoleCommand{}, usageError("mute")

	case "unmute":
		return consoleCommand{action: actionMuteOff}, nil

	case "vol", "volume", "v":
		return parseVolume(args)

	case "+":
		return consoleCommand{action: actionVolumeUp}, nil
	case "-":
		return consoleCommand{action: actionVolumeDown}, nil

	case "source", "src":
		if args == "" {
			return consoleCommand{action: actionListSources}, nil
		}
		return consoleCommand{action: actionSource, arg: args}, nil

	case "mode", "voicing":
		if args == "" {
			return consoleCommand{action: actionListSoundModes}, nil
		}
		return consoleCommand{action: actionSoundMode, arg: args}, nil

	case "audio", "audiomode":
		if args == "" {
			return consoleCommand{action: actionListAudioModes}, nil
		}
		return consoleCommand{action: actionAudioMode, arg: args}, nil

	case "sources":
		return consoleCommand{action: actionListSources}, nil
	case "modes", "voicings":
		return consoleCommand{action: actionListSoundModes}, nil
	case "audiomodes":
		return consoleCommand{action: actionListAudioModes}, nil

	case "query", "q":
		method := strings.ToUpper(args)
		if method == "" || strings.ContainsAny(method, " ()!?\"") {
			return consoleCommand{}, usageError("query")
		}
		return consoleCommand{action: actionQuery, arg: method}, nil

	default:
		return consoleCommand{}, fmt.Errorf("unknown command '%s'. Type 'help' for a list of commands", parts[0])
	}
}

// parseVolume parses the argument of the vol command.
func parseVolume(args string) (consoleCommand, error) {
	switch strings.ToLower(args) {
	case "up", "+":
		return consoleCommand{action: actionVolumeUp}, nil
	case "down", "-":
		return consoleCommand{action: actionVolumeDown}, nil
	case "":
		return consoleCommand{}, usageError("vol")
	}

	level, ok := parseLevel(args)
	if !ok {
		return consoleCommand{}, fmt.Errorf("invalid volume '%s' (use 0.0-1.0 or 0-100%%)", args)
	}
	return consoleCommand{action: actionVolumeSet, level: level}, nil
}

// parseLevel accepts a fraction ("0.35") or a percentage ("35%").
func parseLevel(s string) (float64, bool) {
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 100
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	v /= scale
	if v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}

func usageError(topic string) error {
	return fmt.Errorf("usage: %s", commandHelp[topic].usage)
}

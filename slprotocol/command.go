package slprotocol

import (
	"strconv"
	"strings"
)

// Command represents one outbound line: either a query for a status key or
// a command with optional data.
type Command struct {
	Method string
	Data   string // Inserted verbatim between parentheses; empty means none
	Query  bool
}

// NewQueryCommand creates a status query (!METHOD?).
func NewQueryCommand(method string) Command {
	return Command{Method: method, Query: true}
}

// NewCommand creates a command. An empty data string sends the bare method.
func NewCommand(method, data string) Command {
	return Command{Method: method, Data: data}
}

// NewDeviceQuery creates the identification query sent right after dialing.
func NewDeviceQuery() Command {
	return NewQueryCommand(MethodDevice)
}

// NewPowerOnCommand creates a command that wakes the main zone.
func NewPowerOnCommand() Command {
	return NewCommand(MethodPowerOn, "")
}

// NewPowerOffCommand creates a command that puts the main zone in standby.
func NewPowerOffCommand() Command {
	return NewCommand(MethodPowerOff, "")
}

// NewMuteCommand creates a mute or unmute command.
func NewMuteCommand(mute bool) Command {
	if mute {
		return NewCommand(MethodMuteOn, "")
	}
	return NewCommand(MethodMuteOff, "")
}

// NewVolumeCommand creates a volume command for a level in [0.0, 1.0].
func NewVolumeCommand(level float64) (Command, error) {
	raw, err := EncodeVolume(level)
	if err != nil {
		return Command{}, err
	}
	return NewCommand(MethodVolume, raw), nil
}

// NewSourceCommand selects the source at the given list index.
func NewSourceCommand(index int) Command {
	return NewCommand(MethodSource, strconv.Itoa(index))
}

// NewVoicingCommand selects the voicing (sound mode) at the given list index.
func NewVoicingCommand(index int) Command {
	return NewCommand(MethodVoicing, strconv.Itoa(index))
}

// NewAudioModeCommand selects the audio processing mode at the given list index.
func NewAudioModeCommand(index int) Command {
	return NewCommand(MethodAudioMode, strconv.Itoa(index))
}

// NewVerboseCommand turns unsolicited status notifications on or off.
func NewVerboseCommand(on bool) Command {
	if on {
		return NewCommand(MethodVerbose, "1")
	}
	return NewCommand(MethodVerbose, "0")
}

// Format returns the command as it appears on the wire, without the
// terminating carriage return.
func (c Command) Format() string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(c.Method)
	switch {
	case c.Query:
		b.WriteString(QuerySuffix)
	case c.Data != "":
		b.WriteByte('(')
		b.WriteString(c.Data)
		b.WriteByte(')')
	}
	return b.String()
}

// FormatLine returns the command formatted for transmission, including the
// carriage return.
func (c Command) FormatLine() string {
	return c.Format() + string(LineTerminator)
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return c.Format()
}

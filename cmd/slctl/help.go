// =============================================================================
// help.go - Console Help
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
)

// helpEntry documents one console command.
type helpEntry struct {
	usage       string
	description string
}

// commandHelp maps command keywords to their help. Aliases point at the
// same entry through helpAliases.
var commandHelp = map[string]helpEntry{
	"power":  {"power on|off", "Wake the main zone or put it in standby."},
	"vol":    {"vol <0.0-1.0>|<0-100%>|up|down", "Set the volume or step it by 5%."},
	"mute":   {"mute [on|off]", "Mute or unmute the output."},
	"source": {"source [label]", "Select an input by name, or list inputs."},
	"mode":   {"mode [label]", "Select a voicing (sound mode) by name, or list voicings."},
	"audio":  {"audio [label]", "Select an audio processing mode by name, or list modes."},
	"status": {"status", "Show power, volume, mute, source and signal information."},
	"query":  {"query <METHOD>", "Ask the processor to report a status key, e.g. query LIPSYNC."},
	"help":   {"help [command]", "Show help."},
	"quit":   {"quit", "Exit the console."},
}

var helpAliases = map[string]string{
	"pwr":        "power",
	"on":         "power",
	"off":        "power",
	"standby":    "power",
	"volume":     "vol",
	"v":          "vol",
	"+":          "vol",
	"-":          "vol",
	"unmute":     "mute",
	"src":        "source",
	"sources":    "source",
	"voicing":    "mode",
	"modes":      "mode",
	"voicings":   "mode",
	"audiomode":  "audio",
	"audiomodes": "audio",
	"st":         "status",
	"q":          "query",
	"?":          "help",
	"exit":       "quit",
}

// helpOrder is the order commands appear in the overview.
var helpOrder = []string{"power", "vol", "mute", "source", "mode", "audio", "status", "query", "help", "quit"}

// printHelp writes the overview, or the entry for one topic.
func printHelp(out io.Writer, topic string) error {
	if topic == "" {
		printHelpOverview(out)
		return nil
	}

	key := strings.ToLower(strings.TrimPrefix(topic, "."))
	if alias, ok := helpAliases[key]; ok {
		key = alias
	}

	entry, ok := commandHelp[key]
	if !ok {
		return fmt.Errorf("no help for '%s'. Type 'help' to see available commands", topic)
	}
	fmt.Fprintf(out, "%s\n  %s\n", entry.usage, entry.description)
	return nil
}

func printHelpOverview(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	for _, key := range helpOrder {
		entry := commandHelp[key]
		fmt.Fprintf(out, "  %-34s %s\n", entry.usage, entry.description)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Labels are matched exactly as the processor reports them.")
}

// =============================================================================
// status.go - Snapshot Formatting
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/reedr/steinway-lyngdorf/slprotocol"
)

// formatStatus renders a snapshot as the multi-line status report.
func formatStatus(s slprotocol.Snapshot) string {
	var b strings.Builder

	power := "standby"
	if s.IsOn() {
		power = "on"
	}
	fmt.Fprintf(&b, "Model:      %s\n", orUnknown(s.Model))
	fmt.Fprintf(&b, "Power:      %s\n", power)
	fmt.Fprintf(&b, "Volume:     %s\n", formatVolume(s))
	fmt.Fprintf(&b, "Mute:       %s\n", onOff(s.IsMuted()))

	name, _ := s.SourceName()
	fmt.Fprintf(&b, "Source:     %s\n", orUnknown(name))
	name, _ = s.VoicingName()
	fmt.Fprintf(&b, "Voicing:    %s\n", orUnknown(name))
	name, _ = s.AudioModeName()
	fmt.Fprintf(&b, "Audio mode: %s\n", orUnknown(name))
	fmt.Fprintf(&b, "Audio in:   %s\n", orUnknown(s.AudioType))
	fmt.Fprintf(&b, "Video in:   %s\n", orUnknown(s.VideoType))
	return b.String()
}

// describeChanges lists the user-visible differences between two
// snapshots, one short phrase per change.
func describeChanges(prev, next slprotocol.Snapshot) []string {
	var changes []string

	if prev.Power != next.Power && next.Power != "" {
		if next.IsOn() {
			changes = append(changes, "power on")
		} else {
			changes = append(changes, "standby")
		}
	}
	if prev.Volume != next.Volume && next.Volume != "" {
		changes = append(changes, "volume "+formatVolume(next))
	}
	if prev.Mute != next.Mute && next.Mute != "" {
		if next.IsMuted() {
			changes = append(changes, "muted")
		} else {
			changes = append(changes, "unmuted")
		}
	}
	if prev.Source != next.Source {
		if name, ok := next.SourceName(); ok {
			changes = append(changes, "source "+name)
		}
	}
	if prev.Voicing != next.Voicing {
		if name, ok := next.VoicingName(); ok {
			changes = append(changes, "voicing "+name)
		}
	}
	if prev.AudioMode != next.AudioMode {
		if name, ok := next.AudioModeName(); ok {
			changes = append(changes, "audio mode "+name)
		}
	}
	if prev.AudioType != next.AudioType && next.AudioType != "" {
		changes = append(changes, "audio in "+next.AudioType)
	}
	if prev.VideoType != next.VideoType && next.VideoType != "" {
		changes = append(changes, "video in "+next.VideoType)
	}
	return changes
}

// printList writes a numbered list, marking the current entry with '*'.
func printList(out io.Writer, title string, entries []string, current string) {
	if len(entries) == 0 {
		fmt.Fprintf(out, "No %s reported.\n", strings.ToLower(title))
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for i, e := range entries {
		marker := " "
		if e == current && current != "" {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %2d  %s\n", marker, i, e)
	}
}

func formatVolume(s slprotocol.Snapshot) string {
	level, ok := s.VolumeLevel()
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%.0f%%", level*100)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

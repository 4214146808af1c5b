// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The console reads commands either interactively or from a pipe:
//
//   - Interactive mode: ergochat/readline provides Emacs keybindings,
//     persistent history and Ctrl-R history search.
//   - Non-interactive mode: bufio.Scanner reads line by line and the prompt
//     is printed manually, so "echo 'power on' | slctl --host ..." works and
//     Emacs comint buffers behave.
//
// History is stored at ~/.slctl_history with a 500-entry limit.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the name of the history file in the user's home
	// directory.
	historyFileName = ".slctl_history"

	// historySize is the maximum number of history entries to keep.
	historySize = 500
)

// lineReader is what the REPL needs from a line editor.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

// LineEditor provides line input with optional readline support.
//
// When stdin is a terminal the editor uses readline; otherwise it falls
// back to a bufio.Scanner.
type LineEditor struct {
	// interactive is true when running in a TTY with readline support.
	interactive bool

	// rl is the readline instance, used only in interactive mode.
	rl *readline.Instance

	// scanner reads lines from stdin in non-interactive mode.
	scanner *bufio.Scanner
}

// NewLineEditor creates a LineEditor, choosing interactive or plain input
// based on whether stdin is a terminal.
func NewLineEditor() *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
		}
	}

	historyPath := filepath.Join(homeDir(), historyFileName)

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile: historyPath,

		HistoryLimit: historySize,

		// History is saved manually so blank lines stay out of it.
		DisableAutoSaveHistory: true,

		Prompt: "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
		}
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
	}
}

// GetLine displays the prompt and reads one line. It returns io.EOF when
// input ends (Ctrl-D, Ctrl-C or a closed pipe).
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	trimmed := strings.TrimSpace(line)
	if trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}

	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Print(prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return le.scanner.Text(), nil
}

// Close releases the readline instance, if any. Safe to call twice.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline is in use.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}

// homeDir returns the user's home directory, or "." if it cannot be
// determined.
func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

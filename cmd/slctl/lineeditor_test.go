package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// withPipeStdin replaces os.Stdin with a pipe for the duration of the test
// and returns the write end.
func withPipeStdin(t *testing.T) *os.File {
	t.Helper()
	oldStdin := os.Stdin
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdin = reader
	t.Cleanup(func() {
		os.Stdin = oldStdin
		reader.Close()
		writer.Close()
	})
	return writer
}

func TestNewLineEditorNonInteractive(t *testing.T) {
	withPipeStdin(t)

	editor := NewLineEditor()
	defer editor.Close()

	if editor.IsInteractive() {
		t.Error("editor should be non-interactive when stdin is a pipe")
	}
}

func TestNewLineEditorWithEmacsEnv(t *testing.T) {
	withPipeStdin(t)
	t.Setenv("INSIDE_EMACS", "29.1,comint")

	editor := NewLineEditor()
	defer editor.Close()

	if editor.IsInteractive() {
		t.Error("editor should be non-interactive when INSIDE_EMACS is set")
	}
}

func TestGetLineReadsFromPipe(t *testing.T) {
	writer := withPipeStdin(t)

	editor := NewLineEditor()
	defer editor.Close()

	fmt.Fprint(writer, "source TV Audio\n")
	writer.Close()

	line, err := editor.GetLine(prompt)
	if err != nil {
		t.Fatalf("GetLine() returned error: %v", err)
	}
	if line != "source TV Audio" {
		t.Errorf("GetLine() = %q, want %q", line, "source TV Audio")
	}
}

func TestGetLineReturnsEOFOnEmptyPipe(t *testing.T) {
	writer := withPipeStdin(t)

	editor := NewLineEditor()
	defer editor.Close()

	writer.Close()

	if _, err := editor.GetLine(prompt); err != io.EOF {
		t.Errorf("GetLine() error = %v, want io.EOF", err)
	}
}

func TestGetLineMultipleLines(t *testing.T) {
	writer := withPipeStdin(t)

	editor := NewLineEditor()
	defer editor.Close()

	fmt.Fprint(writer, "power on\nvol 0.4\nquit\n")
	writer.Close()

	want := []string{"power on", "vol 0.4", "quit"}
	for i, w := range want {
		line, err := editor.GetLine(prompt)
		if err != nil {
			t.Fatalf("line %d: GetLine() returned error: %v", i, err)
		}
		if line != w {
			t.Errorf("line %d = %q, want %q", i, line, w)
		}
	}
	if _, err := editor.GetLine(prompt); err != io.EOF {
		t.Errorf("after last line error = %v, want io.EOF", err)
	}
}

func TestCloseTwice(t *testing.T) {
	withPipeStdin(t)

	editor := NewLineEditor()
	editor.Close()
	editor.Close()
}

func TestHomeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	if got := homeDir(); got != dir {
		t.Errorf("homeDir() = %q, want %q", got, dir)
	}
	if got := filepath.Join(homeDir(), historyFileName); filepath.Base(got) != ".slctl_history" {
		t.Errorf("history path = %q", got)
	}
}

package slprotocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"testing"
	"time"
)

// mockDevice is a TCP listener that plays the processor side of the
// protocol for tests.
type mockDevice struct {
	listener net.Listener

	// handler returns the lines (without terminator) sent back for each
	// received line.
	handler func(line string) []string

	mu          sync.Mutex
	connections []net.Conn
	accepted    int
	received    []string

	wg sync.WaitGroup
}

func startMockDevice(t *testing.T, handler func(line string) []string) *mockDevice {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create mock device listener: %v", err)
	}

	if handler == nil {
		handler = processorHandler("ProcX", []string{"A", "B", "C"}, []string{"Stereo", "Surround"}, []string{"Neutral", "Music", "Movie"})
	}

	md := &mockDevice{
		listener: listener,
		handler:  handler,
	}

	md.wg.Add(1)
	go md.acceptLoop()

	t.Cleanup(md.stop)
	return md
}

// config returns a client configuration pointing at the mock.
func (md *mockDevice) config() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         md.listener.Addr().(*net.TCPAddr).Port,
		LoginTimeout: 2 * time.Second,
	}
}

func (md *mockDevice) acceptLoop() {
	defer md.wg.Done()

	for {
		conn, err := md.listener.Accept()
		if err != nil {
			return
		}

		md.mu.Lock()
		md.connections = append(md.connections, conn)
		md.accepted++
		md.mu.Unlock()

		md.wg.Add(1)
		go md.handleConnection(conn)
	}
}

func (md *mockDevice) handleConnection(conn net.Conn) {
	defer md.wg.Done()

	scanner := bufio.NewScanner(conn)
	scanner.Split(scanCarriageReturn)
	for scanner.Scan() {
		line := scanner.Text()

		md.mu.Lock()
		md.received = append(md.received, line)
		md.mu.Unlock()

		for _, reply := range md.handler(line) {
			io.WriteString(conn, reply+"\r")
		}
	}
}

// push sends an unsolicited line on the most recent connection.
func (md *mockDevice) push(t *testing.T, line string) {
	t.Helper()

	md.mu.Lock()
	defer md.mu.Unlock()
	if len(md.connections) == 0 {
		t.Fatal("push: no connection")
	}
	conn := md.connections[len(md.connections)-1]
	if _, err := io.WriteString(conn, line+"\r"); err != nil {
		t.Fatalf("push %q: %v", line, err)
	}
}

// drop closes every open connection from the device side.
func (md *mockDevice) drop() {
	md.mu.Lock()
	defer md.mu.Unlock()
	for _, conn := range md.connections {
		conn.Close()
	}
	md.connections = nil
}

func (md *mockDevice) lines() []string {
	md.mu.Lock()
	defer md.mu.Unlock()
	return slices.Clone(md.received)
}

func (md *mockDevice) acceptCount() int {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.accepted
}

// waitFor blocks until the device has received line.
func (md *mockDevice) waitFor(t *testing.T, line string) {
	t.Helper()
	eventually(t, fmt.Sprintf("device to receive %q", line), func() bool {
		return slices.Contains(md.lines(), line)
	})
}

func (md *mockDevice) stop() {
	md.listener.Close()
	md.drop()
	md.wg.Wait()
}

func scanCarriageReturn(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// processorHandler answers the identification and discovery queries the
// way a real processor does. Every other line is accepted silently so tests
// decide which notifications arrive.
func processorHandler(model string, sources, audioModes, voicings []string) func(string) []string {
	enumerate := func(countMethod, itemMethod string, items []string) []string {
		out := []string{fmt.Sprintf("!%s(%d)", countMethod, len(items))}
		for i, item := range items {
			out = append(out, fmt.Sprintf("!%s(%d)%q", itemMethod, i, item))
		}
		return out
	}

	return func(line string) []string {
		switch line {
		case "!DEVICE?":
			return []string{"!DEVICE(" + model + ")"}
		case "!SRCS?":
			return enumerate(MethodSourceCount, MethodSource, sources)
		case "!AUDMODEL?":
			return enumerate(MethodAudioModeCount, MethodAudioMode, audioModes)
		case "!RPVOIS?":
			return enumerate(MethodVoicingCount, MethodVoicing, voicings)
		case "!MUTE?":
			return []string{"!MUTEOFF"}
		default:
			return nil
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

package slprotocol

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func collectMessages(c *Client) <-chan Message {
	ch := make(chan Message, 32)
	c.SetMessageHandler(func(msg Message) { ch <- msg })
	return ch
}

func nextMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestClientConnectIdentifies(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	defer c.Close()
	msgs := collectMessages(c)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if !c.IsOnline() {
		t.Error("IsOnline() = false after Connect")
	}
	if got := c.DeviceID(); got != "ProcX_127.0.0.1" {
		t.Errorf("DeviceID() = %q", got)
	}
	if got := c.Model(); got != "ProcX" {
		t.Errorf("Model() = %q", got)
	}
	if got := c.Host(); got != "127.0.0.1" {
		t.Errorf("Host() = %q", got)
	}

	// The identification reply is handed on as the first message.
	if msg := nextMessage(t, msgs); msg.Method != MethodDevice || msg.Data != "ProcX" {
		t.Errorf("first message = %+v", msg)
	}
	if lines := md.lines(); len(lines) != 1 || lines[0] != "!DEVICE?" {
		t.Errorf("device received %q", lines)
	}
}

func TestClientConnectIsNoOpWhenOnline(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	defer c.Close()

	for i := 0; i < 3; i++ {
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("Connect #%d: %v", i, err)
		}
	}
	if n := md.acceptCount(); n != 1 {
		t.Errorf("device accepted %d connections, want 1", n)
	}
}

func TestClientConnectRejectsMalformedReply(t *testing.T) {
	md := startMockDevice(t, func(string) []string { return []string{"hello there"} })
	c := NewClient(md.config())

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrIdentification) {
		t.Fatalf("Connect error = %v, want ErrIdentification", err)
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("error %T is not a *ConnectionError", err)
	}
	if c.IsOnline() {
		t.Error("IsOnline() = true after failed handshake")
	}
	if c.DeviceID() != "" {
		t.Errorf("DeviceID() = %q, want empty", c.DeviceID())
	}
}

func TestClientConnectLoginTimeout(t *testing.T) {
	md := startMockDevice(t, func(string) []string { return nil })
	cfg := md.config()
	cfg.LoginTimeout = 100 * time.Millisecond
	c := NewClient(cfg)

	err := c.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect error = %v, want *ConnectionError", err)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("cause = %v, want a timeout", connErr.Cause)
	}
	if c.IsOnline() {
		t.Error("IsOnline() = true after timeout")
	}
}

func TestClientConnectTruncatedReply(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("!DEVICE(Pro"))
		conn.Close()
	}()

	c := NewClient(Config{Host: "127.0.0.1", Port: listener.Addr().(*net.TCPAddr).Port})
	err = c.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect error = %v, want *ConnectionError", err)
	}
}

func TestClientConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	c := NewClient(Config{Host: "127.0.0.1", Port: port, ConnectTimeout: time.Second})
	err = c.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect error = %v, want *ConnectionError", err)
	}
}

func TestClientProbe(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	msgs := collectMessages(c)

	id, err := c.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if id.Model != "ProcX" || id.DeviceID != "ProcX_127.0.0.1" {
		t.Errorf("Probe() = %+v", id)
	}

	// Probing leaves no trace on the client.
	if c.IsOnline() {
		t.Error("IsOnline() = true after Probe")
	}
	if c.DeviceID() != "" {
		t.Errorf("DeviceID() = %q after Probe", c.DeviceID())
	}
	select {
	case msg := <-msgs:
		t.Errorf("Probe dispatched %+v", msg)
	default:
	}
}

func TestClientSendConnectsOnDemand(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	defer c.Close()

	if err := c.Send(context.Background(), NewPowerOnCommand()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := c.SendRaw(context.Background(), "!VOL(-300)"); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}

	md.waitFor(t, "!VOL(-300)")
	lines := md.lines()
	want := []string{"!DEVICE?", "!POWERONMAIN", "!VOL(-300)"}
	if len(lines) != len(want) {
		t.Fatalf("device received %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestClientSendFailsWhenUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	c := NewClient(Config{Host: "127.0.0.1", Port: port})
	err = c.Send(context.Background(), NewPowerOffCommand())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Send error = %v, want *ConnectionError", err)
	}
}

func TestClientReaderDispatchesInOrder(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	defer c.Close()
	msgs := collectMessages(c)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	nextMessage(t, msgs) // identification

	md.push(t, "garbage")
	md.push(t, "")
	md.push(t, "!VOL(-500)")
	md.push(t, `!SRC(2)"Tuner"`)

	if msg := nextMessage(t, msgs); msg != (Message{Method: "VOL", Data: "-500"}) {
		t.Errorf("message = %+v", msg)
	}
	if msg := nextMessage(t, msgs); msg != (Message{Method: "SRC", Data: "2", Extra: "Tuner"}) {
		t.Errorf("message = %+v", msg)
	}

	// Only the non-blank noise line is counted.
	if n := c.Unmatched(); n != 1 {
		t.Errorf("Unmatched() = %d, want 1", n)
	}
	if !c.IsOnline() {
		t.Error("noise must not break the connection")
	}
}

func TestClientDisconnectOnPeerClose(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())

	lost := make(chan error, 1)
	c.SetDisconnectHandler(func(err error) { lost <- err })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	md.drop()

	select {
	case err := <-lost:
		if errors.Is(err, ErrClosed) {
			t.Errorf("peer close reported as %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler not called")
	}
	if c.IsOnline() {
		t.Error("IsOnline() = true after peer close")
	}

	// The next Connect starts a new session.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer c.Close()
	if n := md.acceptCount(); n != 2 {
		t.Errorf("device accepted %d connections, want 2", n)
	}
}

func TestClientClosedStaysClosed(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if err := c.Connect(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close error = %v, want ErrClosed", err)
	}
	if err := c.Send(ctx, NewPowerOnCommand()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.Probe(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Probe after Close error = %v, want ErrClosed", err)
	}
	if c.IsOnline() {
		t.Error("IsOnline() = true after Close")
	}
	if n := md.acceptCount(); n != 1 {
		t.Errorf("device accepted %d connections, want 1", n)
	}

	// Closing before ever connecting also blocks later sessions.
	fresh := NewClient(md.config())
	fresh.Close()
	if err := fresh.Connect(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect on closed fresh client error = %v, want ErrClosed", err)
	}
}

// deadlineFailConn is a net.Conn whose deadlines cannot be set.
type deadlineFailConn struct {
	net.Conn
	writes int
}

var errNoDeadline = errors.New("deadline not supported")

func (c *deadlineFailConn) SetDeadline(time.Time) error { return errNoDeadline }

func (c *deadlineFailConn) Write(b []byte) (int, error) {
	c.writes++
	return len(b), nil
}

func TestIdentifyFailsWithoutLoginDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &deadlineFailConn{Conn: client}
	c := NewClient(Config{Host: "127.0.0.1"})

	_, _, err := c.identify(context.Background(), conn)

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *ConnectionError", err)
	}
	if !errors.Is(err, errNoDeadline) {
		t.Errorf("error = %v, want it to wrap the deadline failure", err)
	}
	if conn.writes != 0 {
		t.Errorf("identification query sent without a deadline (%d writes)", conn.writes)
	}
}

func TestClientClose(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())

	lost := make(chan error, 1)
	c.SetDisconnectHandler(func(err error) { lost <- err })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if c.IsOnline() {
		t.Error("IsOnline() = true after Close")
	}
	select {
	case err := <-lost:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("disconnect error = %v, want ErrClosed", err)
		}
	default:
		t.Error("disconnect handler not called before Close returned")
	}

	// Closing twice is harmless.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestReadLineTooLong(t *testing.T) {
	md := startMockDevice(t, nil)
	c := NewClient(md.config())

	lost := make(chan error, 1)
	c.SetDisconnectHandler(func(err error) { lost <- err })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	long := make([]byte, MaxLineLength+10)
	for i := range long {
		long[i] = 'A'
	}
	md.push(t, "!"+string(long))

	select {
	case err := <-lost:
		if !errors.Is(err, ErrLineTooLong) {
			t.Errorf("disconnect error = %v, want ErrLineTooLong", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("oversized line did not end the session")
	}
}

package slprotocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageHandler is a callback for decoded inbound lines. It runs on the
// reader goroutine, one message at a time, in arrival order.
type MessageHandler func(msg Message)

// DisconnectHandler is a callback function called when the connection is lost.
type DisconnectHandler func(err error)

// Identity is what the processor reports about itself during the handshake.
type Identity struct {
	Model    string
	DeviceID string
}

func identityFor(reply Message, host string) Identity {
	return Identity{
		Model:    reply.Data,
		DeviceID: fmt.Sprintf("%s_%s", reply.Data, host),
	}
}

// Client is a TCP connection to one processor.
//
// The connection is opened lazily: Send connects first if needed. Once
// online, a reader goroutine decodes every inbound line and hands it to the
// message handler. The client never reconnects on its own; after a
// disconnect the next Connect or Send starts a new session.
//
// Thread Safety:
// The client uses a mutex to protect its state and is safe for concurrent
// use from multiple goroutines. Each write carries exactly one line.
type Client struct {
	mu sync.Mutex

	// connectMu serialises connect attempts with disconnect handling so a
	// new session never starts before the old one is fully torn down.
	connectMu sync.Mutex

	// writeMu keeps concurrent lines from interleaving on the socket.
	writeMu sync.Mutex

	cfg Config
	log *zap.Logger

	conn     net.Conn
	online   bool
	closing  bool
	closed   bool
	identity Identity
	session  uuid.UUID

	messageHandler    MessageHandler
	disconnectHandler DisconnectHandler

	readerDone chan struct{}

	unmatched atomic.Uint64
}

// NewClient creates a client for the processor described by cfg.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		log: cfg.Logger.With(zap.String("host", cfg.Host)),
	}
}

// SetMessageHandler sets the callback for decoded inbound lines.
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageHandler = handler
}

// SetDisconnectHandler sets the callback for disconnection events.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// Host returns the configured device host.
func (c *Client) Host() string {
	return c.cfg.Host
}

// IsOnline returns true while a session is established and its reader is
// running.
func (c *Client) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// DeviceID returns "<model>_<host>" from the most recent successful
// handshake, or an empty string before the first one.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.DeviceID
}

// Model returns the model reported by the most recent successful handshake.
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.Model
}

// Unmatched returns how many non-blank inbound lines were discarded because
// they did not match the protocol grammar.
func (c *Client) Unmatched() uint64 {
	return c.unmatched.Load()
}

// Connect opens a session if one is not already open. It dials the device,
// sends the identification query and waits for the reply. Any failure is
// returned as a *ConnectionError and leaves the client offline. After Close
// it returns ErrClosed.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	online, closed := c.online, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if online {
		return nil
	}

	c.log.Debug("establishing new connection", zap.String("addr", c.cfg.Address()))
	conn, reader, reply, err := c.handshake(ctx)
	if err != nil {
		c.log.Error("connect sequence error", zap.Error(err))
		return err
	}

	session := uuid.New()
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.online = true
	c.closing = false
	c.identity = identityFor(reply, c.cfg.Host)
	c.session = session
	c.readerDone = done
	handler := c.messageHandler
	c.mu.Unlock()

	log := c.log.With(zap.Stringer("session", session))
	log.Info("connected", zap.String("model", reply.Data))

	// The identification reply is the first message of every session.
	if handler != nil {
		handler(reply)
	}

	go c.readerLoop(log, conn, reader, done)
	return nil
}

// Probe performs the same handshake as Connect, then closes the socket
// without going online. It is used to check that a host answers.
func (c *Client) Probe(ctx context.Context) (Identity, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Identity{}, ErrClosed
	}

	conn, _, reply, err := c.handshake(ctx)
	if err != nil {
		return Identity{}, err
	}
	conn.Close()
	return identityFor(reply, c.cfg.Host), nil
}

// handshake dials the device and reads its identification reply.
func (c *Client) handshake(ctx context.Context) (net.Conn, *bufio.Reader, Message, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", c.cfg.Address())
	if err != nil {
		return nil, nil, Message{}, NewConnectionError("failed to connect", err)
	}

	reader, reply, err := c.identify(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, nil, Message{}, err
	}
	return conn, reader, reply, nil
}

// identify sends the identification query on conn and reads the reply
// within the login timeout. The caller closes conn on error.
func (c *Client) identify(ctx context.Context, conn net.Conn) (*bufio.Reader, Message, error) {
	deadline := time.Now().Add(c.cfg.LoginTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, Message{}, NewConnectionError("failed to set login deadline", err)
	}

	query := NewDeviceQuery()
	c.log.Debug("->", zap.String("line", query.Format()))
	if _, err := io.WriteString(conn, query.FormatLine()); err != nil {
		return nil, Message{}, NewConnectionError("failed to send identification query", err)
	}

	reader := bufio.NewReaderSize(conn, MaxLineLength)
	line, err := readLine(reader)
	if err != nil {
		return nil, Message{}, NewConnectionError("no identification reply", err)
	}
	c.log.Debug("<-", zap.String("line", strings.TrimSpace(line)))

	reply, ok := ParseMessage(line)
	if !ok {
		return nil, Message{}, NewConnectionError(fmt.Sprintf("identification reply %q", strings.TrimSpace(line)), ErrIdentification)
	}

	// Steady-state reads block indefinitely.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, Message{}, NewConnectionError("failed to clear login deadline", err)
	}
	return reader, reply, nil
}

// Close ends the current session, if any, and waits for the reader to exit.
// The disconnect handler is called with ErrClosed. A closed client does not
// connect again: Connect, Send and Probe return ErrClosed.
func (c *Client) Close() error {
	c.connectMu.Lock()
	c.mu.Lock()
	c.closed = true
	if !c.online {
		c.mu.Unlock()
		c.connectMu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	done := c.readerDone
	c.mu.Unlock()

	err := conn.Close()
	c.connectMu.Unlock()

	// Wait for the reader to finish (outside the locks, it needs them to
	// tear the session down).
	<-done
	return err
}

// Send writes one command, connecting first if necessary.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	return c.SendRaw(ctx, cmd.FormatLine())
}

// SendRaw writes a pre-encoded line, connecting first if necessary. A
// missing carriage return is appended.
func (c *Client) SendRaw(ctx context.Context, line string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if !strings.HasSuffix(line, string(LineTerminator)) {
		line += string(LineTerminator)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(dl); err != nil {
			return NewConnectionError("failed to set write deadline", err)
		}
		// Later writes without a deadline must not inherit this one. A
		// failure here means the connection is gone; the reader reports it.
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}

	c.log.Debug("->", zap.String("line", strings.TrimSuffix(line, string(LineTerminator))))
	if _, err := io.WriteString(conn, line); err != nil {
		return NewConnectionError("failed to send command", err)
	}
	return nil
}

// readerLoop reads lines until the connection breaks, dispatching every
// decoded message to the message handler.
func (c *Client) readerLoop(log *zap.Logger, conn net.Conn, reader *bufio.Reader, done chan struct{}) {
	defer close(done)

	for {
		line, err := readLine(reader)
		if err != nil {
			c.handleDisconnect(log, conn, err)
			return
		}
		c.processLine(log, line)
	}
}

// processLine handles a received line from the device.
func (c *Client) processLine(log *zap.Logger, line string) {
	trimmed := strings.TrimSpace(line)
	log.Debug("<-", zap.String("line", trimmed))

	msg, ok := ParseMessage(trimmed)
	if !ok {
		if trimmed != "" {
			n := c.unmatched.Add(1)
			log.Debug("discarding unrecognized line", zap.String("line", trimmed), zap.Uint64("unmatched", n))
		}
		return
	}

	c.mu.Lock()
	handler := c.messageHandler
	c.mu.Unlock()

	if handler != nil {
		handler(msg)
	}
}

// handleDisconnect tears down the session owned by conn.
func (c *Client) handleDisconnect(log *zap.Logger, conn net.Conn, err error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	closing := c.closing
	c.online = false
	c.closing = false
	c.conn = nil
	handler := c.disconnectHandler
	c.mu.Unlock()

	conn.Close()

	if closing {
		log.Info("connection closed")
		err = ErrClosed
	} else {
		log.Warn("connection lost", zap.Error(err))
	}

	if handler != nil {
		handler(err)
	}
}

// readLine reads one carriage-return terminated line. A line that does not
// fit in the reader's buffer is reported as ErrLineTooLong.
func readLine(reader *bufio.Reader) (string, error) {
	b, err := reader.ReadSlice(LineTerminator)
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(b) > 0:
		return "", io.ErrUnexpectedEOF
	case err != nil:
		return "", err
	}
	return string(b), nil
}

package slprotocol

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config describes how to reach a processor. Only Host is required; zero
// values fall back to the protocol defaults.
type Config struct {
	// Host is the processor's address or hostname.
	Host string

	// Port overrides DefaultPort.
	Port int

	// ConnectTimeout overrides the TCP dial timeout.
	ConnectTimeout time.Duration

	// LoginTimeout overrides the identification and discovery timeout.
	LoginTimeout time.Duration

	// Logger receives driver diagnostics. Nil disables logging.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = ConnectTimeout
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = LoginTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Address returns the host:port the client dials.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}
